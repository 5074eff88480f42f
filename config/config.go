// Package config loads the heft YAML configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/store"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultWarmup      = 2 * time.Second
	DefaultWindow      = 5 * time.Second
	DefaultBusyTimeout = 10 * time.Second
	DefaultSeed        = 1
)

// Config is the top-level heft configuration.
type Config struct {
	// Threads is the worker count of the concurrent profile.
	Threads int `yaml:"threads"`

	// Profile logs per-workload scaling diagnostics.
	Profile bool `yaml:"profile"`

	Warmup time.Duration `yaml:"warmup"`
	Window time.Duration `yaml:"window"`

	Database  DatabaseConfig  `yaml:"database"`
	Workloads WorkloadsConfig `yaml:"workloads"`
	Output    OutputConfig    `yaml:"output"`

	// Weights overrides or extends the built-in weight table.
	Weights map[string]float64 `yaml:"weights"`
}

// DatabaseConfig configures the SQLite pool.
type DatabaseConfig struct {
	// DSN is a go-sqlite3 data source name.
	DSN string `yaml:"dsn"`

	// PoolSize caps concurrently held connections. 0 matches Threads.
	PoolSize int `yaml:"pool_size"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WorkloadsConfig selects and feeds the bundled workloads.
type WorkloadsConfig struct {
	Exclude     []string `yaml:"exclude"`
	ImageSample string   `yaml:"image_sample"`
	Seed        int64    `yaml:"seed"`
}

// OutputConfig names report files written after a run. Empty disables.
type OutputConfig struct {
	JSON    string `yaml:"json"`
	HTML    string `yaml:"html"`
	Metrics string `yaml:"metrics"`
}

// Load reads and parses the YAML config file at path. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// PoolSize returns the effective pool size.
func (c *Config) PoolSize() int {
	if c.Database.PoolSize > 0 {
		return c.Database.PoolSize
	}

	return c.Threads
}

// MergedWeights returns the built-in weights with the configured
// overrides applied.
func (c *Config) MergedWeights() score.Weights {
	w := score.DefaultWeights()
	for name, v := range c.Weights {
		w[name] = v
	}

	return w
}

func defaults() *Config {
	return &Config{
		Threads: runtime.NumCPU(),
		Warmup:  DefaultWarmup,
		Window:  DefaultWindow,
		Database: DatabaseConfig{
			DSN:         store.DefaultDSN,
			BusyTimeout: DefaultBusyTimeout,
		},
		Workloads: WorkloadsConfig{
			Seed: DefaultSeed,
		},
	}
}

// Validate checks a Config assembled outside Load, such as after flag
// overrides.
func Validate(cfg *Config) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

func validate(cfg *Config) error {
	if cfg.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", cfg.Threads)
	}
	if cfg.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if cfg.Database.PoolSize < 0 {
		return fmt.Errorf("database.pool_size must not be negative")
	}
	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}
	for name, w := range cfg.Weights {
		if name == "" {
			return fmt.Errorf("weights: empty workload name")
		}
		if w <= 0 {
			return fmt.Errorf("weights[%q] must be positive, got %g", name, w)
		}
	}

	return nil
}

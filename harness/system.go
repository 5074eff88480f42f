package harness

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/weiihann/heft/store"
)

const bytesPerMB = 1024 * 1024

// SystemInfo describes the host a run executed on.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Platform      string `json:"platform,omitempty"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	CPUModel      string `json:"cpu_model,omitempty"`
	TotalMemoryMB uint64 `json:"total_memory_mb,omitempty"`
	SQLiteVersion string `json:"sqlite_version"`
}

// CollectSystemInfo describes the current host. Fields gopsutil cannot
// determine are left empty.
func CollectSystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		SQLiteVersion: store.SQLiteVersion(),
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemoryMB = vm.Total / bytesPerMB
	}

	if h, err := host.InfoWithContext(ctx); err == nil && h.Platform != "" {
		info.Platform = h.Platform + " " + h.PlatformVersion
	}

	return info
}

// ProcessRSSMB returns the resident set size of this process in megabytes.
func ProcessRSSMB(ctx context.Context) (float64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("open process: %w", err)
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read memory info: %w", err)
	}

	return float64(mi.RSS) / bytesPerMB, nil
}

// Package workload defines benchmark workloads and the registry that collects
// them before a run. A Registry is built fresh for every run and handed to
// the measurement engine, which treats it as read-only.
package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiihann/heft/store"
)

// Body is one repeatable, side-effecting unit of work. It runs against the
// connection the harness checked out for the current invocation.
type Body func(ctx context.Context, conn *store.Conn) error

// Definition is a named workload and its declared importance.
type Definition struct {
	Name string
	// BaseWeight is informational. Scoring reads the run's weight table,
	// which falls back to score.FallbackWeight for names it lacks.
	BaseWeight float64
	Body       Body
}

// Skip records a workload that was deliberately left out of a run.
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ErrDuplicate is returned when a name is registered twice.
var ErrDuplicate = errors.New("workload already registered")

// Registry is an ordered collection of definitions.
type Registry struct {
	defs    []Definition
	names   map[string]struct{}
	skipped []Skip
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register appends a definition. Names must be unique and non-empty,
// weights positive, and body non-nil.
func (r *Registry) Register(name string, weight float64, body Body) error {
	if name == "" {
		return fmt.Errorf("workload name is required")
	}
	if weight <= 0 {
		return fmt.Errorf("workload %q: weight must be positive, got %g",
			name, weight)
	}
	if body == nil {
		return fmt.Errorf("workload %q: body is required", name)
	}
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}

	r.names[name] = struct{}{}
	r.defs = append(r.defs, Definition{
		Name:       name,
		BaseWeight: weight,
		Body:       body,
	})

	return nil
}

// Skip records that name will not run and why.
func (r *Registry) Skip(name, reason string) {
	r.skipped = append(r.skipped, Skip{Name: name, Reason: reason})
}

// Definitions returns a copy of the registered definitions in order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)

	return out
}

// Skipped returns a copy of the skip records in order.
func (r *Registry) Skipped() []Skip {
	out := make([]Skip, len(r.skipped))
	copy(out, r.skipped)

	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.names[name]

	return ok
}

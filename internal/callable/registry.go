// Package callable resolves a Job's named entry point through an explicit,
// process-local registration table populated once at startup, rather than
// a dotted-path dynamic import. Jobs reference a callable by a symbolic
// "namespace.function" name; resolution is a plain map lookup, never
// reflection.
package callable

import (
	"context"
	"sync"
)

// Args carries a callable's positional and keyword arguments, as stored on
// the owning Job's JobConfig or passed through the Queue.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Result is the opaque outcome of a callable invocation. ExitCode is set
// on failure paths that need to distinguish "operator error" from ordinary
// failures; JobRunID names the run the callable itself created so the
// worker pool can log a correlating id without owning run lifecycle.
type Result struct {
	ExitCode *int
	JobRunID string
}

// Func is one registered entry point, given a fresh correlation id (see
// internal/runctx) for the invocation. Each callable owns its own JobRun
// bookkeeping — the pipeline executor resumes an existing run tied to its
// Upload rather than always creating a new one, so JobRun lifecycle can't
// be a worker-pool concern.
type Func func(ctx context.Context, runID string, args Args) (Result, error)

// Registry is a process-local map from symbolic name to Func, safe for
// concurrent Resolve calls after all Register calls complete at startup.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds name to fn, overwriting any existing registration —
// callers register once at startup, in cmd/engine/main.go.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Resolve looks up a previously registered callable. ok is false for any
// name not registered at startup, which the worker pool treats as a
// permanent, non-retried failure.
func (r *Registry) Resolve(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

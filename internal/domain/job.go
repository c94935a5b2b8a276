package domain

import "time"

// Job is a named, callable-bound unit of work. A Job with a nil
// ScheduleCron is manual-trigger-only.
type Job struct {
	ID            string
	Name          string
	JobType       string
	Config        JobConfig
	ScheduleCron  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobConfig identifies the callable to invoke and its arguments. Callable
// is a "namespace.function" string resolved through the callable registry
// at invocation time — no dynamic import, no reflection.
type JobConfig struct {
	Callable string
	Args     []any
	Kwargs   map[string]any
}

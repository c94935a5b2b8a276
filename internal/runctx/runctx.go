// Package runctx carries a job-run correlation id through a context.Context
// so every log line emitted while executing a callable can be tied back to
// its JobRun without threading an id parameter through every function.
package runctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID generates a random UUID v4 run id.
func NewID() string {
	return uuid.NewString()
}

// With returns a copy of ctx carrying runID.
func With(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, runID)
}

// From extracts the run id from ctx. Returns "" if absent.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

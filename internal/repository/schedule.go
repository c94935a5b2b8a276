package repository

import (
	"context"
	"time"

	"github.com/deptops/batchops/internal/domain"
)

// DueFire is one (jobID, fireTime) pair past due for dispatch.
type DueFire struct {
	JobID     string
	FireTime  time.Time
}

// ScheduleRegistry is the durable mapping of job definitions to cron
// expressions. Register/Unregister/Reconcile mutate the registry;
// Due/MarkDispatched drive the scheduler loop's at-most-once dispatch.
type ScheduleRegistry interface {
	// Register is idempotent; replaces any existing entry for jobID.
	Register(ctx context.Context, jobID, cronExpr string, nextFireAt time.Time) error

	// Unregister removes the durable entry. Any not-yet-fired pending
	// dispatch for the job is implicitly dropped since Due never returns
	// fires for jobs absent from the registry.
	Unregister(ctx context.Context, jobID string) error

	// Due returns entries with NextFireAt <= now that have not yet been
	// marked dispatched for that exact fire time.
	Due(ctx context.Context, now time.Time) ([]DueFire, error)

	// MarkDispatched records that fireTime was enqueued for jobID and
	// advances NextFireAt to nextFireAt, atomically. Calling it twice with
	// the same (jobID, fireTime) must be safe — at-most-one dispatch.
	MarkDispatched(ctx context.Context, jobID string, fireTime, nextFireAt time.Time) error

	// Reconcile adds missing registrations (for scheduled jobs not yet
	// present) and removes orphans (entries whose job no longer exists or
	// no longer has a ScheduleCron), given the authoritative job set.
	Reconcile(ctx context.Context, jobs []*domain.Job, computeNext func(cronExpr string, after time.Time) (time.Time, error)) error
}

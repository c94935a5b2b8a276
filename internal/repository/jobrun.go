package repository

import (
	"context"
	"time"

	"github.com/deptops/batchops/internal/domain"
)

type JobRunRepository interface {
	Create(ctx context.Context, r *domain.JobRun) (*domain.JobRun, error)

	// LatestForUpload returns the most recent JobRun owned by uploadID, or
	// nil if none exists — used by the executor to resume a redelivered run.
	LatestForUpload(ctx context.Context, uploadID string) (*domain.JobRun, error)

	// AppendStep appends a StepRecord to the run's step telemetry.
	AppendStep(ctx context.Context, runID string, step domain.StepRecord) error

	// UpdateStep overwrites the most recent StepRecord with the given name
	// (used to move a step from running to success/failed in place).
	UpdateStep(ctx context.Context, runID string, step domain.StepRecord) error

	// Finalize sets status, finished_at, duration_ms and exit_code.
	Finalize(ctx context.Context, runID string, status domain.RunStatus, finishedAt time.Time, exitCode *int) error
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type JobRunRepository struct {
	pool *pgxpool.Pool
}

func NewJobRunRepository(pool *pgxpool.Pool) *JobRunRepository {
	return &JobRunRepository{pool: pool}
}

func (r *JobRunRepository) Create(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error) {
	details, err := json.Marshal(run.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal step details: %w", err)
	}

	query := `
		INSERT INTO job_runs (job_id, upload_id, status, started_at, details, logs)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, job_id, upload_id, status, started_at, finished_at,
		          duration_ms, exit_code, details, logs`

	row := r.pool.QueryRow(ctx, query, run.JobID, run.UploadID, run.Status, run.StartedAt, details, run.Logs)
	return scanJobRun(row)
}

func (r *JobRunRepository) LatestForUpload(ctx context.Context, uploadID string) (*domain.JobRun, error) {
	query := `
		SELECT id, job_id, upload_id, status, started_at, finished_at,
		       duration_ms, exit_code, details, logs
		FROM job_runs
		WHERE upload_id = $1
		ORDER BY started_at DESC
		LIMIT 1`

	run, err := scanJobRun(r.pool.QueryRow(ctx, query, uploadID))
	if errors.Is(err, domain.ErrJobRunNotFound) {
		return nil, nil
	}
	return run, err
}

// AppendStep appends a StepRecord to the run's step telemetry. The details
// column is a jsonb array; appending is a read-modify-write under a
// single-row lock to preserve append-only ordering.
func (r *JobRunRepository) AppendStep(ctx context.Context, runID string, step domain.StepRecord) error {
	return r.mutateSteps(ctx, runID, func(steps []domain.StepRecord) []domain.StepRecord {
		return append(steps, step)
	})
}

// UpdateStep overwrites the most recent StepRecord with the same name
// in-place (used to move running -> success/failed).
func (r *JobRunRepository) UpdateStep(ctx context.Context, runID string, step domain.StepRecord) error {
	return r.mutateSteps(ctx, runID, func(steps []domain.StepRecord) []domain.StepRecord {
		for i := len(steps) - 1; i >= 0; i-- {
			if steps[i].Name == step.Name {
				steps[i] = step
				return steps
			}
		}
		return append(steps, step)
	})
}

func (r *JobRunRepository) mutateSteps(ctx context.Context, runID string, mutate func([]domain.StepRecord) []domain.StepRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT details FROM job_runs WHERE id = $1 FOR UPDATE`, runID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrJobRunNotFound
		}
		return fmt.Errorf("lock job run: %w", err)
	}

	var steps []domain.StepRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &steps); err != nil {
			return fmt.Errorf("unmarshal step details: %w", err)
		}
	}

	steps = mutate(steps)

	updated, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshal step details: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE job_runs SET details = $2 WHERE id = $1`, runID, updated); err != nil {
		return fmt.Errorf("update step details: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *JobRunRepository) Finalize(ctx context.Context, runID string, status domain.RunStatus, finishedAt time.Time, exitCode *int) error {
	query := `
		UPDATE job_runs
		SET    status = $2,
		       finished_at = $3,
		       duration_ms = EXTRACT(EPOCH FROM ($3::timestamptz - started_at)) * 1000,
		       exit_code = $4
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, runID, status, finishedAt, exitCode)
	if err != nil {
		return fmt.Errorf("finalize job run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobRunNotFound
	}
	return nil
}

func scanJobRun(row rowScanner) (*domain.JobRun, error) {
	var run domain.JobRun
	var details []byte
	err := row.Scan(
		&run.ID, &run.JobID, &run.UploadID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.DurationMS, &run.ExitCode, &details, &run.Logs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobRunNotFound
		}
		return nil, fmt.Errorf("scan job run: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &run.Details); err != nil {
			return nil, fmt.Errorf("unmarshal step details: %w", err)
		}
	}
	return &run, nil
}

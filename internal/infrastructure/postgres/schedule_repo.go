package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/repository"
)

// ScheduleRepository implements the schedule registry as a single table
// keyed by job_id: one row per scheduled Job, carrying the next computed
// fire time and a mark of the most recent fire already dispatched.
type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Register(ctx context.Context, jobID, cronExpr string, nextFireAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_entries (job_id, cron_expr, next_fire_at, dispatched_fire_at, updated_at)
		VALUES ($1, $2, $3, NULL, NOW())
		ON CONFLICT (job_id) DO UPDATE
		SET cron_expr = EXCLUDED.cron_expr,
		    next_fire_at = EXCLUDED.next_fire_at,
		    dispatched_fire_at = NULL,
		    updated_at = NOW()`,
		jobID, cronExpr, nextFireAt,
	)
	if err != nil {
		return fmt.Errorf("register schedule entry: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) Unregister(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM schedule_entries WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("unregister schedule entry: %w", err)
	}
	return nil
}

// Due returns entries whose next_fire_at has passed and whose most recent
// dispatch mark is not already for that same fire time — so a crash
// between EnqueueAt and MarkDispatched simply re-derives the pending state
// on the next tick, rather than silently losing the fire.
func (r *ScheduleRepository) Due(ctx context.Context, now time.Time) ([]repository.DueFire, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT job_id, next_fire_at
		FROM schedule_entries
		WHERE next_fire_at <= $1
		  AND (dispatched_fire_at IS NULL OR dispatched_fire_at <> next_fire_at)
		ORDER BY next_fire_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer rows.Close()

	var out []repository.DueFire
	for rows.Next() {
		var f repository.DueFire
		if err := rows.Scan(&f.JobID, &f.FireTime); err != nil {
			return nil, fmt.Errorf("scan due fire: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkDispatched records fireTime as dispatched and advances next_fire_at.
// Idempotent: calling it twice for the same fireTime leaves the row
// unchanged on the second call (the WHERE guard skips the no-op update).
func (r *ScheduleRepository) MarkDispatched(ctx context.Context, jobID string, fireTime, nextFireAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedule_entries
		SET    dispatched_fire_at = $2, next_fire_at = $3, updated_at = NOW()
		WHERE job_id = $1 AND next_fire_at = $2`,
		jobID, fireTime, nextFireAt,
	)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	return nil
}

// Reconcile adds entries for scheduled jobs missing from the registry and
// removes entries for jobs that no longer exist or are no longer scheduled
// (ScheduleCron nil) — invoked explicitly after any Job mutation, never as
// an implicit ORM side effect.
func (r *ScheduleRepository) Reconcile(ctx context.Context, jobs []*domain.Job, computeNext func(cronExpr string, after time.Time) (time.Time, error)) error {
	scheduled := make(map[string]string, len(jobs))
	for _, j := range jobs {
		if j.ScheduleCron != nil && *j.ScheduleCron != "" {
			scheduled[j.ID] = *j.ScheduleCron
		}
	}

	existing, err := r.allEntries(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for jobID, cronExpr := range scheduled {
		if current, ok := existing[jobID]; ok && current == cronExpr {
			continue // already registered with the current expression
		}
		next, err := computeNext(cronExpr, now)
		if err != nil {
			return fmt.Errorf("compute next fire for job %s: %w", jobID, err)
		}
		if err := r.Register(ctx, jobID, cronExpr, next); err != nil {
			return fmt.Errorf("reconcile register job %s: %w", jobID, err)
		}
	}

	for jobID := range existing {
		if _, stillScheduled := scheduled[jobID]; !stillScheduled {
			if err := r.Unregister(ctx, jobID); err != nil {
				return fmt.Errorf("reconcile unregister job %s: %w", jobID, err)
			}
		}
	}

	return nil
}

func (r *ScheduleRepository) allEntries(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT job_id, cron_expr FROM schedule_entries`)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var jobID, cronExpr string
		if err := rows.Scan(&jobID, &cronExpr); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		out[jobID] = cronExpr
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/repository"
)

// QueueRepository implements the Queue contract as two tables over the
// same Postgres pool the rest of the core uses, through pgx and
// FOR UPDATE SKIP LOCKED rather than a second datastore technology with
// no other call site.
type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

func (q *QueueRepository) Enqueue(ctx context.Context, jobID string, args []any, kwargs map[string]any, idempotencyKey string) (string, error) {
	var id string
	err := q.pool.QueryRow(ctx, `
		INSERT INTO queue_fifo (job_id, args, kwargs, idempotency_key)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (job_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id`,
		jobID, args, kwargs, idempotencyKey,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return q.existingFIFOID(ctx, jobID, idempotencyKey)
		}
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

func (q *QueueRepository) EnqueueAt(ctx context.Context, jobID string, args []any, kwargs map[string]any, t time.Time, idempotencyKey string) (string, error) {
	var id string
	err := q.pool.QueryRow(ctx, `
		INSERT INTO queue_delayed (job_id, args, kwargs, fire_at, idempotency_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (job_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id`,
		jobID, args, kwargs, t, idempotencyKey,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return q.existingDelayedID(ctx, jobID, idempotencyKey)
		}
		return "", fmt.Errorf("enqueue at: %w", err)
	}
	return id, nil
}

func (q *QueueRepository) existingFIFOID(ctx context.Context, jobID, idempotencyKey string) (string, error) {
	var id string
	err := q.pool.QueryRow(ctx,
		`SELECT id FROM queue_fifo WHERE job_id = $1 AND idempotency_key = $2`,
		jobID, idempotencyKey,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("lookup existing fifo entry: %w", err)
	}
	return id, nil
}

func (q *QueueRepository) existingDelayedID(ctx context.Context, jobID, idempotencyKey string) (string, error) {
	var id string
	err := q.pool.QueryRow(ctx,
		`SELECT id FROM queue_delayed WHERE job_id = $1 AND idempotency_key = $2`,
		jobID, idempotencyKey,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("lookup existing delayed entry: %w", err)
	}
	return id, nil
}

// Promote moves delayed entries due at or before now into the FIFO,
// preserving relative fire_at order via created_at on the FIFO side.
func (q *QueueRepository) Promote(ctx context.Context, now time.Time) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		WITH due AS (
			DELETE FROM queue_delayed
			WHERE fire_at <= $1
			RETURNING job_id, args, kwargs, idempotency_key, fire_at
		)
		INSERT INTO queue_fifo (job_id, args, kwargs, idempotency_key, created_at)
		SELECT job_id, args, kwargs, idempotency_key, fire_at FROM due
		ON CONFLICT (job_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("promote delayed entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Claim atomically pops the oldest FIFO entry and records a lease.
// FOR UPDATE SKIP LOCKED prevents two workers from claiming the same row.
func (q *QueueRepository) Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*repository.QueueEntry, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE queue_fifo
		SET    leased_by = $1, lease_expires_at = NOW() + $2::interval
		WHERE id = (
			SELECT id FROM queue_fifo
			WHERE leased_by IS NULL
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_id, args, kwargs, created_at`,
		workerID, leaseDuration,
	)

	var e repository.QueueEntry
	if err := row.Scan(&e.ID, &e.JobID, &e.Args, &e.Kwargs, &e.EnqueuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim: %w", err)
	}
	return &e, nil
}

// Ack removes the leased entry. Scoped to workerID so a worker whose lease
// already expired (and was reclaimed by someone else) cannot ack a job it
// no longer owns.
func (q *QueueRepository) Ack(ctx context.Context, workerID, entryID string) error {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM queue_fifo WHERE id = $1 AND leased_by = $2`,
		entryID, workerID,
	)
	if err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQueueEmpty
	}
	return nil
}

// ReclaimExpired clears the lease on entries past their lease_expires_at so
// they become claimable again — the Queue side of at-least-once delivery.
func (q *QueueRepository) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE queue_fifo
		SET    leased_by = NULL, lease_expires_at = NULL
		WHERE leased_by IS NOT NULL AND lease_expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

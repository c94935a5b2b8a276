package repository

import (
	"context"
	"time"
)

// QueueEntry is one claimed unit of work: the owning Job's id (the worker
// resolves the callable from that Job) and its positional/keyword
// arguments, carried opaquely by the Queue.
type QueueEntry struct {
	ID         string
	JobID      string
	Args       []any
	Kwargs     map[string]any
	EnqueuedAt time.Time
}

// Queue is a FIFO plus a delayed set. At-least-once delivery: a claimed
// entry whose lease expires before Ack is returned to the FIFO for
// re-claim by another worker.
//
// IdempotencyKey, when non-empty, makes Enqueue/EnqueueAt safe to call more
// than once for the same logical fire: a second call with the same
// (jobID, idempotencyKey) is a no-op. This is what lets the scheduler loop
// enqueue then mark-dispatched non-atomically without risking a double-fire
// across a crash between the two steps.
type Queue interface {
	// Enqueue appends to the immediately-runnable FIFO.
	Enqueue(ctx context.Context, jobID string, args []any, kwargs map[string]any, idempotencyKey string) (string, error)

	// EnqueueAt inserts into the delayed set, keyed by target fire time t.
	EnqueueAt(ctx context.Context, jobID string, args []any, kwargs map[string]any, t time.Time, idempotencyKey string) (string, error)

	// Promote moves all delayed entries with target time <= now into the
	// FIFO, preserving their relative target-time order.
	Promote(ctx context.Context, now time.Time) (int, error)

	// Claim atomically pops one FIFO entry and records a lease owned by
	// workerID for leaseDuration. Returns (nil, nil) if the FIFO is empty.
	Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*QueueEntry, error)

	// Ack removes the lease for entryID, acknowledging completion (success
	// or a recorded failure both ack).
	Ack(ctx context.Context, workerID, entryID string) error

	// ReclaimExpired returns expired-lease entries to the FIFO so another
	// worker can claim them; returns how many were reclaimed.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
}

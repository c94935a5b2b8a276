// Package scheduler implements the dispatch loop, worker pool, and lease
// reaper: promote delayed queue entries, fire due cron schedules into the
// queue, claim and execute queue entries through the callable registry,
// and reclaim leases abandoned by a crashed worker.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/repository"
)

// Dispatcher ticks at a fixed interval, promoting due delayed queue
// entries and firing any cron schedule whose NextFireAt has passed.
// Enqueue-then-mark-dispatched is not atomic, but the queue's idempotency
// key makes a crash between the two steps safe to replay: at-most-one
// dispatch per (jobID, fireTime) still holds because MarkDispatched is
// itself idempotent and Due never returns an already dispatched fire.
type Dispatcher struct {
	queue     repository.Queue
	schedules repository.ScheduleRegistry
	jobs      repository.JobRepository
	nextFire  func(cronExpr string, after time.Time) (time.Time, error)
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
}

func NewDispatcher(
	queue repository.Queue,
	schedules repository.ScheduleRegistry,
	jobs repository.JobRepository,
	nextFire func(cronExpr string, after time.Time) (time.Time, error),
	logger *slog.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		schedules: schedules,
		jobs:      jobs,
		nextFire:  nextFire,
		logger:    logger.With("component", "dispatcher"),
		metrics:   m,
		interval:  interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.DispatchCycleLag.Observe(time.Since(start).Seconds())
		}
	}()

	now := time.Now().UTC()

	promoted, err := d.queue.Promote(ctx, now)
	if err != nil {
		d.logger.Error("promote delayed entries", "error", err)
	} else if promoted > 0 {
		d.logger.Info("promoted delayed entries", "count", promoted)
		if d.metrics != nil {
			d.metrics.QueuePromotedTotal.Add(float64(promoted))
		}
	}

	due, err := d.schedules.Due(ctx, now)
	if err != nil {
		d.logger.Error("list due schedules", "error", err)
		return
	}

	for _, fire := range due {
		d.fire(ctx, fire)
	}
}

// fire enqueues one cron-triggered callable invocation and advances the
// schedule's NextFireAt. The callable name itself is resolved later, by
// the worker pool reading the Job record — the queue entry only needs to
// carry jobID plus whatever static args/kwargs the Job was configured with.
func (d *Dispatcher) fire(ctx context.Context, due repository.DueFire) {
	job, err := d.jobs.GetByID(ctx, due.JobID)
	if err != nil {
		d.logger.Error("load job for fire", "job_id", due.JobID, "error", err)
		return
	}
	if job == nil || job.ScheduleCron == nil {
		// Job was deleted or unscheduled since Due() ran; Reconcile will
		// drop the stale registry entry on the next Job mutation.
		return
	}

	idempotencyKey := due.JobID + ":" + due.FireTime.UTC().Format(time.RFC3339Nano)
	if _, err := d.queue.Enqueue(ctx, due.JobID, job.Config.Args, job.Config.Kwargs, idempotencyKey); err != nil {
		d.logger.Error("enqueue cron fire", "job_id", due.JobID, "fire_time", due.FireTime, "error", err)
		return
	}

	next, err := d.nextFire(*job.ScheduleCron, due.FireTime)
	if err != nil {
		d.logger.Error("compute next fire", "job_id", due.JobID, "error", err)
		return
	}

	if err := d.schedules.MarkDispatched(ctx, due.JobID, due.FireTime, next); err != nil {
		d.logger.Error("mark dispatched", "job_id", due.JobID, "fire_time", due.FireTime, "error", err)
		return
	}

	if d.metrics != nil {
		d.metrics.ScheduleFiresTotal.WithLabelValues(job.Name).Inc()
	}
	d.logger.Info("fired scheduled job", "job_id", due.JobID, "job_name", job.Name, "fire_time", due.FireTime)
}

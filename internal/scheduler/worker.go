package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deptops/batchops/internal/callable"
	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/runctx"
)

// unresolvedCallableExitCode is the JobRun exit code recorded when a Job
// names a callable the registry has nothing bound to.
const unresolvedCallableExitCode = 2

// Worker is a pool of goroutines claiming queue entries and invoking the
// callable they name. Each claimed entry runs in its own goroutine up to
// concurrency; the poll loop blocks on WaitGroup so a slow batch never
// overlaps the next Claim tick.
type Worker struct {
	id           string
	queue        repository.Queue
	jobs         repository.JobRepository
	jobRuns      repository.JobRunRepository
	registry     *callable.Registry
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	leaseDur     time.Duration
	concurrency  int
}

func NewWorker(
	queue repository.Queue,
	jobs repository.JobRepository,
	jobRuns repository.JobRunRepository,
	registry *callable.Registry,
	logger *slog.Logger,
	m *metrics.Metrics,
	pollInterval, leaseDur time.Duration,
	concurrency int,
) *Worker {
	hostname, _ := os.Hostname()
	return &Worker{
		id:           fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		queue:        queue,
		jobs:         jobs,
		jobRuns:      jobRuns,
		registry:     registry,
		logger:       logger.With("component", "worker"),
		metrics:      m,
		pollInterval: pollInterval,
		leaseDur:     leaseDur,
		concurrency:  concurrency,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker started", "worker_id", w.id, "concurrency", w.concurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shut down", "worker_id", w.id)
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		entry, err := w.queue.Claim(ctx, w.id, w.leaseDur)
		if err != nil {
			w.logger.Error("claim", "error", err)
			break
		}
		if entry == nil {
			break
		}
		if w.metrics != nil {
			w.metrics.JobsClaimedTotal.WithLabelValues(w.id).Inc()
		}
		wg.Add(1)
		go func(e *repository.QueueEntry) {
			defer wg.Done()
			w.runEntry(ctx, e)
		}(entry)
	}
	wg.Wait()
}

// runEntry resolves the owning Job's callable and invokes it. An
// unresolved callable is a permanent, non-retried failure — a
// misconfigured Job rather than a data problem — so it gets a failed JobRun
// and is acked without ever reaching a callable or creating an Incident.
func (w *Worker) runEntry(ctx context.Context, entry *repository.QueueEntry) {
	if w.metrics != nil {
		w.metrics.WorkersInFlight.Inc()
		defer w.metrics.WorkersInFlight.Dec()
	}
	defer func() {
		if err := w.queue.Ack(ctx, w.id, entry.ID); err != nil {
			w.logger.Error("ack", "entry_id", entry.ID, "error", err)
		}
	}()

	job, err := w.jobs.GetByID(ctx, entry.JobID)
	if err != nil {
		w.logger.Error("load job", "job_id", entry.JobID, "error", err)
		return
	}
	if job == nil {
		w.logger.Error("job not found for queue entry", "job_id", entry.JobID, "entry_id", entry.ID)
		return
	}

	runID := runctx.NewID()
	runCtx := runctx.With(ctx, runID)
	started := time.Now()

	fn, ok := w.registry.Resolve(job.Config.Callable)
	if !ok {
		w.logger.Error("unresolved callable", "job_id", job.ID, "callable", job.Config.Callable, "run_id", runID)
		w.recordUnresolvedCallable(ctx, job, started)
		return
	}

	result, err := fn(runCtx, runID, callable.Args{Positional: entry.Args, Keyword: entry.Kwargs})
	duration := time.Since(started)

	if err != nil {
		w.logger.Error("callable failed", "job_id", job.ID, "callable", job.Config.Callable, "run_id", result.JobRunID, "error", err)
		if w.metrics != nil {
			w.metrics.JobRunDuration.WithLabelValues("failed").Observe(duration.Seconds())
		}
		return
	}

	w.logger.Info("callable succeeded", "job_id", job.ID, "callable", job.Config.Callable, "run_id", result.JobRunID, "duration", duration)
	if w.metrics != nil {
		w.metrics.JobRunDuration.WithLabelValues("success").Observe(duration.Seconds())
	}
}

// recordUnresolvedCallable leaves a JobRun behind for a misconfigured Job so
// an unresolved callable is never a silent no-op: exit_code=2, RunFailed, no
// Incident.
func (w *Worker) recordUnresolvedCallable(ctx context.Context, job *domain.Job, started time.Time) {
	exitCode := unresolvedCallableExitCode
	run, err := w.jobRuns.Create(ctx, &domain.JobRun{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Status:    domain.RunRunning,
		StartedAt: started,
		Logs:      fmt.Sprintf("unresolved callable: %s", job.Config.Callable),
	})
	if err != nil {
		w.logger.Error("create job run for unresolved callable", "job_id", job.ID, "error", err)
		return
	}

	finishedAt := time.Now().UTC()
	if err := w.jobRuns.Finalize(ctx, run.ID, domain.RunFailed, finishedAt, &exitCode); err != nil {
		w.logger.Error("finalize job run for unresolved callable", "job_id", job.ID, "run_id", run.ID, "error", err)
	}
	if w.metrics != nil {
		w.metrics.JobRunDuration.WithLabelValues("failed").Observe(finishedAt.Sub(started).Seconds())
	}
}

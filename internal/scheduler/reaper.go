package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/repository"
)

// Reaper periodically reclaims queue entries whose lease has expired
// without being acked — a worker that crashed or was killed mid-job —
// returning them to the FIFO for another worker to claim, preserving the
// queue's at-least-once delivery guarantee.
type Reaper struct {
	queue    repository.Queue
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewReaper(queue repository.Queue, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		queue:    queue,
		interval: interval,
		logger:   logger.With("component", "reaper"),
		metrics:  m,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	reclaimed, err := r.queue.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("reclaim expired leases", "error", err)
		return
	}
	if reclaimed > 0 {
		r.logger.Info("reclaimed expired leases", "count", reclaimed)
		if r.metrics != nil {
			r.metrics.LeasesReclaimedTotal.Add(float64(reclaimed))
		}
	}
}

package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/scheduler"
)

type fakeReclaimQueue struct {
	fakeClaimQueue
	reclaimed int
	calls     int
}

func (q *fakeReclaimQueue) ReclaimExpired(_ context.Context, _ time.Time) (int, error) {
	q.calls++
	return q.reclaimed, nil
}

var _ repository.Queue = (*fakeReclaimQueue)(nil)

func TestReaper_ReclaimsExpiredLeases(t *testing.T) {
	q := &fakeReclaimQueue{reclaimed: 2}
	r := scheduler.NewReaper(q, 10*time.Millisecond, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	r.Start(ctx)

	if q.calls == 0 {
		t.Fatal("expected ReclaimExpired to be called at least once")
	}
}

func TestReaper_NoExpiredLeasesIsQuiet(t *testing.T) {
	q := &fakeReclaimQueue{reclaimed: 0}
	r := scheduler.NewReaper(q, 10*time.Millisecond, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	r.Start(ctx)

	if q.calls == 0 {
		t.Fatal("expected the reaper to still poll even when nothing is reclaimed")
	}
}

package cronx_test

import (
	"testing"
	"time"

	"github.com/deptops/batchops/internal/cronx"
)

func TestNextFireAfter_EveryFiveMinutes(t *testing.T) {
	e := cronx.NewEvaluator(time.UTC)

	after := time.Date(2026, 7, 29, 12, 3, 0, 0, time.UTC)
	next, err := e.NextFireAfter("*/5 * * * *", after)
	if err != nil {
		t.Fatalf("NextFireAfter: %v", err)
	}

	want := time.Date(2026, 7, 29, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %s, want %s", next, want)
	}
}

func TestNextFireAfter_MalformedExpression(t *testing.T) {
	e := cronx.NewEvaluator(time.UTC)

	if _, err := e.NextFireAfter("not a cron expr", time.Now()); err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
}

func TestNextFireAfter_StepAndRange(t *testing.T) {
	e := cronx.NewEvaluator(time.UTC)

	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := e.NextFireAfter("0 9-17/4 * * 1-5", after)
	if err != nil {
		t.Fatalf("NextFireAfter: %v", err)
	}
	// 2026-01-01 is a Thursday; first match is the same day at 09:00.
	want := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %s, want %s", next, want)
	}
}

func TestNextFireAfter_AlwaysStrictlyAfter(t *testing.T) {
	e := cronx.NewEvaluator(time.UTC)

	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		next, err := e.NextFireAfter("*/15 * * * *", after)
		if err != nil {
			t.Fatalf("NextFireAfter: %v", err)
		}
		if !next.After(after) {
			t.Fatalf("expected %s to be strictly after %s", next, after)
		}
		after = next
	}
}

package knownerror_test

import (
	"context"
	"testing"
	"time"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/knownerror"
)

type fakeRepo struct {
	rules []*domain.KnownError
}

func (f *fakeRepo) ListOrdered(_ context.Context) ([]*domain.KnownError, error) {
	return f.rules, nil
}

func TestMatch_PicksHighestPriority(t *testing.T) {
	repo := &fakeRepo{rules: []*domain.KnownError{
		{ID: "1", Pattern: `no table found`, Name: "generic-pdf"},
		{ID: "2", Pattern: `no table found in pdf pages`, Name: "specific-pdf"},
	}}
	m := knownerror.NewMatcher(repo)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := m.Match("No table found in PDF pages 3-4")
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Name != "generic-pdf" {
		t.Fatalf("expected lowest-id rule to win, got %s", got.Name)
	}
}

func TestMatch_NoneMatch(t *testing.T) {
	repo := &fakeRepo{rules: []*domain.KnownError{
		{ID: "1", Pattern: `disk full`, Name: "disk"},
	}}
	m := knownerror.NewMatcher(repo)
	_ = m.Load(context.Background())

	if got := m.Match("unrelated failure"); got != nil {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestMatch_SkipsInvalidPattern(t *testing.T) {
	repo := &fakeRepo{rules: []*domain.KnownError{
		{ID: "1", Pattern: `(unclosed`, Name: "bad"},
		{ID: "2", Pattern: `disk full`, Name: "good"},
	}}
	m := knownerror.NewMatcher(repo)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := m.Match("disk full on /data")
	if got == nil || got.Name != "good" {
		t.Fatalf("expected good rule to match, got %v", got)
	}
}

func TestRetryDelay_FloorAndCeiling(t *testing.T) {
	if d := knownerror.RetryDelay(1); d != 30*time.Second {
		t.Fatalf("attempt 1: expected 30s floor, got %s", d)
	}
	if d := knownerror.RetryDelay(100); d != 10*time.Minute {
		t.Fatalf("attempt 100: expected 10m ceiling, got %s", d)
	}
	if d := knownerror.RetryDelay(4); d != 2*time.Minute {
		t.Fatalf("attempt 4: expected 2m, got %s", d)
	}
}

package pipeline

import (
	"errors"
	"testing"

	"github.com/deptops/batchops/internal/domain"
)

func TestCategory_MapsKnownKinds(t *testing.T) {
	cases := []struct {
		kind error
		want string
	}{
		{ErrParseFailure, "ingest"},
		{ErrEmptyCriticalField, "validation"},
		{ErrPlanPayload, "transform"},
		{ErrStageTimeout, "runtime"},
		{ErrInternal, "internal"},
	}
	for _, c := range cases {
		err := newStageError(domain.StageStandardize, c.kind, "")
		if got := Category(err); got != c.want {
			t.Errorf("Category(%v) = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestCategory_UnwrappedErrorIsUnknown(t *testing.T) {
	if got := Category(errors.New("plain")); got != "unknown" {
		t.Fatalf("expected unknown category for a non-StageError, got %q", got)
	}
}

func TestRetryable_OnlyTransientIO(t *testing.T) {
	if !Retryable(newStageError(domain.StagePublish, ErrTransientIO, "")) {
		t.Fatal("expected ErrTransientIO to be retryable")
	}
	if Retryable(newStageError(domain.StageValidate, ErrSchemaMismatch, "")) {
		t.Fatal("expected ErrSchemaMismatch to not be retryable")
	}
}

func TestDefaultSeverity_InternalIsHigh(t *testing.T) {
	if got := DefaultSeverity(newStageError(domain.StageSummarize, ErrInternal, "")); got != "high" {
		t.Fatalf("expected high severity for internal error, got %q", got)
	}
	if got := DefaultSeverity(newStageError(domain.StageValidate, ErrSchemaMismatch, "")); got != "medium" {
		t.Fatalf("expected medium severity for non-internal error, got %q", got)
	}
}

func TestStageError_ErrorIncludesStageAndMessage(t *testing.T) {
	err := newStageError(domain.StageTransform, ErrPlanPayload, "process_config.records missing")
	want := domain.StageTransform + ": " + ErrPlanPayload.Error() + ": process_config.records missing"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

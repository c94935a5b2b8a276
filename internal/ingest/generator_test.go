package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/deptops/batchops/internal/callable"
	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/ingest"
	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/storage"
)

func callableArgsWithoutFilter() callable.Args {
	return callable.Args{}
}

type fakeDepartmentRepo struct {
	records []*domain.DepartmentRecord
}

func (f *fakeDepartmentRepo) ListSince(_ context.Context, department, source string, since time.Time) ([]*domain.DepartmentRecord, error) {
	var out []*domain.DepartmentRecord
	for _, r := range f.records {
		if r.Department != department {
			continue
		}
		if r.RecordedAt.Before(since) {
			continue
		}
		if source != "" && r.Source != source {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeUploads struct {
	created []*domain.Upload
}

func (f *fakeUploads) Create(_ context.Context, u *domain.Upload) (*domain.Upload, error) {
	f.created = append(f.created, u)
	return u, nil
}
func (f *fakeUploads) GetByID(context.Context, string) (*domain.Upload, error) { return nil, nil }
func (f *fakeUploads) UpdateStatus(context.Context, string, domain.UploadStatus) error {
	return nil
}
func (f *fakeUploads) Publish(context.Context, string, string, []byte) error { return nil }

type fakeIngestQueue struct {
	enqueued []string
}

func (q *fakeIngestQueue) Enqueue(_ context.Context, jobID string, _ []any, _ map[string]any, _ string) (string, error) {
	q.enqueued = append(q.enqueued, jobID)
	return "entry", nil
}
func (q *fakeIngestQueue) EnqueueAt(ctx context.Context, jobID string, args []any, kwargs map[string]any, _ time.Time, key string) (string, error) {
	return q.Enqueue(ctx, jobID, args, kwargs, key)
}
func (q *fakeIngestQueue) Promote(context.Context, time.Time) (int, error) { return 0, nil }
func (q *fakeIngestQueue) Claim(context.Context, string, time.Duration) (*repository.QueueEntry, error) {
	return nil, nil
}
func (q *fakeIngestQueue) Ack(context.Context, string, string) error           { return nil }
func (q *fakeIngestQueue) ReclaimExpired(context.Context, time.Time) (int, error) { return 0, nil }

type fakeIngestJobRuns struct {
	byID map[string]*domain.JobRun
}

func newFakeIngestJobRuns() *fakeIngestJobRuns {
	return &fakeIngestJobRuns{byID: map[string]*domain.JobRun{}}
}

func (f *fakeIngestJobRuns) Create(_ context.Context, r *domain.JobRun) (*domain.JobRun, error) {
	f.byID[r.ID] = r
	return r, nil
}
func (f *fakeIngestJobRuns) LatestForUpload(context.Context, string) (*domain.JobRun, error) {
	return nil, nil
}
func (f *fakeIngestJobRuns) AppendStep(context.Context, string, domain.StepRecord) error { return nil }
func (f *fakeIngestJobRuns) UpdateStep(context.Context, string, domain.StepRecord) error { return nil }
func (f *fakeIngestJobRuns) Finalize(_ context.Context, runID string, status domain.RunStatus, finishedAt time.Time, exitCode *int) error {
	r := f.byID[runID]
	r.Status = status
	r.FinishedAt = &finishedAt
	r.ExitCode = exitCode
	return nil
}

func TestGenerator_CreatesUploadAndEnqueuesPipeline(t *testing.T) {
	records := &fakeDepartmentRepo{records: []*domain.DepartmentRecord{
		{ID: "r1", Department: "finance", Source: "payroll", Payload: map[string]any{"amount": "100"}, RecordedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "r2", Department: "finance", Source: "payroll", Payload: map[string]any{"amount": "200"}, RecordedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	uploads := &fakeUploads{}
	queue := &fakeIngestQueue{}
	store, err := storage.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("new storage root: %v", err)
	}

	jobRuns := newFakeIngestJobRuns()
	gen := ingest.NewGenerator("finance", records, uploads, queue, jobRuns, store, "ingest-finance-job", "pipeline-job")

	res, err := gen.Invoke(context.Background(), "run-1", callableArgsWithoutFilter())
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.JobRunID == "" {
		t.Fatal("expected a job run id to be returned")
	}
	if len(jobRuns.byID) != 1 {
		t.Fatalf("expected one job run created, got %d", len(jobRuns.byID))
	}
	for _, run := range jobRuns.byID {
		if run.Status != domain.RunSuccess {
			t.Fatalf("expected run success, got %s", run.Status)
		}
	}
	if len(uploads.created) != 1 {
		t.Fatalf("expected one upload created, got %d", len(uploads.created))
	}
	if uploads.created[0].Department != "finance" {
		t.Fatalf("expected department finance, got %s", uploads.created[0].Department)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "pipeline-job" {
		t.Fatalf("expected one enqueue against pipeline-job, got %v", queue.enqueued)
	}
}

func TestGenerator_NoNewRecordsIsNoop(t *testing.T) {
	records := &fakeDepartmentRepo{}
	uploads := &fakeUploads{}
	queue := &fakeIngestQueue{}
	store, err := storage.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("new storage root: %v", err)
	}

	gen := ingest.NewGenerator("hr", records, uploads, queue, newFakeIngestJobRuns(), store, "ingest-hr-job", "pipeline-job")

	res, err := gen.Invoke(context.Background(), "run-2", callableArgsWithoutFilter())
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.JobRunID == "" {
		t.Fatal("expected a job run id to be returned")
	}
	if len(uploads.created) != 0 {
		t.Fatal("expected no upload created when no new records exist")
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("expected no pipeline enqueue when no new records exist")
	}
}

func TestGenerator_SourceFilterRestrictsRecords(t *testing.T) {
	records := &fakeDepartmentRepo{records: []*domain.DepartmentRecord{
		{ID: "r1", Department: "finance", Source: "payroll", Payload: map[string]any{"amount": "100"}, RecordedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "r2", Department: "finance", Source: "timesheet", Payload: map[string]any{"hours": "8"}, RecordedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	uploads := &fakeUploads{}
	queue := &fakeIngestQueue{}
	store, err := storage.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("new storage root: %v", err)
	}

	gen := ingest.NewGenerator("finance", records, uploads, queue, newFakeIngestJobRuns(), store, "ingest-finance-job", "pipeline-job")

	args := callableArgsWithoutFilter()
	args.Keyword = map[string]any{"sourceFilter": []any{"timesheet"}}

	if _, err := gen.Invoke(context.Background(), "run-3", args); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(uploads.created) != 1 {
		t.Fatalf("expected one upload created from the filtered source, got %d", len(uploads.created))
	}
}

func TestGenerator_SecondInvokeWithNoNewRecordsDoesNotDuplicate(t *testing.T) {
	records := &fakeDepartmentRepo{records: []*domain.DepartmentRecord{
		{ID: "r1", Department: "finance", Source: "payroll", Payload: map[string]any{"amount": "100"}, RecordedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "r2", Department: "finance", Source: "payroll", Payload: map[string]any{"amount": "200"}, RecordedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	uploads := &fakeUploads{}
	queue := &fakeIngestQueue{}
	store, err := storage.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("new storage root: %v", err)
	}

	gen := ingest.NewGenerator("finance", records, uploads, queue, newFakeIngestJobRuns(), store, "ingest-finance-job", "pipeline-job")

	if _, err := gen.Invoke(context.Background(), "run-1", callableArgsWithoutFilter()); err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	if len(uploads.created) != 1 {
		t.Fatalf("expected one upload after first invoke, got %d", len(uploads.created))
	}

	if _, err := gen.Invoke(context.Background(), "run-2", callableArgsWithoutFilter()); err != nil {
		t.Fatalf("second invoke: %v", err)
	}
	if len(uploads.created) != 1 {
		t.Fatalf("expected no additional upload on second invoke with no new records, got %d total", len(uploads.created))
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected no additional enqueue on second invoke, got %d total", len(queue.enqueued))
	}
}

// Package ingest implements the Upload Ingest Generators: scheduled
// callables that synthesize a fresh Upload from a department feed and
// enqueue a pipeline execution for it.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deptops/batchops/internal/callable"
	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/storage"
)

// Generator synthesizes Upload records from DepartmentRecord rows recorded
// since its last run, one Upload per invocation covering every new row.
type Generator struct {
	department    string
	records       repository.DepartmentRepository
	uploads       repository.UploadRepository
	queue         repository.Queue
	jobRuns       repository.JobRunRepository
	storage       *storage.Root
	jobID         string
	pipelineJobID string
	watermark     time.Time
}

func NewGenerator(
	department string,
	records repository.DepartmentRepository,
	uploads repository.UploadRepository,
	queue repository.Queue,
	jobRuns repository.JobRunRepository,
	store *storage.Root,
	jobID string,
	pipelineJobID string,
) *Generator {
	return &Generator{
		department:    department,
		records:       records,
		uploads:       uploads,
		queue:         queue,
		jobRuns:       jobRuns,
		storage:       store,
		jobID:         jobID,
		pipelineJobID: pipelineJobID,
		watermark:     time.Unix(0, 0).UTC(),
	}
}

// CallableName returns the registry name this department's generator binds
// to — "ingest.<department>", matching the registry's explicit,
// no-reflection registration design.
func (g *Generator) CallableName() string {
	return fmt.Sprintf("ingest.%s", g.department)
}

// Invoke implements callable.Func. kwargs may carry "sourceFilter"
// ([]string) to restrict which DepartmentRecord.Source values are read. It
// owns its own JobRun bookkeeping end to end: a run is created on entry and
// finalized on every return path, success, no-op, or error.
func (g *Generator) Invoke(ctx context.Context, runID string, args callable.Args) (callable.Result, error) {
	started := time.Now().UTC()
	run, err := g.jobRuns.Create(ctx, &domain.JobRun{
		ID:        uuid.NewString(),
		JobID:     g.jobID,
		Status:    domain.RunRunning,
		StartedAt: started,
	})
	if err != nil {
		return callable.Result{}, fmt.Errorf("create job run: %w", err)
	}

	result, runErr := g.invoke(ctx, run.ID, args)

	finishedAt := time.Now().UTC()
	if runErr != nil {
		if err := g.jobRuns.Finalize(ctx, run.ID, domain.RunFailed, finishedAt, nil); err != nil {
			return callable.Result{}, err
		}
		return callable.Result{}, runErr
	}
	if err := g.jobRuns.Finalize(ctx, run.ID, domain.RunSuccess, finishedAt, nil); err != nil {
		return callable.Result{}, err
	}

	result.JobRunID = run.ID
	return result, nil
}

func (g *Generator) invoke(ctx context.Context, runID string, args callable.Args) (callable.Result, error) {
	sources := sourceFilter(args.Keyword)

	var all []*domain.DepartmentRecord
	if len(sources) == 0 {
		rows, err := g.records.ListSince(ctx, g.department, "", g.watermark)
		if err != nil {
			return callable.Result{}, fmt.Errorf("list department records: %w", err)
		}
		all = rows
	} else {
		for _, source := range sources {
			rows, err := g.records.ListSince(ctx, g.department, source, g.watermark)
			if err != nil {
				return callable.Result{}, fmt.Errorf("list department records for source %s: %w", source, err)
			}
			all = append(all, rows...)
		}
	}

	if len(all) == 0 {
		return callable.Result{JobRunID: runID}, nil
	}

	data, err := recordsToCSV(all)
	if err != nil {
		return callable.Result{}, fmt.Errorf("encode department feed as csv: %w", err)
	}

	uploadID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.csv", g.department, time.Now().UTC().Format("20060102T150405"))

	if err := g.storage.WriteUpload(uploadID, filename, data); err != nil {
		return callable.Result{}, fmt.Errorf("write generated upload: %w", err)
	}

	upload, err := g.uploads.Create(ctx, &domain.Upload{
		ID:          uploadID,
		Filename:    filename,
		Department:  g.department,
		ReceivedAt:  time.Now().UTC(),
		Status:      domain.UploadPending,
		ProcessMode: domain.ProcessTransform,
	})
	if err != nil {
		return callable.Result{}, fmt.Errorf("create upload: %w", err)
	}

	idempotencyKey := fmt.Sprintf("ingest:%s:%s", g.department, uploadID)
	if _, err := g.queue.Enqueue(ctx, g.pipelineJobID, []any{upload.ID}, nil, idempotencyKey); err != nil {
		return callable.Result{}, fmt.Errorf("enqueue pipeline execution: %w", err)
	}

	latest := all[0].RecordedAt
	for _, r := range all {
		if r.RecordedAt.After(latest) {
			latest = r.RecordedAt
		}
	}
	g.watermark = latest.Add(time.Nanosecond)

	return callable.Result{JobRunID: runID}, nil
}

func sourceFilter(kwargs map[string]any) []string {
	raw, ok := kwargs["sourceFilter"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// recordsToCSV flattens department records into a CSV: the union of all
// payload keys across records forms the header, in first-seen order.
func recordsToCSV(records []*domain.DepartmentRecord) ([]byte, error) {
	var columns []string
	seen := map[string]bool{}
	for _, r := range records {
		for k := range r.Payload {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := r.Payload[col]; ok {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// ensure Generator.Invoke satisfies callable.Func's shape at compile time
// via an explicit assignment rather than a type assertion, since method
// values already match the function type structurally.
var _ callable.Func = (*Generator)(nil).Invoke

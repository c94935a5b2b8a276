package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/deptops/batchops/internal/callable"
	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/incident"
	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/storage"
)

// CallableName is the symbolic identifier the Worker Pool's callable
// registry resolves to invoke the Executor.
const CallableName = "pipeline.execute"

// transientRetryAttempts, transientRetryBase bound the stage-local
// transient-io retry: up to 3 attempts, exponential backoff with jitter,
// capped far lower than the known-error auto-retry ceiling since it runs
// inside one stage's soft timeout.
const (
	transientRetryAttempts = 3
	transientRetryBase     = 2 * time.Second
	transientRetryCap      = 30 * time.Second
)

// Executor drives the five-stage pipeline for a single Upload, creating a
// JobRun and recording append-only StepRecords.
type Executor struct {
	uploads       repository.UploadRepository
	jobRuns       repository.JobRunRepository
	storage       *storage.Root
	incidents     *incident.Writer
	metrics       *metrics.Metrics
	pipelineJobID string
	stageTimeout  time.Duration
}

func NewExecutor(
	uploads repository.UploadRepository,
	jobRuns repository.JobRunRepository,
	store *storage.Root,
	incidents *incident.Writer,
	m *metrics.Metrics,
	pipelineJobID string,
	stageTimeout time.Duration,
) *Executor {
	return &Executor{
		uploads:       uploads,
		jobRuns:       jobRuns,
		storage:       store,
		incidents:     incidents,
		metrics:       m,
		pipelineJobID: pipelineJobID,
		stageTimeout:  stageTimeout,
	}
}

// Invoke adapts Execute to the callable.Func signature so the Worker Pool
// can resolve CallableName through internal/callable.Registry without
// knowing anything about uploads or the pipeline's own JobRun resumption.
func (e *Executor) Invoke(ctx context.Context, runID string, args callable.Args) (callable.Result, error) {
	if len(args.Positional) == 0 {
		return callable.Result{}, errors.New("pipeline.execute: missing upload id argument")
	}
	uploadID, ok := args.Positional[0].(string)
	if !ok {
		return callable.Result{}, errors.New("pipeline.execute: upload id argument is not a string")
	}

	run, err := e.Execute(ctx, uploadID)
	if err != nil {
		return callable.Result{}, err
	}
	if run == nil {
		return callable.Result{JobRunID: runID}, nil
	}
	return callable.Result{JobRunID: run.ID}, nil
}

// stageState carries the in-flight Form/Summary between stages within one
// Execute call; neither is persisted between runs, so a resumed execution
// quietly re-derives it by re-running the stages before the resume point
// without re-recording their (already-successful) StepRecords.
type stageState struct {
	form    *Form
	summary Summary
}

// Execute runs the pipeline for uploadID. It is idempotent: invoking it
// again on an already-published Upload is a no-op; invoking it on a
// `processing` Upload resumes the most recent prior JobRun from its first
// incomplete stage only when that run was never finalized. When that run
// was finalized (for example failed after transient-io retries), a fresh
// JobRun starts again from standardize.
func (e *Executor) Execute(ctx context.Context, uploadID string) (*domain.JobRun, error) {
	upload, err := e.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if upload.Status == domain.UploadPublished && upload.ReportCSV != nil && upload.ReportPDF != nil {
		return nil, nil
	}

	startStage := domain.StageStandardize
	var run *domain.JobRun

	if upload.Status == domain.UploadProcessing {
		prev, err := e.jobRuns.LatestForUpload(ctx, uploadID)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.FinishedAt == nil {
			run = prev
			if resume := prev.FirstIncompleteStage(); resume != "" {
				startStage = resume
			} else {
				startStage = domain.StagePublish
			}
		}
	}

	if run == nil {
		now := time.Now().UTC()
		run, err = e.jobRuns.Create(ctx, &domain.JobRun{
			ID:        uuid.NewString(),
			JobID:     e.pipelineJobID,
			UploadID:  &uploadID,
			Status:    domain.RunRunning,
			StartedAt: now,
		})
		if err != nil {
			return nil, err
		}
		if upload.Status != domain.UploadProcessing {
			if err := e.uploads.UpdateStatus(ctx, uploadID, domain.UploadProcessing); err != nil {
				return nil, err
			}
		}
	}

	state := &stageState{}

	for _, stage := range domain.PipelineStages {
		if earlier(stage, startStage) {
			form, summary, _, err := e.runStage(ctx, upload, stage, state)
			if err != nil {
				// A previously-successful stage failing on quiet replay
				// means the source changed out from under us; treat it
				// like a fresh failure at this stage.
				return e.failStage(ctx, upload, run, stage, err, time.Now().UTC())
			}
			state.form, state.summary = form, summary
			continue
		}

		stepStart := time.Now().UTC()
		if err := e.jobRuns.AppendStep(ctx, run.ID, domain.StepRecord{
			Name: stage, Status: domain.StepRunning, StartedAt: &stepStart,
		}); err != nil {
			return nil, err
		}

		stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
		form, summary, logMsg, err := e.runStage(stageCtx, upload, stage, state)
		cancel()

		finishedAt := time.Now().UTC()
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			err = newStageError(stage, ErrStageTimeout, "")
		}

		if err != nil {
			if updErr := e.jobRuns.UpdateStep(ctx, run.ID, domain.StepRecord{
				Name: stage, Status: domain.StepFailed, StartedAt: &stepStart, FinishedAt: &finishedAt, Logs: err.Error(),
			}); updErr != nil {
				return nil, updErr
			}
			return e.failStage(ctx, upload, run, stage, err, finishedAt)
		}

		if updErr := e.jobRuns.UpdateStep(ctx, run.ID, domain.StepRecord{
			Name: stage, Status: domain.StepSuccess, StartedAt: &stepStart, FinishedAt: &finishedAt, Logs: logMsg,
		}); updErr != nil {
			return nil, updErr
		}
		if e.metrics != nil {
			e.metrics.StageDuration.WithLabelValues(stage, "success").Observe(finishedAt.Sub(stepStart).Seconds())
		}

		state.form, state.summary = form, summary
	}

	finishedAt := time.Now().UTC()
	if err := e.jobRuns.Finalize(ctx, run.ID, domain.RunSuccess, finishedAt, nil); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.JobRunDuration.WithLabelValues("success").Observe(finishedAt.Sub(run.StartedAt).Seconds())
	}

	for _, stage := range domain.PipelineStages {
		if err := e.incidents.AutoResolve(ctx, uploadID, stage, finishedAt); err != nil {
			return run, err
		}
	}

	return run, nil
}

// earlier reports whether stage a comes strictly before stage b in
// domain.PipelineStages.
func earlier(a, b string) bool {
	ia, ib := -1, -1
	for i, s := range domain.PipelineStages {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	return ia < ib
}

func (e *Executor) failStage(ctx context.Context, upload *domain.Upload, run *domain.JobRun, stage string, stageErr error, finishedAt time.Time) (*domain.JobRun, error) {
	if err := e.jobRuns.Finalize(ctx, run.ID, domain.RunFailed, finishedAt, nil); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.StageFailureTotal.WithLabelValues(stage, Category(stageErr)).Inc()
		e.metrics.JobRunDuration.WithLabelValues("failed").Observe(finishedAt.Sub(run.StartedAt).Seconds())
	}

	if Retryable(stageErr) {
		// transient-io: JobRun log only, no Incident.
		return run, nil
	}

	if err := e.uploads.UpdateStatus(ctx, upload.ID, domain.UploadFailed); err != nil {
		return run, err
	}

	runID := run.ID
	if _, err := e.incidents.RecordFailure(ctx, incident.FailureInput{
		UploadID:        upload.ID,
		JobRunID:        &runID,
		Stage:           stage,
		Category:        Category(stageErr),
		Severity:        DefaultSeverity(stageErr),
		ErrorMessage:    stageErr.Error(),
		DetectionSource: domain.DetectionEngine,
		Now:             finishedAt,
	}); err != nil {
		return run, err
	}

	return run, nil
}

// runStage dispatches one stage's pure logic, reading the source file
// through the storage root (with transient-io retry) where needed.
func (e *Executor) runStage(ctx context.Context, upload *domain.Upload, stage string, state *stageState) (*Form, Summary, string, error) {
	switch stage {
	case domain.StageStandardize:
		data, err := e.readUploadWithRetry(ctx, upload)
		if err != nil {
			return nil, Summary{}, "", err
		}
		form, err := Standardize(upload.Filename, data)
		return form, state.summary, "", err

	case domain.StageValidate:
		if err := Validate(state.form); err != nil {
			return state.form, state.summary, "", err
		}
		return state.form, state.summary, "", nil

	case domain.StageTransform:
		form, logMsg, err := Transform(state.form, upload.ProcessMode, upload.ProcessConfig)
		return form, state.summary, logMsg, err

	case domain.StageSummarize:
		return state.form, Summarize(state.form), "", nil

	case domain.StagePublish:
		csvText, pdfBytes, err := Publish(upload.ID, upload.ProcessMode, state.form, state.summary)
		if err != nil {
			return state.form, state.summary, "", err
		}
		if err := e.writeExportWithRetry(ctx, upload.ID, "csv", []byte(csvText)); err != nil {
			return state.form, state.summary, "", err
		}
		if err := e.writeExportWithRetry(ctx, upload.ID, "pdf", pdfBytes); err != nil {
			return state.form, state.summary, "", err
		}
		if err := e.uploads.Publish(ctx, upload.ID, csvText, pdfBytes); err != nil {
			return state.form, state.summary, "", newStageError(domain.StagePublish, ErrTransientIO, err.Error())
		}
		return state.form, state.summary, "", nil

	default:
		return state.form, state.summary, "", newStageError(stage, ErrInternal, "unknown stage")
	}
}

func (e *Executor) readUploadWithRetry(ctx context.Context, upload *domain.Upload) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < transientRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		data, err := e.storage.ReadUpload(upload.ID, upload.Filename)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, newStageError(domain.StageStandardize, ErrTransientIO, lastErr.Error())
}

func (e *Executor) writeExportWithRetry(ctx context.Context, uploadID, ext string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < transientRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}
		if err := e.storage.WriteExport(uploadID, ext, data); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return newStageError(domain.StagePublish, ErrTransientIO, lastErr.Error())
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(transientRetryBase) * math.Pow(2, float64(attempt-1)))
	if delay > transientRetryCap {
		delay = transientRetryCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay/2) + 1))
	delay = delay/2 + jitter

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

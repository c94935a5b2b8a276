// Package incident implements the Incident/Ticket Writer: creates and
// mutates Incident records on pipeline failures, enforces exactly one open
// Incident per (Upload, stage), and exposes the manual workflow actions
// (assign/analyze/resolve/retry/archive) an external surface calls through.
package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/knownerror"
	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/repository"
)

// FailureInput describes one pipeline stage failure to record.
type FailureInput struct {
	UploadID        string
	JobRunID        *string
	Stage           string
	Category        string
	Severity        string
	ErrorMessage    string
	DetectionSource domain.DetectionSource
	Now             time.Time
}

// Writer records pipeline failures as Incidents and drives known-error
// governed auto-retry.
type Writer struct {
	incidents     repository.IncidentRepository
	queue         repository.Queue
	matcher       *knownerror.Matcher
	metrics       *metrics.Metrics
	pipelineJobID string
}

func NewWriter(incidents repository.IncidentRepository, queue repository.Queue, matcher *knownerror.Matcher, m *metrics.Metrics, pipelineJobID string) *Writer {
	return &Writer{
		incidents:     incidents,
		queue:         queue,
		matcher:       matcher,
		metrics:       m,
		pipelineJobID: pipelineJobID,
	}
}

// RecordFailure implements §4.7's create-or-update-and-maybe-auto-retry
// logic. It returns the affected Incident.
func (w *Writer) RecordFailure(ctx context.Context, in FailureInput) (*domain.Incident, error) {
	matched := w.matcher.Match(in.ErrorMessage)

	existing, err := w.incidents.OpenForUploadStage(ctx, in.UploadID, in.Stage)
	if err != nil {
		return nil, fmt.Errorf("lookup open incident: %w", err)
	}

	var inc *domain.Incident
	if existing == nil {
		inc = &domain.Incident{
			ID:              uuid.NewString(),
			UploadID:        in.UploadID,
			JobRunID:        in.JobRunID,
			Stage:           in.Stage,
			State:           domain.IncidentOpen,
			Severity:        in.Severity,
			Category:        in.Category,
			Error:           in.ErrorMessage,
			DetectionSource: in.DetectionSource,
			CreatedAt:       in.Now,
		}
		applyKnownError(inc, matched)
		inc.AppendEvent(in.Now, "engine", domain.EventOpened, "")

		inc, err = w.incidents.Create(ctx, inc)
		if err != nil {
			return nil, fmt.Errorf("create incident: %w", err)
		}
		if w.metrics != nil {
			w.metrics.IncidentsOpenedTotal.WithLabelValues(inc.Category).Inc()
		}
	} else {
		inc = existing
		inc.Error = in.ErrorMessage
		if inc.JobRunID == nil {
			inc.JobRunID = in.JobRunID
		}
		applyKnownError(inc, matched)
		inc.AppendEvent(in.Now, "engine", domain.EventRecurrence, "")
		if err := w.incidents.Update(ctx, inc); err != nil {
			return nil, fmt.Errorf("update incident: %w", err)
		}
	}

	if matched != nil && matched.AutoRetry && inc.AutoRetryCount < inc.MaxAutoRetries {
		if err := w.scheduleAutoRetry(ctx, inc, matched, in.Now); err != nil {
			return nil, err
		}
	}

	return inc, nil
}

func applyKnownError(inc *domain.Incident, matched *domain.KnownError) {
	if matched == nil {
		return
	}
	inc.IsKnown = true
	matchedID := matched.ID
	inc.MatchedKnownError = &matchedID
	inc.MaxAutoRetries = matched.MaxAutoRetries
	if inc.RootCause == "" {
		inc.RootCause = matched.RootCause
	}
	if inc.CorrectiveAction == "" {
		inc.CorrectiveAction = matched.CorrectiveAction
	}
	if inc.Severity == "" {
		inc.Severity = matched.Severity
	}
}

// scheduleAutoRetry enqueues a fresh pipeline execution for the Incident's
// Upload with the known-error-governed linear backoff, and increments the
// Incident's retry counter.
func (w *Writer) scheduleAutoRetry(ctx context.Context, inc *domain.Incident, matched *domain.KnownError, now time.Time) error {
	attempt := inc.AutoRetryCount + 1
	delay := knownerror.RetryDelay(attempt)
	fireAt := now.Add(delay)
	idempotencyKey := fmt.Sprintf("incident-retry:%s:%d", inc.ID, attempt)

	_, err := w.queue.EnqueueAt(ctx, w.pipelineJobID, []any{inc.UploadID}, nil, fireAt, idempotencyKey)
	if err != nil {
		return fmt.Errorf("enqueue auto retry: %w", err)
	}

	inc.AutoRetryCount = attempt
	inc.AppendEvent(now, "engine", domain.EventAutoRetryScheduled, fmt.Sprintf("attempt %d/%d in %s", attempt, inc.MaxAutoRetries, delay))
	if err := w.incidents.Update(ctx, inc); err != nil {
		return fmt.Errorf("update incident after scheduling retry: %w", err)
	}

	if w.metrics != nil {
		w.metrics.AutoRetriesTotal.WithLabelValues(matched.Name).Inc()
	}
	return nil
}

// AutoResolve closes the open Incident for (uploadID, stage), if any, after
// a redelivered pipeline run succeeds: it resolves the Incident with a
// timeline event auto_resolved, preserving the full failure record for
// audit.
func (w *Writer) AutoResolve(ctx context.Context, uploadID, stage string, now time.Time) error {
	inc, err := w.incidents.OpenForUploadStage(ctx, uploadID, stage)
	if err != nil {
		return fmt.Errorf("lookup open incident: %w", err)
	}
	if inc == nil {
		return nil
	}

	inc.State = domain.IncidentResolved
	inc.ResolvedAt = &now
	inc.AppendEvent(now, "engine", domain.EventAutoResolved, "")

	if err := w.incidents.Update(ctx, inc); err != nil {
		return fmt.Errorf("update incident on auto-resolve: %w", err)
	}
	if w.metrics != nil {
		w.metrics.AutoResolvedTotal.Inc()
	}
	return nil
}

// Assign transitions an open Incident to in_progress on first assignment.
func (w *Writer) Assign(ctx context.Context, incidentID, assignee string, now time.Time) error {
	inc, err := w.get(ctx, incidentID)
	if err != nil {
		return err
	}
	inc.Assignee = &assignee
	if inc.State == domain.IncidentOpen {
		inc.State = domain.IncidentInProgress
	}
	inc.AppendEvent(now, assignee, domain.EventAssigned, "")
	return w.incidents.Update(ctx, inc)
}

// Analyze records severity/impact/analysis fields without changing state.
func (w *Writer) Analyze(ctx context.Context, incidentID, actor, severity, impactSummary, analysisNotes string, now time.Time) error {
	inc, err := w.get(ctx, incidentID)
	if err != nil {
		return err
	}
	inc.Severity = severity
	inc.ImpactSummary = impactSummary
	inc.AnalysisNotes = analysisNotes
	inc.AppendEvent(now, actor, domain.EventAnalyzed, "")
	return w.incidents.Update(ctx, inc)
}

// Resolve moves an Incident to resolved; fails if already archived.
func (w *Writer) Resolve(ctx context.Context, incidentID, actor, rootCause, correctiveAction, resolutionReport string, now time.Time) error {
	inc, err := w.get(ctx, incidentID)
	if err != nil {
		return err
	}
	if inc.State == domain.IncidentArchived {
		return domain.ErrIncidentArchived
	}
	inc.State = domain.IncidentResolved
	inc.RootCause = rootCause
	inc.CorrectiveAction = correctiveAction
	inc.ResolutionReport = resolutionReport
	inc.ResolvedAt = &now
	inc.AppendEvent(now, actor, domain.EventResolved, "")
	return w.incidents.Update(ctx, inc)
}

// Retry re-enqueues the pipeline for the Incident's Upload; permitted in
// any non-archived state.
func (w *Writer) Retry(ctx context.Context, incidentID, actor, notes string, now time.Time) error {
	inc, err := w.get(ctx, incidentID)
	if err != nil {
		return err
	}
	if inc.State == domain.IncidentArchived {
		return domain.ErrIncidentArchived
	}

	idempotencyKey := fmt.Sprintf("manual-retry:%s:%d", inc.ID, now.UnixNano())
	if _, err := w.queue.Enqueue(ctx, w.pipelineJobID, []any{inc.UploadID}, nil, idempotencyKey); err != nil {
		return fmt.Errorf("enqueue manual retry: %w", err)
	}

	inc.AppendEvent(now, actor, domain.EventManualRetry, notes)
	return w.incidents.Update(ctx, inc)
}

// Archive moves a resolved Incident to archived; fails from any other state.
func (w *Writer) Archive(ctx context.Context, incidentID, actor string, now time.Time) error {
	inc, err := w.get(ctx, incidentID)
	if err != nil {
		return err
	}
	if inc.State != domain.IncidentResolved {
		return fmt.Errorf("archive: incident %s is not resolved", incidentID)
	}
	inc.State = domain.IncidentArchived
	inc.ArchivedAt = &now
	inc.AppendEvent(now, actor, domain.EventArchived, "")
	return w.incidents.Update(ctx, inc)
}

func (w *Writer) get(ctx context.Context, incidentID string) (*domain.Incident, error) {
	inc, err := w.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	return inc, nil
}

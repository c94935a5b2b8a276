package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type IncidentRepository struct {
	pool *pgxpool.Pool
}

func NewIncidentRepository(pool *pgxpool.Pool) *IncidentRepository {
	return &IncidentRepository{pool: pool}
}

const baseIncidentQuery = `
	SELECT id, upload_id, job_run_id, stage, state, severity, category, error,
	       root_cause, corrective_action, impact_summary, analysis_notes,
	       resolution_report, matched_known_error, is_known, auto_retry_count,
	       max_auto_retries, detection_source, assignee, timeline,
	       created_at, resolved_at, archived_at
	FROM incidents`

func (r *IncidentRepository) Create(ctx context.Context, i *domain.Incident) (*domain.Incident, error) {
	timeline, err := json.Marshal(i.Timeline)
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}

	query := `
		INSERT INTO incidents (
			upload_id, job_run_id, stage, state, severity, category, error,
			root_cause, corrective_action, impact_summary, analysis_notes,
			resolution_report, matched_known_error, is_known, auto_retry_count,
			max_auto_retries, detection_source, assignee, timeline
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, upload_id, job_run_id, stage, state, severity, category, error,
		          root_cause, corrective_action, impact_summary, analysis_notes,
		          resolution_report, matched_known_error, is_known, auto_retry_count,
		          max_auto_retries, detection_source, assignee, timeline,
		          created_at, resolved_at, archived_at`

	row := r.pool.QueryRow(ctx, query,
		i.UploadID, i.JobRunID, i.Stage, i.State, i.Severity, i.Category, i.Error,
		i.RootCause, i.CorrectiveAction, i.ImpactSummary, i.AnalysisNotes,
		i.ResolutionReport, i.MatchedKnownError, i.IsKnown, i.AutoRetryCount,
		i.MaxAutoRetries, i.DetectionSource, i.Assignee, timeline,
	)
	return scanIncident(row)
}

func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	return scanIncident(r.pool.QueryRow(ctx, baseIncidentQuery+` WHERE id = $1`, id))
}

// OpenForUploadStage enforces "exactly one open Incident per (Upload,
// stage)" by looking up any non-resolved, non-archived row.
func (r *IncidentRepository) OpenForUploadStage(ctx context.Context, uploadID, stage string) (*domain.Incident, error) {
	query := baseIncidentQuery + `
		WHERE upload_id = $1 AND stage = $2
		  AND state NOT IN ('resolved', 'archived')
		ORDER BY created_at DESC
		LIMIT 1`
	incident, err := scanIncident(r.pool.QueryRow(ctx, query, uploadID, stage))
	if errors.Is(err, domain.ErrIncidentNotFound) {
		return nil, nil
	}
	return incident, err
}

func (r *IncidentRepository) Update(ctx context.Context, i *domain.Incident) error {
	timeline, err := json.Marshal(i.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	query := `
		UPDATE incidents
		SET    state = $2, severity = $3, category = $4, error = $5,
		       root_cause = $6, corrective_action = $7, impact_summary = $8,
		       analysis_notes = $9, resolution_report = $10,
		       matched_known_error = $11, is_known = $12, auto_retry_count = $13,
		       max_auto_retries = $14, assignee = $15, timeline = $16,
		       resolved_at = $17, archived_at = $18
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		i.ID, i.State, i.Severity, i.Category, i.Error,
		i.RootCause, i.CorrectiveAction, i.ImpactSummary,
		i.AnalysisNotes, i.ResolutionReport,
		i.MatchedKnownError, i.IsKnown, i.AutoRetryCount,
		i.MaxAutoRetries, i.Assignee, timeline,
		i.ResolvedAt, i.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIncidentNotFound
	}
	return nil
}

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var i domain.Incident
	var timeline []byte
	err := row.Scan(
		&i.ID, &i.UploadID, &i.JobRunID, &i.Stage, &i.State, &i.Severity, &i.Category, &i.Error,
		&i.RootCause, &i.CorrectiveAction, &i.ImpactSummary, &i.AnalysisNotes,
		&i.ResolutionReport, &i.MatchedKnownError, &i.IsKnown, &i.AutoRetryCount,
		&i.MaxAutoRetries, &i.DetectionSource, &i.Assignee, &timeline,
		&i.CreatedAt, &i.ResolvedAt, &i.ArchivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &i.Timeline); err != nil {
			return nil, fmt.Errorf("unmarshal timeline: %w", err)
		}
	}
	return &i, nil
}

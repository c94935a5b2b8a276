package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

func (r *UploadRepository) Create(ctx context.Context, u *domain.Upload) (*domain.Upload, error) {
	query := `
		INSERT INTO uploads (
			filename, department, received_at, status, process_mode, process_config
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, filename, department, received_at, status, process_mode,
		          process_config, report_csv, report_pdf, report_generated_at,
		          created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		u.Filename, u.Department, u.ReceivedAt, u.Status, u.ProcessMode, u.ProcessConfig,
	)
	return scanUpload(row)
}

func (r *UploadRepository) GetByID(ctx context.Context, id string) (*domain.Upload, error) {
	query := `
		SELECT id, filename, department, received_at, status, process_mode,
		       process_config, report_csv, report_pdf, report_generated_at,
		       created_at, updated_at
		FROM uploads WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanUpload(row)
}

// UpdateStatus transitions status; leaving UploadPublished clears report
// artifacts in the same statement so a stale download is never served
// after a subsequent run fails.
func (r *UploadRepository) UpdateStatus(ctx context.Context, id string, status domain.UploadStatus) error {
	query := `
		UPDATE uploads
		SET    status = $2,
		       report_csv = CASE WHEN $2 = 'published' THEN report_csv ELSE NULL END,
		       report_pdf = CASE WHEN $2 = 'published' THEN report_pdf ELSE NULL END,
		       report_generated_at = CASE WHEN $2 = 'published' THEN report_generated_at ELSE NULL END,
		       updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUploadNotFound
	}
	return nil
}

// Publish sets both report artifacts, report_generated_at and status in one
// statement — the only path to UploadPublished.
func (r *UploadRepository) Publish(ctx context.Context, id string, csv string, pdf []byte) error {
	query := `
		UPDATE uploads
		SET    status = 'published',
		       report_csv = $2,
		       report_pdf = $3,
		       report_generated_at = NOW(),
		       updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, csv, pdf)
	if err != nil {
		return fmt.Errorf("publish upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUploadNotFound
	}
	return nil
}

func scanUpload(row rowScanner) (*domain.Upload, error) {
	var u domain.Upload
	err := row.Scan(
		&u.ID, &u.Filename, &u.Department, &u.ReceivedAt, &u.Status, &u.ProcessMode,
		&u.ProcessConfig, &u.ReportCSV, &u.ReportPDF, &u.ReportGeneratedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUploadNotFound
		}
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	return &u, nil
}

package repository

import (
	"context"

	"github.com/deptops/batchops/internal/domain"
)

// UploadRepository is the narrow persistence contract the pipeline and
// ingest generators depend on. Concrete implementations live under
// internal/infrastructure; tests use an in-memory fake against this same
// interface.
type UploadRepository interface {
	Create(ctx context.Context, u *domain.Upload) (*domain.Upload, error)
	GetByID(ctx context.Context, id string) (*domain.Upload, error)

	// UpdateStatus transitions status and, on leaving UploadPublished,
	// clears report artifacts (see domain.Upload.ClearArtifacts).
	UpdateStatus(ctx context.Context, id string, status domain.UploadStatus) error

	// Publish sets both report artifacts, report_generated_at, and status
	// atomically — the only path to UploadPublished.
	Publish(ctx context.Context, id string, csv string, pdf []byte) error
}

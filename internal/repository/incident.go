package repository

import (
	"context"

	"github.com/deptops/batchops/internal/domain"
)

type IncidentRepository interface {
	Create(ctx context.Context, i *domain.Incident) (*domain.Incident, error)
	GetByID(ctx context.Context, id string) (*domain.Incident, error)

	// OpenForUploadStage returns the single open (non-resolved,
	// non-archived) Incident for (uploadID, stage), or nil if none exists —
	// enforces "exactly one open Incident per (Upload, stage)" (§4.7).
	OpenForUploadStage(ctx context.Context, uploadID, stage string) (*domain.Incident, error)

	Update(ctx context.Context, i *domain.Incident) error
}

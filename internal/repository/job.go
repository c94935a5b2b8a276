package repository

import (
	"context"

	"github.com/deptops/batchops/internal/domain"
)

type JobRepository interface {
	Create(ctx context.Context, j *domain.Job) (*domain.Job, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetByName(ctx context.Context, name string) (*domain.Job, error)
	Update(ctx context.Context, j *domain.Job) error
	Delete(ctx context.Context, id string) error

	// All returns the authoritative job set, used by Schedule Registry
	// reconciliation.
	All(ctx context.Context) ([]*domain.Job, error)
}

package repository

import (
	"context"

	"github.com/deptops/batchops/internal/domain"
)

// KnownErrorRepository is read-only from the core's perspective — rules
// are authored through the out-of-scope REST/admin surface.
type KnownErrorRepository interface {
	// ListOrdered returns all KnownError rows ordered by priority: lowest
	// id (earliest created) first, matching §4.6's matching rule.
	ListOrdered(ctx context.Context) ([]*domain.KnownError, error)
}

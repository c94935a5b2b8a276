package repository

import (
	"context"
	"time"

	"github.com/deptops/batchops/internal/domain"
)

// DepartmentRepository is read-only: the core never mutates department feed
// rows, only ingest generators consume them.
type DepartmentRepository interface {
	// ListSince returns records for the given department, further narrowed
	// to source (or all of that department's sources when source is ""),
	// recorded at or after since, oldest first.
	ListSince(ctx context.Context, department, source string, since time.Time) ([]*domain.DepartmentRecord, error)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type KnownErrorRepository struct {
	pool *pgxpool.Pool
}

func NewKnownErrorRepository(pool *pgxpool.Pool) *KnownErrorRepository {
	return &KnownErrorRepository{pool: pool}
}

// ListOrdered returns rows ordered by id ascending — lowest id (earliest
// created) wins ties in the matcher's priority rule.
func (r *KnownErrorRepository) ListOrdered(ctx context.Context) ([]*domain.KnownError, error) {
	query := `
		SELECT id, name, pattern, severity, category, corrective_action,
		       root_cause, auto_retry, max_auto_retries
		FROM known_errors
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list known errors: %w", err)
	}
	defer rows.Close()

	var out []*domain.KnownError
	for rows.Next() {
		var ke domain.KnownError
		if err := rows.Scan(
			&ke.ID, &ke.Name, &ke.Pattern, &ke.Severity, &ke.Category,
			&ke.CorrectiveAction, &ke.RootCause, &ke.AutoRetry, &ke.MaxAutoRetries,
		); err != nil {
			return nil, fmt.Errorf("scan known error: %w", err)
		}
		out = append(out, &ke)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type DepartmentRepository struct {
	pool *pgxpool.Pool
}

func NewDepartmentRepository(pool *pgxpool.Pool) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

func (r *DepartmentRepository) ListSince(ctx context.Context, department, source string, since time.Time) ([]*domain.DepartmentRecord, error) {
	query := `
		SELECT id, department, source, payload, recorded_at
		FROM department_records
		WHERE department = $1 AND recorded_at >= $2 AND ($3 = '' OR source = $3)
		ORDER BY recorded_at ASC`

	rows, err := r.pool.Query(ctx, query, department, since, source)
	if err != nil {
		return nil, fmt.Errorf("list department records: %w", err)
	}
	defer rows.Close()

	var out []*domain.DepartmentRecord
	for rows.Next() {
		var rec domain.DepartmentRecord
		if err := rows.Scan(&rec.ID, &rec.Department, &rec.Source, &rec.Payload, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan department record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

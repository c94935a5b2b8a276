package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO jobs (name, job_type, callable, args, kwargs, schedule_cron)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, job_type, callable, args, kwargs, schedule_cron, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		j.Name, j.JobType, j.Config.Callable, j.Config.Args, j.Config.Kwargs, j.ScheduleCron,
	)
	created, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateJobName
		}
		return nil, err
	}
	return created, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, baseJobQuery+` WHERE id = $1`, id)
	return scanJob(row)
}

func (r *JobRepository) GetByName(ctx context.Context, name string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, baseJobQuery+` WHERE name = $1`, name)
	return scanJob(row)
}

func (r *JobRepository) Update(ctx context.Context, j *domain.Job) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET    name = $2, job_type = $3, callable = $4, args = $5, kwargs = $6,
		       schedule_cron = $7, updated_at = NOW()
		WHERE id = $1`,
		j.ID, j.Name, j.JobType, j.Config.Callable, j.Config.Args, j.Config.Kwargs, j.ScheduleCron,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) All(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, baseJobQuery+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const baseJobQuery = `
	SELECT id, name, job_type, callable, args, kwargs, schedule_cron, created_at, updated_at
	FROM jobs`

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Name, &j.JobType, &j.Config.Callable, &j.Config.Args, &j.Config.Kwargs,
		&j.ScheduleCron, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

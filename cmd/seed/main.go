// seed loads known-error rules, sample department feed rows, and the
// ingest Job fixtures a fresh BatchOps database needs before the
// engine has anything to do. Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/infrastructure/postgres"
	"github.com/deptops/batchops/internal/repository"
)

type knownErrorSpec struct {
	name             string
	pattern          string
	severity         string
	category         string
	correctiveAction string
	rootCause        string
	autoRetry        bool
	maxAutoRetries   int
}

var knownErrors = []knownErrorSpec{
	{
		name:             "connection-reset",
		pattern:          `(?i)connection reset|broken pipe`,
		severity:         "medium",
		category:         domain.CategoryRuntime,
		correctiveAction: "no action needed, auto-retry will recover the upload",
		rootCause:        "storage backend dropped the connection mid-read or mid-write",
		autoRetry:        true,
		maxAutoRetries:   5,
	},
	{
		name:             "malformed-header-row",
		pattern:          `(?i)missing required column|schema mismatch`,
		severity:         "high",
		category:         domain.CategoryValidation,
		correctiveAction: "ask the source department to re-export with the standard header row",
		rootCause:        "upstream feed changed its column layout without notice",
		autoRetry:        false,
		maxAutoRetries:   0,
	},
	{
		name:             "unsupported-source-format",
		pattern:          `(?i)unsupported format`,
		severity:         "high",
		category:         domain.CategoryIngest,
		correctiveAction: "convert the source file to csv or xlsx before resubmitting",
		rootCause:        "an upload arrived in a format standardize does not parse",
		autoRetry:        false,
		maxAutoRetries:   0,
	},
}

type departmentRecordSpec struct {
	department string
	source     string
	payload    map[string]any
}

var departmentRecords = []departmentRecordSpec{
	{"finance", "payroll", map[string]any{"employee_id": "1001", "gross_pay": "4200.00"}},
	{"finance", "payroll", map[string]any{"employee_id": "1002", "gross_pay": "3875.50"}},
	{"finance", "invoices", map[string]any{"invoice_id": "INV-5001", "amount": "1200.00"}},
	{"logistics", "shipments", map[string]any{"shipment_id": "SHP-9001", "status": "delivered"}},
	{"logistics", "shipments", map[string]any{"shipment_id": "SHP-9002", "status": "in_transit"}},
	{"hr", "timesheets", map[string]any{"employee_id": "2001", "hours": "38.5"}},
}

type jobSpec struct {
	name         string
	callable     string
	scheduleCron string
	kwargs       map[string]any
}

var jobs = []jobSpec{
	{"ingest-finance", "ingest.finance", "0 */2 * * *", nil},
	{"ingest-logistics", "ingest.logistics", "0 */2 * * *", map[string]any{"sourceFilter": []any{"shipments"}}},
	{"ingest-hr", "ingest.hr", "0 6 * * *", nil},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	insertedErrors, err := seedKnownErrors(ctx, pool)
	if err != nil {
		log.Fatalf("seed known errors: %v", err)
	}

	insertedRecords, err := seedDepartmentRecords(ctx, pool)
	if err != nil {
		log.Fatalf("seed department records: %v", err)
	}

	insertedJobs, skippedJobs, err := seedJobs(ctx, postgres.NewJobRepository(pool))
	if err != nil {
		log.Fatalf("seed jobs: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Known error rules:   %d\n", insertedErrors)
	fmt.Printf("  Department records:  %d\n", insertedRecords)
	fmt.Printf("  Jobs created:        %d  (skipped %d already existing)\n", insertedJobs, skippedJobs)
	fmt.Println()
	fmt.Println("The ingest jobs fire on their cron schedules once the engine is")
	fmt.Println("running and has reconciled them; each produces one Upload per run")
	fmt.Println("from the department records seeded above and enqueues it for the")
	fmt.Println("pipeline to process.")
}

// seedKnownErrors inserts the fixture rules directly, skipping any name that
// already exists — KnownErrorRepository is read-only from the core's
// perspective (rules are authored through the out-of-scope admin surface),
// so a write path belongs here rather than in internal/repository.
func seedKnownErrors(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var inserted int
	for _, ke := range knownErrors {
		tag, err := pool.Exec(ctx, `
			INSERT INTO known_errors (
				name, pattern, severity, category, corrective_action,
				root_cause, auto_retry, max_auto_retries
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name) DO NOTHING`,
			ke.name, ke.pattern, ke.severity, ke.category,
			ke.correctiveAction, ke.rootCause, ke.autoRetry, ke.maxAutoRetries,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert known error %s: %w", ke.name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// seedDepartmentRecords inserts sample feed rows so the ingest generators
// have something to read on their first scheduled fire. recorded_at is
// staggered into the past so a fresh Generator (watermark at the Unix
// epoch) picks up every row on its first run.
func seedDepartmentRecords(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var inserted int
	for i, rec := range departmentRecords {
		tag, err := pool.Exec(ctx, `
			INSERT INTO department_records (department, source, payload, recorded_at)
			VALUES ($1, $2, $3, $4)`,
			rec.department, rec.source, rec.payload, base.Add(time.Duration(i)*time.Hour),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert department record %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// seedJobs creates the ingest Jobs through the repository (not raw SQL) so
// the same name-uniqueness rule the engine relies on at runtime governs
// seeding too. The well-known pipeline.execute Job is created separately on
// engine boot (cmd/engine's ensurePipelineJob) since the engine always needs
// it to exist regardless of whether seed has run.
func seedJobs(ctx context.Context, jobRepo repository.JobRepository) (inserted, skipped int, err error) {
	now := time.Now().UTC()
	for _, spec := range jobs {
		cron := spec.scheduleCron
		_, err := jobRepo.Create(ctx, &domain.Job{
			Name:         spec.name,
			JobType:      "ingest",
			ScheduleCron: &cron,
			Config: domain.JobConfig{
				Callable: spec.callable,
				Kwargs:   spec.kwargs,
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateJobName) {
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("create job %s: %w", spec.name, err)
		}
		inserted++
	}
	return inserted, skipped, nil
}

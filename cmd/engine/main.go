// Command engine is the BatchOps batch processing core: cron scheduler,
// job queue, staged pipeline executor, and incident/known-error
// subsystem. It exposes no CRUD routes — only /metrics and /healthz —
// since there is no REST/UI/auth surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/deptops/batchops/config"
	"github.com/deptops/batchops/internal/callable"
	"github.com/deptops/batchops/internal/cronx"
	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/health"
	"github.com/deptops/batchops/internal/incident"
	"github.com/deptops/batchops/internal/infrastructure/postgres"
	"github.com/deptops/batchops/internal/ingest"
	"github.com/deptops/batchops/internal/knownerror"
	ctxlog "github.com/deptops/batchops/internal/log"
	"github.com/deptops/batchops/internal/metrics"
	"github.com/deptops/batchops/internal/pipeline"
	"github.com/deptops/batchops/internal/repository"
	"github.com/deptops/batchops/internal/scheduler"
	"github.com/deptops/batchops/internal/storage"
)

// pipelineJobName is the well-known Job name the engine ensures exists at
// startup so the queue, scheduler, and incident writer all have a stable
// Job id to enqueue pipeline executions against.
const pipelineJobName = "pipeline.execute"

// departments are the known department feeds with an ingest generator
// registered at startup. Adding a department here is the only step needed
// to wire up a new "ingest.<department>" callable.
var departments = []string{"finance", "logistics", "hr"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	zone, err := time.LoadLocation(cfg.ReferenceZone)
	if err != nil {
		stop()
		log.Fatalf("reference zone: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	store, err := storage.NewRoot(cfg.StorageRoot)
	if err != nil {
		stop()
		log.Fatalf("storage root: %v", err)
	}

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)
	checker := health.NewChecker(pool, store, logger, reg)

	jobs := postgres.NewJobRepository(pool)
	jobRuns := postgres.NewJobRunRepository(pool)
	uploads := postgres.NewUploadRepository(pool)
	incidents := postgres.NewIncidentRepository(pool)
	knownErrors := postgres.NewKnownErrorRepository(pool)
	schedules := postgres.NewScheduleRepository(pool)
	queue := postgres.NewQueueRepository(pool)
	departmentRecords := postgres.NewDepartmentRepository(pool)

	evaluator := cronx.NewEvaluator(zone)

	pipelineJob, err := ensurePipelineJob(ctx, jobs)
	if err != nil {
		stop()
		log.Fatalf("ensure pipeline job: %v", err)
	}

	matcher := knownerror.NewMatcher(knownErrors)
	if err := matcher.Load(ctx); err != nil {
		logger.Error("load known error rules", "error", err)
	}

	incidentWriter := incident.NewWriter(incidents, queue, matcher, m, pipelineJob.ID)
	executor := pipeline.NewExecutor(
		uploads, jobRuns, store, incidentWriter, m, pipelineJob.ID,
		time.Duration(cfg.StageTimeoutSec)*time.Second,
	)

	registry := callable.NewRegistry()
	registry.Register(pipeline.CallableName, executor.Invoke)

	for _, dept := range departments {
		ingestJob, err := ensureIngestJob(ctx, jobs, dept)
		if err != nil {
			stop()
			log.Fatalf("ensure ingest job for %s: %v", dept, err)
		}
		gen := ingest.NewGenerator(dept, departmentRecords, uploads, queue, jobRuns, store, ingestJob.ID, pipelineJob.ID)
		registry.Register(gen.CallableName(), gen.Invoke)
	}

	allJobs, err := jobs.All(ctx)
	if err != nil {
		logger.Error("list jobs for schedule reconcile", "error", err)
	} else if err := schedules.Reconcile(ctx, allJobs, evaluator.NextFireAfter); err != nil {
		logger.Error("initial schedule reconcile", "error", err)
	}

	dispatcher := scheduler.NewDispatcher(
		queue, schedules, jobs, evaluator.NextFireAfter, logger, m,
		time.Duration(cfg.DispatchIntervalSec)*time.Second,
	)
	go dispatcher.Start(ctx)

	worker := scheduler.NewWorker(
		queue, jobs, jobRuns, registry, logger, m,
		time.Duration(cfg.QueuePromoteIntervalSec)*time.Second,
		time.Duration(cfg.LeaseDurationSec)*time.Second,
		cfg.WorkerCount,
	)
	go worker.Start(ctx)

	reaper := scheduler.NewReaper(queue, time.Duration(cfg.LeaseReapIntervalSec)*time.Second, logger, m)
	go reaper.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("engine shut down")
}

// ensurePipelineJob creates the well-known pipeline execution Job on first
// boot and returns it unchanged on subsequent boots.
func ensurePipelineJob(ctx context.Context, jobs repository.JobRepository) (*domain.Job, error) {
	existing, err := jobs.GetByName(ctx, pipelineJobName)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	return jobs.Create(ctx, &domain.Job{
		Name:      pipelineJobName,
		JobType:   "pipeline",
		Config:    domain.JobConfig{Callable: pipeline.CallableName},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ensureIngestJob creates the well-known ingest Job for a department on
// first boot and returns it unchanged on subsequent boots, mirroring
// ensurePipelineJob. This keeps a stable Job id available for the ingest
// generator's JobRun bookkeeping even on a database cmd/seed never touched.
func ensureIngestJob(ctx context.Context, jobs repository.JobRepository, department string) (*domain.Job, error) {
	name := fmt.Sprintf("ingest-%s", department)
	existing, err := jobs.GetByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	return jobs.Create(ctx, &domain.Job{
		Name:      name,
		JobType:   "ingest",
		Config:    domain.JobConfig{Callable: fmt.Sprintf("ingest.%s", department)},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

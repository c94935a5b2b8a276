package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds every environment-derived setting for the scheduling core.
// Loaded once at process start via Load; never mutated afterward.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"9090" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// WorkerCount is the number of concurrent workers claiming from the queue.
	WorkerCount int `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=100"`

	// DispatchIntervalSec is how often the scheduler loop checks the
	// registry for due fires.
	DispatchIntervalSec int `env:"DISPATCH_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=60"`

	// QueuePromoteIntervalSec is how often the worker pool polls the queue
	// to claim entries. Delayed entries are promoted into the FIFO
	// partition by the scheduler loop, on the DispatchIntervalSec tick.
	QueuePromoteIntervalSec int `env:"QUEUE_PROMOTE_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=60"`

	// LeaseDurationSec bounds how long a worker may hold a claimed entry
	// before the reaper considers it abandoned and reclaims it.
	LeaseDurationSec int `env:"LEASE_DURATION_SEC" envDefault:"300" validate:"min=10,max=3600"`

	// LeaseReapIntervalSec is how often the reaper loop scans for expired
	// leases.
	LeaseReapIntervalSec int `env:"LEASE_REAP_INTERVAL_SEC" envDefault:"30" validate:"min=5,max=600"`

	// StageTimeoutSec bounds how long a single pipeline stage may run
	// before the executor treats it as failed.
	StageTimeoutSec int `env:"STAGE_TIMEOUT_SEC" envDefault:"600" validate:"min=1"`

	// ReferenceZone is the fixed IANA zone all cron expressions are
	// evaluated against, regardless of the host machine's local zone.
	ReferenceZone string `env:"REFERENCE_ZONE" envDefault:"UTC" validate:"required"`

	// StorageRoot is the filesystem root under which uploaded source files
	// and generated exports are written (see internal/storage).
	StorageRoot string `env:"STORAGE_ROOT" envDefault:"./data" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9091"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

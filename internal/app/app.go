// Package app wires the configured store, model client, adjustment workers
// and coach service together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/meltforce/freecoach/internal/adjust"
	"github.com/meltforce/freecoach/internal/coach"
	"github.com/meltforce/freecoach/internal/config"
	"github.com/meltforce/freecoach/internal/llm"
	"github.com/meltforce/freecoach/internal/metrics"
	"github.com/meltforce/freecoach/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// App is a running coach with its background workers.
type App struct {
	Store     storage.Store
	Scheduler *adjust.Scheduler
	Service   *coach.Service
	Metrics   *metrics.Manager
	log       *slog.Logger
}

// OpenStore opens the configured database. Postgres migrations run first.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("database opened", "driver", cfg.Driver, "path", cfg.Path)
		return db, nil
	case config.DriverPostgres:
		dsn := cfg.DSN()
		if err := storage.RunMigrations(dsn, cfg.Migrations); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected", "driver", cfg.Driver, "host", cfg.Host)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// New opens the store and starts the adjustment workers. Metrics register
// on reg.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if db, ok := store.(*storage.DB); ok {
		reg.MustRegister(pgxpoolprometheus.NewCollector(db.Pool, map[string]string{"db_name": cfg.Database.Name}))
	}
	m := metrics.NewManager("freecoach", "", reg)

	opts := llm.DefaultOptions
	opts.Temperature = cfg.Model.Temperature
	gen := llm.NewOllama(cfg.Model.URL, cfg.Model.Name, opts)

	engine := adjust.NewEngine(store, cfg.Adjustment.Window, log)
	sched := adjust.NewScheduler(engine, adjust.SchedulerConfig{
		Workers:   cfg.Adjustment.Workers,
		QueueSize: cfg.Adjustment.QueueSize,
		Timeout:   cfg.Adjustment.Timeout,
	}, m, log)

	svc := coach.New(store, gen, sched, m, log, coach.Config{GenerationTimeout: cfg.Model.Timeout})

	log.Info("coach ready",
		"model", cfg.Model.Name,
		"model_url", cfg.Model.URL,
		"adjust_window", cfg.Adjustment.Window,
		"adjust_workers", cfg.Adjustment.Workers,
	)
	return &App{Store: store, Scheduler: sched, Service: svc, Metrics: m, log: log}, nil
}

// Close drains queued adjustments, then closes the store.
func (a *App) Close() {
	a.Scheduler.Close()
	a.Store.Close()
	a.log.Info("coach stopped")
}

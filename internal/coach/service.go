// Package coach implements the boundary operations of the workout coach:
// users, exercise types, plan generation and management, session reports
// and progress. Transports call into a single Service.
package coach

import (
	"errors"
	"log/slog"
	"time"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/llm"
	"github.com/meltforce/freecoach/internal/metrics"
	"github.com/meltforce/freecoach/internal/normalize"
	"github.com/meltforce/freecoach/internal/progress"
	"github.com/meltforce/freecoach/internal/storage"
)

// Scheduler queues background adjustments. *adjust.Scheduler implements it.
type Scheduler interface {
	Schedule(instanceID, userID int64) bool
}

// Config holds service tunables.
type Config struct {
	// GenerationTimeout bounds a single generator call.
	GenerationTimeout time.Duration
}

// Service is the coach facade.
type Service struct {
	store      storage.Store
	gen        llm.Generator
	scheduler  Scheduler
	normalizer *normalize.Normalizer
	progress   *progress.Aggregator
	metrics    *metrics.Manager
	log        *slog.Logger
	cfg        Config
	now        func() time.Time
}

// New creates a Service.
func New(store storage.Store, gen llm.Generator, sched Scheduler, m *metrics.Manager, log *slog.Logger, cfg Config) *Service {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 2 * time.Minute
	}
	return &Service{
		store:      store,
		gen:        gen,
		scheduler:  sched,
		normalizer: normalize.New(store, log),
		progress:   progress.New(store),
		metrics:    m,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// missing turns a storage not-found into an apperr NotFound with the given
// message and passes other errors through.
func missing(err error, format string, args ...any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Missing(format, args...)
	}
	return err
}

// classify leaves classified errors alone and marks the rest as persistence
// failures of op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	return apperr.Wrap(apperr.Persistence, op, err)
}

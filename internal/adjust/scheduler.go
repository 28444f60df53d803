package adjust

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meltforce/freecoach/internal/metrics"
)

// Adjuster runs one adjustment. *Engine implements it.
type Adjuster interface {
	Adjust(ctx context.Context, instanceID, userID int64) (Outcome, error)
}

// SchedulerConfig sizes the worker pool.
type SchedulerConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each job.
	Timeout time.Duration
}

// Job is one queued adjustment.
type Job struct {
	ID         string
	InstanceID int64
	UserID     int64
}

// Scheduler runs adjustments in the background on a fixed pool of workers
// fed by a bounded queue.
type Scheduler struct {
	adj     Adjuster
	cfg     SchedulerConfig
	metrics *metrics.Manager
	log     *slog.Logger

	queue chan Job
	g     errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// NewScheduler starts cfg.Workers workers draining a queue of cfg.QueueSize.
func NewScheduler(adj Adjuster, cfg SchedulerConfig, m *metrics.Manager, log *slog.Logger) *Scheduler {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.QueueSize = max(cfg.QueueSize, 1)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Scheduler{
		adj:     adj,
		cfg:     cfg,
		metrics: m,
		log:     log,
		queue:   make(chan Job, cfg.QueueSize),
	}
	for range cfg.Workers {
		s.g.Go(func() error {
			s.work()
			return nil
		})
	}
	return s
}

// Schedule queues an adjustment without blocking. It reports false when the
// job was dropped because the queue is full or the scheduler is closed.
func (s *Scheduler) Schedule(instanceID, userID int64) bool {
	job := Job{ID: uuid.NewString(), InstanceID: instanceID, UserID: userID}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("adjustment dropped, scheduler closed", "instance_id", instanceID, "user_id", userID)
		return false
	}

	select {
	case s.queue <- job:
		s.metrics.GaugeAdjustQueue.Set(float64(len(s.queue)))
		return true
	default:
		s.metrics.CounterAdjustmentsDropped.Inc()
		s.log.Warn("adjustment dropped, queue full",
			"instance_id", instanceID,
			"user_id", userID,
			"queue_size", s.cfg.QueueSize,
		)
		return false
	}
}

// Close stops intake, runs the jobs already queued and waits for the workers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	_ = s.g.Wait()
}

func (s *Scheduler) work() {
	for job := range s.queue {
		s.metrics.GaugeAdjustQueue.Set(float64(len(s.queue)))
		s.run(job)
	}
}

func (s *Scheduler) run(job Job) {
	// Detached from any request: a job completes or fails on its own.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := s.safeAdjust(ctx, job)
	s.metrics.HistAdjustDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.CounterAdjustments.WithLabelValues(string(Failed)).Inc()
		s.log.Error("adjustment failed",
			"job_id", job.ID,
			"instance_id", job.InstanceID,
			"user_id", job.UserID,
			"error", err,
		)
		return
	}
	s.metrics.CounterAdjustments.WithLabelValues(string(out.Action)).Inc()
	s.log.Info("adjustment complete",
		"job_id", job.ID,
		"instance_id", job.InstanceID,
		"action", out.Action,
		"sets", out.After.Sets,
		"reps", out.After.Reps,
	)
}

func (s *Scheduler) safeAdjust(ctx context.Context, job Job) (out Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("adjustment panic: %v", p)
		}
	}()
	return s.adj.Adjust(ctx, job.InstanceID, job.UserID)
}

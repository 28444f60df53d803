package adjust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/freecoach/internal/storage"
)

// Outcome describes what one adjustment did.
type Outcome struct {
	InstanceID int64        `json:"instance_id"`
	Action     Action       `json:"action"`
	Before     Prescription `json:"before"`
	After      Prescription `json:"after"`
	Signals    Signals      `json:"signals"`
}

// Engine evaluates and writes prescriptions. Adjustments of the same
// instance never overlap; different instances proceed in parallel.
type Engine struct {
	store  storage.Store
	window int
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[int64]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates an Engine reading the window most recent reports.
func NewEngine(store storage.Store, window int, log *slog.Logger) *Engine {
	if window < MinReports {
		window = MinReports
	}
	return &Engine{
		store:  store,
		window: window,
		log:    log,
		now:    time.Now,
		locks:  make(map[int64]*instanceLock),
	}
}

// Adjust re-evaluates the current prescription of instanceID from userID's
// recent reports. Too few reports and a deleted instance are not errors.
func (e *Engine) Adjust(ctx context.Context, instanceID, userID int64) (Outcome, error) {
	unlock := e.lock(instanceID)
	defer unlock()

	out := Outcome{InstanceID: instanceID}
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		inst, err := tx.LockExerciseInstance(ctx, instanceID)
		if errors.Is(err, storage.ErrNotFound) {
			out.Action = Missing
			return nil
		}
		if err != nil {
			return err
		}

		out.Before = Prescription{Sets: inst.CurrentSets, Reps: inst.CurrentReps}
		out.After = out.Before

		reports, err := tx.RecentReports(ctx, userID, instanceID, e.window)
		if err != nil {
			return err
		}
		if len(reports) < MinReports {
			out.Action = Skipped
			out.Signals = Signals{Reports: len(reports)}
			return nil
		}

		out.Signals = Summarize(reports)
		out.Action, out.After = Decide(out.Signals, out.Before, inst.TargetReps)
		return tx.SetPrescription(ctx, instanceID, out.After.Sets, out.After.Reps, e.now())
	})
	if err != nil {
		return Outcome{InstanceID: instanceID, Action: Failed}, fmt.Errorf("adjusting instance %d: %w", instanceID, err)
	}

	e.log.Debug("instance adjusted",
		"instance_id", instanceID,
		"user_id", userID,
		"action", out.Action,
		"sets", out.After.Sets,
		"reps", out.After.Reps,
		"avg_rpe", out.Signals.AvgRPE,
		"success_rate", out.Signals.SuccessRate,
		"avg_completion", out.Signals.AvgCompletion,
	)
	return out, nil
}

// lock acquires the per-instance mutex and returns its release func. Entries
// are dropped once no caller holds or waits on them.
func (e *Engine) lock(id int64) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &instanceLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}

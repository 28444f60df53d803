package coach

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/progress"
	"github.com/meltforce/freecoach/internal/storage"
)

// ReportInput is one completed exercise in a session report batch.
type ReportInput struct {
	ExerciseInstanceID int64      `json:"exercise_instance_id"`
	RPE                float64    `json:"rpe"`
	RepsCompleted      int        `json:"reps_completed"`
	SetsCompleted      int        `json:"sets_completed"`
	Success            *bool      `json:"success,omitempty"`
	DurationSeconds    *int       `json:"duration_seconds,omitempty"`
	Date               *time.Time `json:"date,omitempty"`
}

// ReportResult acknowledges a recorded batch.
type ReportResult struct {
	Status               string `json:"status"`
	Recorded             int    `json:"recorded"`
	AdjustmentsScheduled bool   `json:"adjustments_scheduled"`
}

func (r ReportInput) validate(i int) error {
	field := func(name string) string { return fmt.Sprintf("reports[%d].%s", i, name) }
	switch {
	case r.ExerciseInstanceID <= 0:
		return apperr.Invalid(field("exercise_instance_id"), "is required")
	case math.IsNaN(r.RPE) || r.RPE < 1 || r.RPE > 10:
		return apperr.Invalid(field("rpe"), "must be between 1 and 10")
	case r.RepsCompleted < 0 || r.RepsCompleted > 200:
		return apperr.Invalid(field("reps_completed"), "must be between 0 and 200")
	case r.SetsCompleted < 0 || r.SetsCompleted > 15:
		return apperr.Invalid(field("sets_completed"), "must be between 0 and 15")
	case r.DurationSeconds != nil && (*r.DurationSeconds < 0 || *r.DurationSeconds > 7200):
		return apperr.Invalid(field("duration_seconds"), "must be between 0 and 7200")
	}
	return nil
}

// ReportSessions records a batch of reports for planID on behalf of userID.
// The batch is validated in full and stored all-or-nothing; afterwards one
// adjustment per distinct instance is scheduled in first-seen order.
func (s *Service) ReportSessions(ctx context.Context, userID, planID int64, reports []ReportInput) (*ReportResult, error) {
	if len(reports) == 0 {
		return nil, apperr.Invalid("reports", "at least one report is required")
	}
	for i, r := range reports {
		if err := r.validate(i); err != nil {
			return nil, err
		}
	}

	var instanceIDs []int64
	seen := make(map[int64]bool)
	for _, r := range reports {
		if !seen[r.ExerciseInstanceID] {
			seen[r.ExerciseInstanceID] = true
			instanceIDs = append(instanceIDs, r.ExerciseInstanceID)
		}
	}

	now := s.now().UTC()
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return missing(err, "user %d not found", userID)
		}
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return missing(err, "plan %d not found", planID)
		}
		if plan.UserID != userID {
			return apperr.Denied("plan %d does not belong to user %d", planID, userID)
		}
		for _, id := range instanceIDs {
			if _, err := tx.GetPlanInstance(ctx, planID, id); err != nil {
				return missing(err, "exercise instance %d not found in plan %d", id, planID)
			}
		}

		for _, r := range reports {
			rep := models.SessionReport{
				UserID:             userID,
				PlanID:             planID,
				ExerciseInstanceID: r.ExerciseInstanceID,
				Date:               now,
				RPE:                r.RPE,
				RepsCompleted:      r.RepsCompleted,
				SetsCompleted:      r.SetsCompleted,
				Success:            r.Success == nil || *r.Success,
				DurationSeconds:    r.DurationSeconds,
			}
			if r.Date != nil && !r.Date.IsZero() {
				rep.Date = *r.Date
			}
			if err := tx.InsertSessionReport(ctx, &rep); err != nil {
				return err
			}
			if err := tx.RecordInstanceReport(ctx, r.ExerciseInstanceID, r.RPE, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("recording session reports", err)
	}

	s.metrics.CounterSessionReports.Add(float64(len(reports)))
	for _, id := range instanceIDs {
		s.scheduler.Schedule(id, userID)
	}
	s.log.Info("session reports recorded",
		"user_id", userID,
		"plan_id", planID,
		"reports", len(reports),
		"instances", len(instanceIDs),
	)
	return &ReportResult{Status: "recorded", Recorded: len(reports), AdjustmentsScheduled: true}, nil
}

// GetProgress summarizes userID's reports over the last windowDays.
func (s *Service) GetProgress(ctx context.Context, userID int64, windowDays int) (*progress.Summary, error) {
	return s.progress.Progress(ctx, userID, windowDays)
}

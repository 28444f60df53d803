package coach

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/normalize"
	"github.com/meltforce/freecoach/internal/storage"
)

const (
	DefaultPlanDays = 7
	MaxPlanDays     = 30
	MaxFocusAreas   = 10
)

// FocusAreas lists the accepted focus areas.
var FocusAreas = []string{"strength", "cardio", "flexibility", "weight_loss", "muscle_gain", "endurance"}

// GenerateRequest describes the plan a user asks for.
type GenerateRequest struct {
	Days             int      `json:"days"`
	Preferences      string   `json:"preferences,omitempty"`
	IncludeEquipment bool     `json:"include_equipment"`
	FocusAreas       []string `json:"focus_areas,omitempty"`
}

// GeneratedPlan is the result of a successful GeneratePlan.
type GeneratedPlan struct {
	PlanID      int64   `json:"plan_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	TotalDays   int     `json:"total_days"`
	Exercises   int     `json:"exercises"`
	Status      string  `json:"status"`
}

// PlanUpdate holds the plan fields to change; nil fields are left alone.
type PlanUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// DeleteResult confirms a plan deletion.
type DeleteResult struct {
	Status  string `json:"status"`
	Deleted bool   `json:"deleted"`
	PlanID  int64  `json:"plan_id"`
}

func (r *GenerateRequest) validate() error {
	if r.Days == 0 {
		r.Days = DefaultPlanDays
	}
	if r.Days < 1 || r.Days > MaxPlanDays {
		return apperr.Invalid("days", "must be between 1 and %d", MaxPlanDays)
	}
	r.Preferences = strings.TrimSpace(r.Preferences)
	if utf8.RuneCountInString(r.Preferences) > 500 {
		return apperr.Invalid("preferences", "must be at most 500 characters")
	}
	if len(r.FocusAreas) > MaxFocusAreas {
		return apperr.Invalid("focus_areas", "at most %d focus areas", MaxFocusAreas)
	}
	r.FocusAreas = slices.Clone(r.FocusAreas)
	for i, a := range r.FocusAreas {
		a = strings.ToLower(strings.TrimSpace(a))
		if !slices.Contains(FocusAreas, a) {
			return apperr.Invalid("focus_areas", "invalid focus area %q, must be one of %s", r.FocusAreas[i], strings.Join(FocusAreas, ", "))
		}
		r.FocusAreas[i] = a
	}
	return nil
}

// GeneratePlan asks the generator for a plan for userID and stores the
// normalized result. Nothing is stored when generation or parsing fails.
func (s *Service) GeneratePlan(ctx context.Context, userID int64, req GenerateRequest) (*GeneratedPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(user, req)
	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	tree, err := s.normalizer.Normalize(ctx, normalize.Request{
		UserID:       user.ID,
		UserName:     user.Name,
		FitnessLevel: user.Level(),
		TotalDays:    req.Days,
	}, text)
	if err != nil {
		if apperr.Is(err, apperr.MalformedResponse) {
			s.metrics.CounterPlansGenerated.WithLabelValues("malformed").Inc()
		}
		return nil, err
	}

	s.metrics.CounterPlansGenerated.WithLabelValues("generated").Inc()
	s.log.Info("plan generated",
		"plan_id", tree.Plan.ID,
		"user_id", user.ID,
		"days", req.Days,
		"exercises", tree.InstanceCount(),
	)
	return &GeneratedPlan{
		PlanID:      tree.Plan.ID,
		Title:       tree.Plan.Title,
		Description: tree.Plan.Description,
		TotalDays:   tree.Plan.TotalDays,
		Exercises:   tree.InstanceCount(),
		Status:      "generated",
	}, nil
}

// generate calls the generator under the configured timeout.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(gctx, prompt)
	s.metrics.HistGenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded):
		s.metrics.CounterPlansGenerated.WithLabelValues("timeout").Inc()
		s.log.Warn("plan generation timed out", "timeout", s.cfg.GenerationTimeout)
		return "", apperr.Wrap(apperr.GenerationTimeout, "plan generation timed out", err)
	default:
		s.metrics.CounterPlansGenerated.WithLabelValues("failed").Inc()
		s.log.Error("plan generation failed", "error", err)
		return "", apperr.Wrap(apperr.GenerationFailure, "plan generation failed", err)
	}
}

// ListUserPlans returns userID's plans, newest first.
func (s *Service) ListUserPlans(ctx context.Context, userID int64) ([]models.Plan, error) {
	plans := []models.Plan{}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return missing(err, "user %d not found", userID)
		}
		list, err := tx.ListPlansByUser(ctx, userID)
		plans = append(plans, list...)
		return err
	})
	if err != nil {
		return nil, classify("listing plans", err)
	}
	return plans, nil
}

// GetPlanDetails returns a plan with its days by day number and each day's
// exercises by order index.
func (s *Service) GetPlanDetails(ctx context.Context, planID int64) (*models.PlanTree, error) {
	var tree *models.PlanTree
	err := s.store.View(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return missing(err, "plan %d not found", planID)
		}
		days, err := tx.ListPlanDays(ctx, planID)
		if err != nil {
			return err
		}
		tree = &models.PlanTree{Plan: *p, Days: []models.PlanDayTree{}}
		for _, d := range days {
			exs, err := tx.ListDayExercises(ctx, d.ID)
			if err != nil {
				return err
			}
			if exs == nil {
				exs = []models.ExerciseWithType{}
			}
			tree.Days = append(tree.Days, models.PlanDayTree{Day: d, Exercises: exs})
		}
		return nil
	})
	if err != nil {
		return nil, classify("reading plan", err)
	}
	return tree, nil
}

// UpdatePlan changes the title, description or active flag of a plan.
func (s *Service) UpdatePlan(ctx context.Context, planID int64, upd PlanUpdate) (*models.Plan, error) {
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if n := utf8.RuneCountInString(t); n < 1 || n > 200 {
			return nil, apperr.Invalid("title", "must be 1 to 200 characters")
		}
		upd.Title = &t
	}
	if upd.Description != nil && utf8.RuneCountInString(*upd.Description) > 1000 {
		return nil, apperr.Invalid("description", "must be at most 1000 characters")
	}

	var p *models.Plan
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		p, err = tx.GetPlan(ctx, planID)
		if err != nil {
			return missing(err, "plan %d not found", planID)
		}
		if upd.Title != nil {
			p.Title = *upd.Title
		}
		if upd.Description != nil {
			p.Description = upd.Description
		}
		if upd.IsActive != nil {
			p.IsActive = *upd.IsActive
		}
		return tx.UpdatePlan(ctx, p)
	})
	if err != nil {
		return nil, classify("updating plan", err)
	}
	s.log.Info("plan updated", "plan_id", planID)
	return p, nil
}

// DeletePlan removes a plan with its days, instances and reports.
func (s *Service) DeletePlan(ctx context.Context, planID int64) (*DeleteResult, error) {
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return missing(tx.DeletePlan(ctx, planID), "plan %d not found", planID)
	})
	if err != nil {
		return nil, classify("deleting plan", err)
	}
	s.log.Info("plan deleted", "plan_id", planID)
	return &DeleteResult{Status: "deleted", Deleted: true, PlanID: planID}, nil
}

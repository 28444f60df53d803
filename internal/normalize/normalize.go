package normalize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/storage"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxTypeNameLen    = 100
	maxMuscleLen      = 50
	maxNotesLen       = 500
)

// Request carries what the caller knows about the plan being created.
type Request struct {
	UserID       int64
	UserName     string
	FitnessLevel models.FitnessLevel
	TotalDays    int
}

// Normalizer extracts and persists plans from model output.
type Normalizer struct {
	store storage.Store
	log   *slog.Logger
}

// New creates a Normalizer writing to store.
func New(store storage.Store, log *slog.Logger) *Normalizer {
	return &Normalizer{store: store, log: log}
}

// Normalize extracts a draft from raw and writes the plan tree in one unit of
// work. Nothing is persisted when either step fails.
func (n *Normalizer) Normalize(ctx context.Context, req Request, raw string) (*models.PlanTree, error) {
	draft, err := Extract(raw, req.TotalDays)
	if err != nil {
		n.log.Warn("model output rejected", "user_id", req.UserID, "error", err)
		return nil, err
	}
	if draft.Dropped > 0 {
		n.log.Warn("model returned more days than requested",
			"user_id", req.UserID, "total_days", req.TotalDays, "dropped", draft.Dropped)
	}

	var tree *models.PlanTree
	err = n.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		tree, err = Materialize(ctx, tx, req, draft)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "saving plan", err)
	}

	n.log.Info("plan normalized",
		"plan_id", tree.Plan.ID,
		"user_id", req.UserID,
		"days", len(tree.Days),
		"exercises", tree.InstanceCount(),
	)
	return tree, nil
}

// Materialize writes a draft as a plan with its days and exercise instances,
// resolving exercise names to types and creating the missing ones. Each name
// is looked up at most once per call.
func Materialize(ctx context.Context, tx storage.Tx, req Request, d *Draft) (*models.PlanTree, error) {
	title := d.Title
	if title == "" {
		title = "AI Plan for " + req.UserName
	}
	desc := d.Description
	if desc == "" {
		level := req.FitnessLevel
		if level == "" {
			level = models.Beginner
		}
		desc = fmt.Sprintf("AI-generated %s workout plan", level)
	}

	plan := models.Plan{
		UserID:      req.UserID,
		Title:       apperr.Truncate(title, maxTitleLen),
		Description: ptr(apperr.Truncate(desc, maxDescriptionLen)),
		TotalDays:   req.TotalDays,
		IsActive:    true,
	}
	if err := tx.InsertPlan(ctx, &plan); err != nil {
		return nil, err
	}

	r := resolver{tx: tx, cache: make(map[string]*models.ExerciseType)}
	tree := &models.PlanTree{Plan: plan}
	for _, dd := range d.Days {
		day := models.PlanDay{
			PlanID:    plan.ID,
			DayNumber: dd.DayNumber,
			Title:     ptr(apperr.Truncate(dd.Title, maxTitleLen)),
			RestDay:   dd.RestDay,
		}
		if err := tx.InsertPlanDay(ctx, &day); err != nil {
			return nil, err
		}

		dt := models.PlanDayTree{Day: day, Exercises: []models.ExerciseWithType{}}
		if !day.RestDay {
			for i, ex := range dd.Exercises {
				et, err := r.resolve(ctx, ex)
				if err != nil {
					return nil, err
				}
				inst := newInstance(day.ID, i, ex, et)
				if err := tx.InsertExerciseInstance(ctx, &inst); err != nil {
					return nil, err
				}
				dt.Exercises = append(dt.Exercises, models.ExerciseWithType{Instance: inst, ExerciseType: *et})
			}
		}
		tree.Days = append(tree.Days, dt)
	}
	return tree, nil
}

func newInstance(dayID int64, order int, ex DraftExercise, et *models.ExerciseType) models.ExerciseInstance {
	sets := ex.Sets
	if sets == 0 {
		sets = et.DefaultSets
	}
	reps := ex.Reps
	if reps == 0 {
		reps = et.DefaultReps
	}
	rest := ex.RestSeconds
	if rest == 0 {
		rest = DefaultRestSeconds
	}
	sets = clamp(sets, MinSets, MaxSets)
	reps = clamp(reps, MinReps, MaxReps)

	inst := models.ExerciseInstance{
		PlanDayID:      dayID,
		ExerciseTypeID: et.ID,
		OrderIndex:     order,
		TargetSets:     sets,
		TargetReps:     reps,
		CurrentSets:    sets,
		CurrentReps:    reps,
		RestSeconds:    clamp(rest, MinRestSeconds, MaxRestSeconds),
	}
	if ex.Notes != "" {
		inst.Notes = ptr(apperr.Truncate(ex.Notes, maxNotesLen))
	}
	return inst
}

// resolver maps exercise names to types within one unit of work.
type resolver struct {
	tx    storage.Tx
	cache map[string]*models.ExerciseType
}

func (r *resolver) resolve(ctx context.Context, ex DraftExercise) (*models.ExerciseType, error) {
	name := apperr.Truncate(ex.Name, maxTypeNameLen)
	if et, ok := r.cache[name]; ok {
		return et, nil
	}

	et := &models.ExerciseType{
		Name:            name,
		EquipmentNeeded: ex.EquipmentNeeded,
		DefaultSets:     DefaultSets,
		DefaultReps:     DefaultReps,
	}
	if ex.Sets != 0 {
		et.DefaultSets = ex.Sets
	}
	if ex.Reps != 0 {
		et.DefaultReps = ex.Reps
	}
	if ex.PrimaryMuscle != "" {
		et.PrimaryMuscle = ptr(apperr.Truncate(ex.PrimaryMuscle, maxMuscleLen))
	}
	// An existing type with this name wins; et is overwritten with it.
	if _, err := r.tx.EnsureExerciseType(ctx, et); err != nil {
		return nil, err
	}

	r.cache[name] = et
	return et, nil
}

func ptr[T any](v T) *T { return &v }

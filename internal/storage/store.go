package storage

import (
	"context"
	"errors"
	"time"

	"github.com/meltforce/freecoach/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the transactional entity store. View runs fn in a read-only unit
// of work, Update in a read-write one. The unit of work commits when fn
// returns nil and rolls back on error or panic.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close()
}

// Tx is the set of entity operations available inside a unit of work.
type Tx interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)

	EnsureExerciseType(ctx context.Context, et *models.ExerciseType) (created bool, err error)
	ListExerciseTypes(ctx context.Context) ([]models.ExerciseType, error)

	InsertPlan(ctx context.Context, p *models.Plan) error
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlansByUser(ctx context.Context, userID int64) ([]models.Plan, error)
	UpdatePlan(ctx context.Context, p *models.Plan) error
	DeletePlan(ctx context.Context, id int64) error

	InsertPlanDay(ctx context.Context, d *models.PlanDay) error
	ListPlanDays(ctx context.Context, planID int64) ([]models.PlanDay, error)

	InsertExerciseInstance(ctx context.Context, ei *models.ExerciseInstance) error
	ListDayExercises(ctx context.Context, dayID int64) ([]models.ExerciseWithType, error)
	GetPlanInstance(ctx context.Context, planID, instanceID int64) (*models.ExerciseInstance, error)
	LockExerciseInstance(ctx context.Context, id int64) (*models.ExerciseInstance, error)
	RecordInstanceReport(ctx context.Context, id int64, rpe float64, at time.Time) error
	SetPrescription(ctx context.Context, id int64, sets, reps int, at time.Time) error

	InsertSessionReport(ctx context.Context, r *models.SessionReport) error
	RecentReports(ctx context.Context, userID, instanceID int64, limit int) ([]models.SessionReport, error)
	ReportsSince(ctx context.Context, userID int64, since time.Time) ([]models.SessionReport, error)
}

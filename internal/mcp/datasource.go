package mcp

import (
	"context"

	"github.com/meltforce/freecoach/internal/coach"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/progress"
)

// Coach abstracts the coach operations behind MCP tools. Both *coach.Service
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type Coach interface {
	CreateUser(ctx context.Context, in coach.UserInput) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	CreateExerciseType(ctx context.Context, in coach.ExerciseTypeInput) (*models.ExerciseType, error)
	ListExerciseTypes(ctx context.Context) ([]models.ExerciseType, error)
	GeneratePlan(ctx context.Context, userID int64, req coach.GenerateRequest) (*coach.GeneratedPlan, error)
	ListUserPlans(ctx context.Context, userID int64) ([]models.Plan, error)
	GetPlanDetails(ctx context.Context, planID int64) (*models.PlanTree, error)
	UpdatePlan(ctx context.Context, planID int64, upd coach.PlanUpdate) (*models.Plan, error)
	DeletePlan(ctx context.Context, planID int64) (*coach.DeleteResult, error)
	ReportSessions(ctx context.Context, userID, planID int64, reports []coach.ReportInput) (*coach.ReportResult, error)
	GetProgress(ctx context.Context, userID int64, windowDays int) (*progress.Summary, error)
}

// Compile-time check: *coach.Service satisfies Coach.
var _ Coach = (*coach.Service)(nil)

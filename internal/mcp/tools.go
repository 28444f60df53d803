package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/coach"
)

// --- Tool definitions ---

var toolGetUser = mcp.NewTool("get_user",
	mcp.WithDescription("Get a user's profile: name, email, age, gender, fitness level and goals."),
	mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
)

var toolListUsers = mcp.NewTool("list_users",
	mcp.WithDescription("List users ordered by ID."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of users (1-500). Defaults to 50."), mcp.Min(1), mcp.Max(500)),
)

var toolCreateUser = mcp.NewTool("create_user",
	mcp.WithDescription("Create a user profile. Plans are tailored to the fitness level and goals."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name (2-100 characters)")),
	mcp.WithString("email", mcp.Description("Email address")),
	mcp.WithNumber("age", mcp.Description("Age in years (10-120)"), mcp.Min(10), mcp.Max(120)),
	mcp.WithString("gender", mcp.Enum("male", "female", "other")),
	mcp.WithString("fitness_level", mcp.Description("Training experience. Defaults to beginner."), mcp.Enum("beginner", "intermediate", "advanced")),
	mcp.WithString("goals", mcp.Description("Free-text goals (max 500 characters)")),
)

var toolGetUserPlans = mcp.NewTool("get_user_plans",
	mcp.WithDescription("List a user's workout plans, newest first."),
	mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
)

var toolGetPlanDetails = mcp.NewTool("get_plan_details",
	mcp.WithDescription("Get a plan with its days and exercises. Each exercise has its original target and its current, automatically adjusted prescription."),
	mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan ID")),
)

var toolGenerateWorkoutPlan = mcp.NewTool("generate_workout_plan",
	mcp.WithDescription("Generate a multi-day workout plan for a user with the AI model and store it. May take up to a couple of minutes."),
	mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
	mcp.WithNumber("days", mcp.Description("Plan length in days (1-30). Defaults to 7."), mcp.Min(1), mcp.Max(30)),
	mcp.WithString("preferences", mcp.Description("Free-text preferences (max 500 characters)")),
	mcp.WithBoolean("include_equipment", mcp.Description("Allow exercises that need equipment. Defaults to false (bodyweight only).")),
	mcp.WithArray("focus_areas",
		mcp.Description("Up to 10 focus areas"),
		mcp.Items(map[string]any{"type": "string", "enum": coach.FocusAreas}),
	),
)

var toolUpdatePlan = mcp.NewTool("update_plan",
	mcp.WithDescription("Change a plan's title, description or active flag. Omitted fields are left unchanged."),
	mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan ID")),
	mcp.WithString("title", mcp.Description("New title (1-200 characters)")),
	mcp.WithString("description", mcp.Description("New description (max 1000 characters)")),
	mcp.WithBoolean("is_active", mcp.Description("Whether the plan is active")),
)

var toolDeletePlan = mcp.NewTool("delete_plan",
	mcp.WithDescription("Delete a plan together with its days, exercises and session reports."),
	mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan ID")),
)

var toolListExerciseTypes = mcp.NewTool("list_exercise_types",
	mcp.WithDescription("List all exercise types with their default sets and reps."),
)

var toolCreateExerciseType = mcp.NewTool("create_exercise_type",
	mcp.WithDescription("Add an exercise type to the catalog. Names are unique."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exercise name (2-100 characters)")),
	mcp.WithString("primary_muscle", mcp.Description("Primary muscle group")),
	mcp.WithBoolean("equipment_needed", mcp.Description("Whether the exercise needs equipment")),
	mcp.WithNumber("default_sets", mcp.Description("Default sets (1-10). Defaults to 3."), mcp.Min(1), mcp.Max(10)),
	mcp.WithNumber("default_reps", mcp.Description("Default reps (1-100). Defaults to 10."), mcp.Min(1), mcp.Max(100)),
	mcp.WithString("notes", mcp.Description("Coaching notes")),
)

var toolReportWorkoutSession = mcp.NewTool("report_workout_session",
	mcp.WithDescription("Record completed exercises from a workout session. Each reported exercise is re-evaluated in the background and its prescription may be deloaded or progressed."),
	mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
	mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan ID the exercises belong to")),
	mcp.WithArray("reports", mcp.Required(),
		mcp.Description("One entry per completed exercise"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"exercise_instance_id": map[string]any{"type": "number"},
				"rpe":                  map[string]any{"type": "number", "minimum": 1, "maximum": 10},
				"reps_completed":       map[string]any{"type": "number", "minimum": 0, "maximum": 200},
				"sets_completed":       map[string]any{"type": "number", "minimum": 0, "maximum": 15},
				"success":              map[string]any{"type": "boolean"},
				"duration_seconds":     map[string]any{"type": "number", "minimum": 0, "maximum": 7200},
				"date":                 map[string]any{"type": "string", "description": "RFC 3339 timestamp. Defaults to now."},
			},
			"required": []string{"exercise_instance_id", "rpe", "reps_completed", "sets_completed"},
		}),
	),
)

var toolGetUserProgress = mcp.NewTool("get_user_progress",
	mcp.WithDescription("Summarize a user's reported sessions over a trailing window: session count, average RPE, success rate and the latest reports."),
	mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
	mcp.WithNumber("days", mcp.Description("Window in days (1-365). Defaults to 30."), mcp.Min(1), mcp.Max(365)),
)

// --- Tool handlers ---

func (h *handlers) getUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	u, err := h.coach.GetUser(ctx, int64(uid))
	if err != nil {
		return h.toolError("get_user", err), nil
	}
	return jsonResult(u)
}

func (h *handlers) listUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := h.coach.ListUsers(ctx, req.GetInt("limit", 0))
	if err != nil {
		return h.toolError("list_users", err), nil
	}
	return jsonResult(users)
}

func (h *handlers) createUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in coach.UserInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	u, err := h.coach.CreateUser(ctx, in)
	if err != nil {
		return h.toolError("create_user", err), nil
	}
	return jsonResult(u)
}

func (h *handlers) getUserPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	plans, err := h.coach.ListUserPlans(ctx, int64(uid))
	if err != nil {
		return h.toolError("get_user_plans", err), nil
	}
	return jsonResult(plans)
}

func (h *handlers) getPlanDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireInt("plan_id")
	if err != nil {
		return mcp.NewToolResultError("plan_id parameter is required"), nil
	}
	tree, err := h.coach.GetPlanDetails(ctx, int64(pid))
	if err != nil {
		return h.toolError("get_plan_details", err), nil
	}
	return jsonResult(tree)
}

func (h *handlers) generateWorkoutPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		UserID int64 `json:"user_id"`
		coach.GenerateRequest
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if args.UserID == 0 {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	plan, err := h.coach.GeneratePlan(ctx, args.UserID, args.GenerateRequest)
	if err != nil {
		return h.toolError("generate_workout_plan", err), nil
	}
	return jsonResult(plan)
}

func (h *handlers) updatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		PlanID int64 `json:"plan_id"`
		coach.PlanUpdate
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if args.PlanID == 0 {
		return mcp.NewToolResultError("plan_id parameter is required"), nil
	}
	plan, err := h.coach.UpdatePlan(ctx, args.PlanID, args.PlanUpdate)
	if err != nil {
		return h.toolError("update_plan", err), nil
	}
	return jsonResult(plan)
}

func (h *handlers) deletePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireInt("plan_id")
	if err != nil {
		return mcp.NewToolResultError("plan_id parameter is required"), nil
	}
	res, err := h.coach.DeletePlan(ctx, int64(pid))
	if err != nil {
		return h.toolError("delete_plan", err), nil
	}
	return jsonResult(res)
}

func (h *handlers) listExerciseTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := h.coach.ListExerciseTypes(ctx)
	if err != nil {
		return h.toolError("list_exercise_types", err), nil
	}
	return jsonResult(types)
}

func (h *handlers) createExerciseType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in coach.ExerciseTypeInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	et, err := h.coach.CreateExerciseType(ctx, in)
	if err != nil {
		return h.toolError("create_exercise_type", err), nil
	}
	return jsonResult(et)
}

func (h *handlers) reportWorkoutSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		UserID  int64               `json:"user_id"`
		PlanID  int64               `json:"plan_id"`
		Reports []coach.ReportInput `json:"reports"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if args.UserID == 0 || args.PlanID == 0 {
		return mcp.NewToolResultError("user_id and plan_id parameters are required"), nil
	}
	res, err := h.coach.ReportSessions(ctx, args.UserID, args.PlanID, args.Reports)
	if err != nil {
		return h.toolError("report_workout_session", err), nil
	}
	return jsonResult(res)
}

func (h *handlers) getUserProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	sum, err := h.coach.GetProgress(ctx, int64(uid), req.GetInt("days", 0))
	if err != nil {
		return h.toolError("get_user_progress", err), nil
	}
	return jsonResult(sum)
}

// toolError reports err as a tool-level failure prefixed with its kind, so
// the calling model can tell bad input from server trouble.
func (h *handlers) toolError(tool string, err error) *mcp.CallToolResult {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.Validation, apperr.NotFound, apperr.Forbidden:
	default:
		h.log.Error("tool failed", "tool", tool, "kind", kind.String(), "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

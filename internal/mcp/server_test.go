package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/freecoach/internal/coach"
	"github.com/meltforce/freecoach/internal/metrics"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/storage"
)

const cannedPlan = `Here you go:
{"plan_title": "Core Week", "days": [
  {"day_number": 1, "exercises": [{"name": "Plank", "sets": 3, "reps": 1}, {"name": "Lunge", "sets": 3, "reps": 12}]},
  {"day_number": 2, "rest_day": true}
]}`

type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return cannedPlan, nil
}

type nopScheduler struct{}

func (nopScheduler) Schedule(instanceID, userID int64) bool { return true }

func newTestHandlers(t *testing.T) *handlers {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(store.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := coach.New(store, cannedGenerator{}, nopScheduler{}, metrics.NewTestManager(), log, coach.Config{GenerationTimeout: time.Second})
	return &handlers{coach: svc, log: log}
}

type progressView struct {
	TotalSessions int     `json:"total_sessions"`
	AvgRPE        float64 `json:"avg_rpe"`
}

// call invokes a tool handler with JSON-shaped arguments (numbers as float64).
func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("tool returned protocol error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(t, res)), &v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return v
}

// TestToolNames verifies every tool is exposed under its published name.
func TestToolNames(t *testing.T) {
	tools := map[string]mcp.Tool{
		"get_user":               toolGetUser,
		"list_users":             toolListUsers,
		"create_user":            toolCreateUser,
		"get_user_plans":         toolGetUserPlans,
		"get_plan_details":       toolGetPlanDetails,
		"generate_workout_plan":  toolGenerateWorkoutPlan,
		"update_plan":            toolUpdatePlan,
		"delete_plan":            toolDeletePlan,
		"list_exercise_types":    toolListExerciseTypes,
		"create_exercise_type":   toolCreateExerciseType,
		"report_workout_session": toolReportWorkoutSession,
		"get_user_progress":      toolGetUserProgress,
	}
	for name, tool := range tools {
		if tool.Name != name {
			t.Errorf("tool name = %q, want %q", tool.Name, name)
		}
	}
	if New(nil, "test", slog.New(slog.NewTextHandler(io.Discard, nil))) == nil {
		t.Error("New returned nil")
	}
}

// TestUserTools verifies create_user, get_user and list_users.
func TestUserTools(t *testing.T) {
	h := newTestHandlers(t)

	u := decodeResult[models.User](t, call(t, h.createUser, map[string]any{
		"name": "Ada", "age": float64(36), "fitness_level": "Advanced",
	}))
	if u.FitnessLevel == nil || *u.FitnessLevel != models.Advanced {
		t.Errorf("fitness level = %v, want advanced", u.FitnessLevel)
	}

	got := decodeResult[models.User](t, call(t, h.getUser, map[string]any{"user_id": float64(u.ID)}))
	if got.Name != "Ada" {
		t.Errorf("name = %q, want Ada", got.Name)
	}

	users := decodeResult[[]models.User](t, call(t, h.listUsers, map[string]any{}))
	if len(users) != 1 {
		t.Errorf("listed %d users, want 1", len(users))
	}
}

// TestToolErrorsAreResults verifies failures come back as tool results
// carrying the error kind, never as protocol errors.
func TestToolErrorsAreResults(t *testing.T) {
	h := newTestHandlers(t)
	tests := []struct {
		name   string
		fn     func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args   map[string]any
		prefix string
	}{
		{"unknown user", h.getUser, map[string]any{"user_id": float64(999)}, "not_found:"},
		{"missing user id", h.getUserPlans, map[string]any{}, "user_id"},
		{"invalid name", h.createUser, map[string]any{"name": "A"}, "validation:"},
		{"bad window", h.getUserProgress, map[string]any{"user_id": float64(1), "days": float64(400)}, "validation:"},
		{"unknown plan", h.deletePlan, map[string]any{"plan_id": float64(5)}, "not_found:"},
		{"report without ids", h.reportWorkoutSession, map[string]any{"reports": []any{}}, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tt.fn, tt.args)
			if !res.IsError {
				t.Fatal("IsError = false, want true")
			}
			if text := resultText(t, res); !strings.HasPrefix(text, tt.prefix) {
				t.Errorf("text = %q, want prefix %q", text, tt.prefix)
			}
		})
	}
}

// TestPlanTools verifies generation, details, session reporting, progress,
// update and delete through the tool handlers.
func TestPlanTools(t *testing.T) {
	h := newTestHandlers(t)
	u := decodeResult[models.User](t, call(t, h.createUser, map[string]any{"name": "Ada"}))

	gp := decodeResult[coach.GeneratedPlan](t, call(t, h.generateWorkoutPlan, map[string]any{
		"user_id": float64(u.ID), "days": float64(2), "focus_areas": []any{"strength"},
	}))
	if gp.Title != "Core Week" || gp.Exercises != 2 {
		t.Fatalf("generated = %+v", gp)
	}

	tree := decodeResult[models.PlanTree](t, call(t, h.getPlanDetails, map[string]any{"plan_id": float64(gp.PlanID)}))
	iid := tree.Days[0].Exercises[1].Instance.ID

	res := decodeResult[coach.ReportResult](t, call(t, h.reportWorkoutSession, map[string]any{
		"user_id": float64(u.ID),
		"plan_id": float64(gp.PlanID),
		"reports": []any{
			map[string]any{"exercise_instance_id": float64(iid), "rpe": 6.5, "reps_completed": float64(12), "sets_completed": float64(3)},
		},
	}))
	if res.Recorded != 1 {
		t.Errorf("recorded = %d, want 1", res.Recorded)
	}

	sum := decodeResult[progressView](t, call(t, h.getUserProgress, map[string]any{"user_id": float64(u.ID)}))
	if sum.TotalSessions != 1 || sum.AvgRPE != 6.5 {
		t.Errorf("progress = %+v", sum)
	}

	p := decodeResult[models.Plan](t, call(t, h.updatePlan, map[string]any{"plan_id": float64(gp.PlanID), "is_active": false}))
	if p.IsActive || p.Title != "Core Week" {
		t.Errorf("updated plan = %+v", p)
	}

	plans := decodeResult[[]models.Plan](t, call(t, h.getUserPlans, map[string]any{"user_id": float64(u.ID)}))
	if len(plans) != 1 {
		t.Errorf("plans = %d, want 1", len(plans))
	}

	del := decodeResult[coach.DeleteResult](t, call(t, h.deletePlan, map[string]any{"plan_id": float64(gp.PlanID)}))
	if !del.Deleted {
		t.Errorf("delete result = %+v", del)
	}
}

// TestExerciseCatalogResource verifies the catalog lists types created by
// tools and by plan generation.
func TestExerciseCatalogResource(t *testing.T) {
	h := newTestHandlers(t)
	decodeResult[models.ExerciseType](t, call(t, h.createExerciseType, map[string]any{"name": "Burpee", "default_reps": float64(15)}))

	var req mcp.ReadResourceRequest
	req.Params.URI = "freecoach://exercise_catalog"
	contents, err := h.exerciseCatalog(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents type = %T", contents[0])
	}
	var catalog struct {
		Count         int                   `json:"count"`
		ExerciseTypes []models.ExerciseType `json:"exercise_types"`
	}
	if err := json.Unmarshal([]byte(text.Text), &catalog); err != nil {
		t.Fatal(err)
	}
	if catalog.Count != 1 || catalog.ExerciseTypes[0].DefaultReps != 15 {
		t.Errorf("catalog = %+v", catalog)
	}
}

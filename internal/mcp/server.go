// Package mcp exposes the coach operations as Model Context Protocol tools.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(c Coach, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FreeCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("FreeCoach workout coach. Create users, generate AI workout plans, report completed sessions and read progress. Prescriptions adapt automatically after each reported session."),
	)

	h := &handlers{coach: c, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetUser, Handler: h.getUser},
		server.ServerTool{Tool: toolListUsers, Handler: h.listUsers},
		server.ServerTool{Tool: toolCreateUser, Handler: h.createUser},
		server.ServerTool{Tool: toolGetUserPlans, Handler: h.getUserPlans},
		server.ServerTool{Tool: toolGetPlanDetails, Handler: h.getPlanDetails},
		server.ServerTool{Tool: toolGenerateWorkoutPlan, Handler: h.generateWorkoutPlan},
		server.ServerTool{Tool: toolUpdatePlan, Handler: h.updatePlan},
		server.ServerTool{Tool: toolDeletePlan, Handler: h.deletePlan},
		server.ServerTool{Tool: toolListExerciseTypes, Handler: h.listExerciseTypes},
		server.ServerTool{Tool: toolCreateExerciseType, Handler: h.createExerciseType},
		server.ServerTool{Tool: toolReportWorkoutSession, Handler: h.reportWorkoutSession},
		server.ServerTool{Tool: toolGetUserProgress, Handler: h.getUserProgress},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	coach Coach
	log   *slog.Logger
}

// --- Resource definitions ---

var resExerciseCatalog = mcp.NewResource(
	"freecoach://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All known exercise types with their default sets and reps"),
	mcp.WithMIMEType("application/json"),
)

package mcp

import (
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered. loc
// decides which calendar days count as recent; nil means UTC.
func New(ds DataSource, version string, loc *time.Location, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Forge", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Forge kettlebell training server. Parse sets, read workout history and stats, browse templates and the exercise library, and check daily protein and step goals. Volumes are in kilograms."),
	)

	h := newHandlers(ds, loc, log)

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolParseSet, Handler: h.parseSet},
		server.ServerTool{Tool: toolGetWorkoutHistory, Handler: h.getWorkoutHistory},
		server.ServerTool{Tool: toolGetWorkoutStats, Handler: h.getWorkoutStats},
		server.ServerTool{Tool: toolGetVolumeTrend, Handler: h.getVolumeTrend},
		server.ServerTool{Tool: toolListTemplates, Handler: h.listTemplates},
		server.ServerTool{Tool: toolSearchExercises, Handler: h.searchExercises},
		server.ServerTool{Tool: toolGetGoalProgress, Handler: h.getGoalProgress},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resWorkoutStats, Handler: h.workoutStats},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
	loc *time.Location
	now func() time.Time
}

func newHandlers(ds DataSource, loc *time.Location, log *slog.Logger) *handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &handlers{ds: ds, log: log, loc: loc, now: time.Now}
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"forge://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resWorkoutStats = mcp.NewResource(
	"forge://workout_stats",
	"Workout Stats",
	mcp.WithResourceDescription("Totals, top exercises and the current streak over the whole history"),
	mcp.WithMIMEType("application/json"),
)

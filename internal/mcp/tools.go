package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/templates"
	"github.com/forgefit/forge/internal/units"
)

const (
	defaultHistoryLimit = 20
	defaultSearchLimit  = 20
	defaultTrendDays    = 30
	maxTrendDays        = 366
)

// parseDate accepts YYYY-MM-DD or RFC 3339 and returns the calendar date.
func parseDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t.Format(models.DateLayout), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t.Format(models.DateLayout), nil
}

func optionalList(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// --- Tool definitions ---

var toolParseSet = mcp.NewTool("parse_set",
	mcp.WithDescription(`Parse a free-text kettlebell set such as "40 5", "double 35kg x8" or "single 53lbs 10 reps". Returns weight per bell, bell count, reps, total volume and a validation message when the input is not a valid set.`),
	mcp.WithString("input", mcp.Required(), mcp.Description("The set as typed by the user")),
	mcp.WithString("unit", mcp.Description("Unit when the input names none. Defaults to the saved preference."), mcp.Enum("kg", "lbs")),
	mcp.WithNumber("bells", mcp.Description("Bell count when the input names none (1 or 2). Defaults to 2.")),
)

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Completed workouts, newest first, with exercises, sets and total volume in kg."),
	mcp.WithString("start", mcp.Description("First date (YYYY-MM-DD). Defaults to all history.")),
	mcp.WithString("end", mcp.Description("Last date (YYYY-MM-DD). Defaults to today.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of workouts. Defaults to 20.")),
)

var toolGetWorkoutStats = mcp.NewTool("get_workout_stats",
	mcp.WithDescription("Totals over the whole history: workout count, volume in kg and lbs, average volume, top five exercises by volume and the current daily streak."),
)

var toolGetVolumeTrend = mcp.NewTool("get_volume_trend",
	mcp.WithDescription("Total volume (kg) per calendar day, zero-filled, ending today."),
	mcp.WithNumber("days", mcp.Description("Days to look back. Defaults to 30.")),
)

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("Workout templates: the built-in Workout A/B/C plans and custom templates."),
	mcp.WithString("query", mcp.Description("Match against name, description and tags")),
	mcp.WithString("category", mcp.Description("Template category"), mcp.Enum("strength", "hypertrophy", "conditioning", "mobility", "mixed")),
	mcp.WithString("difficulty", mcp.Description("Template difficulty"), mcp.Enum("beginner", "intermediate", "advanced")),
	mcp.WithBoolean("custom_only", mcp.Description("Only user-created templates")),
)

var toolSearchExercises = mcp.NewTool("search_exercises",
	mcp.WithDescription("Search the exercise library. Returns matching exercises and facet counts for categories, equipment and muscles."),
	mcp.WithString("query", mcp.Description("Match against name, alternative names and tags")),
	mcp.WithString("category", mcp.Description("Exercise category (e.g. strength, cardio, stretching)")),
	mcp.WithString("equipment", mcp.Description("Equipment (e.g. kettlebell, dumbbell, bodyweight)")),
	mcp.WithString("muscle", mcp.Description("Primary muscle (e.g. glutes, quadriceps)")),
	mcp.WithString("difficulty", mcp.Description("Exercise difficulty"), mcp.Enum("beginner", "intermediate", "advanced")),
	mcp.WithBoolean("has_gif", mcp.Description("Only exercises with an animation")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of exercises. Defaults to 20.")),
)

var toolGetGoalProgress = mcp.NewTool("get_goal_progress",
	mcp.WithDescription("Today's progress towards a daily goal, with the weekly average and the last seven days."),
	mcp.WithString("goal", mcp.Required(), mcp.Description("Goal to report"), mcp.Enum(string(goals.Protein), string(goals.Steps))),
)

// --- Tool handlers ---

func (h *handlers) parseSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("input parameter is required"), nil
	}
	var unit units.Unit
	if v := req.GetString("unit", ""); v != "" {
		u, ok := units.Parse(v)
		if !ok {
			return mcp.NewToolResultError("unit must be kg or lbs"), nil
		}
		unit = u
	}

	p, err := h.ds.ParseSet(ctx, input, unit, req.GetInt("bells", 0))
	if err != nil {
		h.log.Error("mcp parse_set", "error", err)
		return mcp.NewToolResultError("parse failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"set": p, "display": setinput.Format(p)})
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := parseDate(req.GetString("start", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	end, err := parseDate(req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	workouts, err := h.ds.Workouts(ctx, start, end)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	total := len(workouts)
	if len(workouts) > limit {
		workouts = workouts[:limit]
	}
	return jsonResult(map[string]any{"total": total, "workouts": workouts})
}

func (h *handlers) getWorkoutStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.WorkoutStats(ctx)
	if err != nil {
		h.log.Error("mcp get_workout_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(stats)
}

func (h *handlers) getVolumeTrend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", defaultTrendDays)
	if days < 0 || days > maxTrendDays {
		return mcp.NewToolResultError(fmt.Sprintf("days must be between 0 and %d", maxTrendDays)), nil
	}
	points, err := h.ds.VolumeTrend(ctx, days)
	if err != nil {
		h.log.Error("mcp get_volume_trend", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(points)
}

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.Templates(ctx, templates.Filter{
		Term:       req.GetString("query", ""),
		Category:   req.GetString("category", ""),
		Difficulty: req.GetString("difficulty", ""),
		CustomOnly: req.GetBool("custom_only", false),
	})
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func (h *handlers) searchExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	res, err := h.ds.SearchExercises(ctx, exercises.Filter{
		Categories:     optionalList(req.GetString("category", "")),
		Equipment:      optionalList(req.GetString("equipment", "")),
		PrimaryMuscles: optionalList(req.GetString("muscle", "")),
		Difficulty:     optionalList(req.GetString("difficulty", "")),
		HasGif:         req.GetBool("has_gif", false),
		Term:           req.GetString("query", ""),
	})
	if err != nil {
		h.log.Error("mcp search_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if len(res.Exercises) > limit {
		res.Exercises = res.Exercises[:limit]
	}
	return jsonResult(res)
}

func (h *handlers) getGoalProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, err := req.RequireString("goal")
	if err != nil {
		return mcp.NewToolResultError("goal parameter is required"), nil
	}
	if _, ok := goals.Lookup(goals.Kind(goal)); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown goal %q", goal)), nil
	}
	p, err := h.ds.GoalProgress(ctx, goals.Kind(goal))
	if err != nil {
		h.log.Error("mcp get_goal_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(p)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

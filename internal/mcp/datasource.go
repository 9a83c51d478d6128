package mcp

import (
	"context"
	"fmt"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/templates"
	"github.com/forgefit/forge/internal/units"
)

// DataSource abstracts the data layer for MCP tools. Both Local (in-process
// services) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	// ParseSet parses input. An empty unit means the saved preference.
	ParseSet(ctx context.Context, input string, unit units.Unit, bells int) (setinput.ParsedSet, error)
	// Workouts returns the history, newest first. Empty start and end mean all.
	Workouts(ctx context.Context, start, end string) ([]models.CompletedWorkout, error)
	WorkoutStats(ctx context.Context) (history.Stats, error)
	VolumeTrend(ctx context.Context, days int) ([]history.TrendPoint, error)
	Templates(ctx context.Context, f templates.Filter) ([]models.WorkoutTemplate, error)
	SearchExercises(ctx context.Context, f exercises.Filter) (exercises.SearchResult, error)
	GoalProgress(ctx context.Context, kind goals.Kind) (goals.Progress, error)
}

// Local serves tools straight from the services.
type Local struct {
	History         *history.Store
	Prefs           *units.PreferenceStore
	TemplateService *templates.Service
	Exercises       *exercises.Library
	Goals           map[goals.Kind]*goals.Tracker
}

// Compile-time checks.
var (
	_ DataSource = (*Local)(nil)
	_ DataSource = (*HTTPClient)(nil)
)

func (l *Local) ParseSet(ctx context.Context, input string, unit units.Unit, bells int) (setinput.ParsedSet, error) {
	if unit == "" {
		unit, _ = l.Prefs.Load(ctx)
	}
	return setinput.Parse(input, setinput.Options{DefaultUnit: unit, DefaultBells: bells}), nil
}

func (l *Local) Workouts(ctx context.Context, start, end string) ([]models.CompletedWorkout, error) {
	if start == "" && end == "" {
		return l.History.History(ctx).Workouts, nil
	}
	if start == "" {
		start = "0000-01-01"
	}
	if end == "" {
		end = "9999-12-31"
	}
	return l.History.InRange(ctx, start, end).Workouts, nil
}

func (l *Local) WorkoutStats(ctx context.Context) (history.Stats, error) {
	return l.History.Stats(ctx), nil
}

func (l *Local) VolumeTrend(ctx context.Context, days int) ([]history.TrendPoint, error) {
	return l.History.VolumeTrend(ctx, days), nil
}

func (l *Local) Templates(ctx context.Context, f templates.Filter) ([]models.WorkoutTemplate, error) {
	return l.TemplateService.List(ctx, f).Templates, nil
}

func (l *Local) SearchExercises(_ context.Context, f exercises.Filter) (exercises.SearchResult, error) {
	return l.Exercises.Search(f), nil
}

func (l *Local) GoalProgress(ctx context.Context, kind goals.Kind) (goals.Progress, error) {
	t, ok := l.Goals[kind]
	if !ok {
		return goals.Progress{}, fmt.Errorf("unknown goal %q", kind)
	}
	return t.Progress(ctx), nil
}

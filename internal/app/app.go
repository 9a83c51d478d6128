// Package app wires the forge services from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgefit/forge/internal/config"
	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/mcp"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/server"
	"github.com/forgefit/forge/internal/session"
	"github.com/forgefit/forge/internal/templates"
	"github.com/forgefit/forge/internal/units"
)

// Services holds every service built on one store.
type Services struct {
	Store     kv.Store
	History   *history.Store
	Prefs     *units.PreferenceStore
	Sessions  *session.Service
	Goals     map[goals.Kind]*goals.Tracker
	Exercises *exercises.Library
	Templates *templates.Service
}

// Build constructs the services on store and loads the exercise library from
// its caches. m may be nil.
func Build(ctx context.Context, cfg *config.Config, store kv.Store, m *metrics.Manager, log *slog.Logger) (*Services, error) {
	loc := cfg.Clock.Location()

	hopts := []history.Option{history.WithLocation(loc)}
	libOpts := []exercises.Option{}
	if m != nil {
		hopts = append(hopts, history.WithMetrics(m))
		libOpts = append(libOpts, exercises.WithMetrics(m))
	}
	hist := history.New(store, log, hopts...)

	fallback, ok := units.Parse(cfg.Units.Default)
	if !ok {
		fallback = units.KG
	}
	prefs := units.NewPreferenceStore(store, fallback, log)

	var fetcher exercises.Fetcher
	if cfg.Exercises.SourceURL != "" {
		fetcher = exercises.NewClient(cfg.Exercises.SourceURL, cfg.Exercises.Timeout)
	}
	lib, err := exercises.NewLibrary(store, fetcher, log, libOpts...)
	if err != nil {
		return nil, fmt.Errorf("exercise library: %w", err)
	}
	lib.Load(ctx)

	trackers := make(map[goals.Kind]*goals.Tracker)
	for _, k := range goals.Kinds() {
		t, err := goals.New(k, store, log, loc)
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", k, err)
		}
		trackers[k] = t
	}

	return &Services{
		Store:     store,
		History:   hist,
		Prefs:     prefs,
		Sessions:  session.New(store, hist, prefs, log),
		Goals:     trackers,
		Exercises: lib,
		Templates: templates.New(store, lib, log),
	}, nil
}

// ServerDeps returns the HTTP server dependencies for s.
func (s *Services) ServerDeps(apiKey string, m *metrics.Manager) server.Deps {
	return server.Deps{
		History:   s.History,
		Prefs:     s.Prefs,
		Sessions:  s.Sessions,
		Goals:     s.Goals,
		Exercises: s.Exercises,
		Templates: s.Templates,
		Metrics:   m,
		APIKey:    apiKey,
	}
}

// DataSource returns an in-process MCP data source over s.
func (s *Services) DataSource() *mcp.Local {
	return &mcp.Local{
		History:         s.History,
		Prefs:           s.Prefs,
		TemplateService: s.Templates,
		Exercises:       s.Exercises,
		Goals:           s.Goals,
	}
}

// RefreshExercises downloads the exercise database unless the cache is fresh.
// Failures are logged; the cached library stays in use.
func (s *Services) RefreshExercises(ctx context.Context, log *slog.Logger) {
	if err := s.Exercises.Refresh(ctx, false); err != nil {
		log.Warn("exercise refresh failed", "error", err)
	}
}

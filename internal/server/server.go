package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/session"
	"github.com/forgefit/forge/internal/templates"
	"github.com/forgefit/forge/internal/units"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	History   *history.Store
	Prefs     *units.PreferenceStore
	Sessions  *session.Service
	Goals     map[goals.Kind]*goals.Tracker
	Exercises *exercises.Library
	Templates *templates.Service

	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer // served on /metrics when set
	APIKey   string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	history   *history.Store
	prefs     *units.PreferenceStore
	sessions  *session.Service
	goals     map[goals.Kind]*goals.Tracker
	exercises *exercises.Library
	templates *templates.Service
	metrics   *metrics.Manager
	gatherer  prometheus.Gatherer
	apiKey    string
	log       *slog.Logger
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps, log *slog.Logger) *Server {
	s := &Server{
		history:   d.History,
		prefs:     d.Prefs,
		sessions:  d.Sessions,
		goals:     d.Goals,
		exercises: d.Exercises,
		templates: d.Templates,
		metrics:   d.Metrics,
		gatherer:  d.Gatherer,
		apiKey:    d.APIKey,
		log:       log,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	if s.metrics != nil {
		s.router.Use(RequestMetrics(s.metrics))
	}
	s.router.Use(CORS)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/sets/parse", s.handleParseSet)
		r.Get("/sets/examples", s.handleSetExamples)

		r.Get("/units/convert", s.handleConvert)
		r.Get("/units/common-weights", s.handleCommonWeights)
		r.Get("/units/round", s.handleRoundWeight)
		r.Get("/units/preference", s.handleGetPreference)
		r.Put("/units/preference", s.handleSetPreference)
		r.Post("/units/toggle", s.handleTogglePreference)

		r.Route("/workouts", func(r chi.Router) {
			r.Get("/", s.handleQueryWorkouts)
			r.Get("/stats", s.handleWorkoutStats)
			r.Get("/trend", s.handleVolumeTrend)
			r.Get("/export", s.handleExportWorkouts)
			r.With(APIKeyAuth(s.apiKey)).Post("/import", s.handleImportWorkouts)
			r.Get("/{id}", s.handleGetWorkout)
			r.Delete("/{id}", s.handleDeleteWorkout)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Route("/{workoutID}", func(r chi.Router) {
				r.Post("/", s.handleStartSession)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCancelSession)
				r.Post("/sets", s.handleAddSet)
				r.Delete("/exercises/{exercise}/sets/{set}", s.handleDeleteSet)
				r.Put("/notes", s.handleSessionNotes)
				r.Post("/rest", s.handleStartRest)
				r.Post("/finish", s.handleFinishSession)
			})
		})

		r.Route("/goals/{kind}", func(r chi.Router) {
			r.Get("/", s.handleGoalProgress)
			r.Put("/", s.handleSetGoal)
			r.Post("/add", s.handleAddGoal)
		})

		r.Route("/exercises", func(r chi.Router) {
			r.Get("/", s.handleSearchExercises)
			r.Post("/", s.handleAddExercise)
			r.Get("/categories", s.handleExerciseCategories)
			r.With(APIKeyAuth(s.apiKey)).Post("/refresh", s.handleRefreshExercises)
			r.Get("/{id}", s.handleGetExercise)
			r.Get("/{id}/similar", s.handleSimilarExercises)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/export", s.handleExportAllTemplates)
			r.With(APIKeyAuth(s.apiKey)).Post("/import", s.handleImportTemplates)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/duplicate", s.handleDuplicateTemplate)
			r.Get("/{id}/export", s.handleExportTemplate)
		})
	})
}

// SetFrontend mounts the embedded SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp, behind the API key.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", h)
}

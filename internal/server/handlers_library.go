package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/templates"
)

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) tracker(w http.ResponseWriter, r *http.Request) (*goals.Tracker, bool) {
	kind := goals.Kind(chi.URLParam(r, "kind"))
	t, ok := s.goals[kind]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown goal %q", kind))
		return nil, false
	}
	return t, true
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Progress(r.Context()))
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	s.updateGoal(w, r, (*goals.Tracker).Add)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	s.updateGoal(w, r, (*goals.Tracker).Set)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request, apply func(*goals.Tracker, context.Context, float64) (float64, error)) {
	t, ok := s.tracker(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := apply(t, r.Context(), req.Amount); err != nil {
		if errors.Is(err, goals.ErrNegative) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("updating goal", "goal", t.Definition().Kind, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t.Progress(r.Context()))
}

func (s *Server) handleSearchExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := exercises.Filter{
		Categories:     q["category"],
		Equipment:      q["equipment"],
		PrimaryMuscles: q["muscle"],
		Difficulty:     q["difficulty"],
		Term:           q.Get("q"),
	}
	if v := q.Get("hasGif"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "hasGif must be a boolean")
			return
		}
		f.HasGif = b
	}
	writeJSON(w, http.StatusOK, s.exercises.Search(f))
}

func (s *Server) handleExerciseCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exercises.Categories())
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := s.exercises.ByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeExerciseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleSimilarExercises(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.exercises.Similar(chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeExerciseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var ex models.Exercise
	if err := readJSON(r, &ex); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.exercises.AddCustom(r.Context(), ex)
	if err != nil {
		s.writeExerciseError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleRefreshExercises(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := s.exercises.Refresh(r.Context(), force); err != nil {
		s.writeExerciseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"exercises": len(s.exercises.All())})
}

func (s *Server) writeExerciseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exercises.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exercises.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, exercises.ErrNoSource):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, exercises.ErrSourceEmpty):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error("exercise library error", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	custom, _ := strconv.ParseBool(q.Get("custom"))
	writeJSON(w, http.StatusOK, s.templates.List(r.Context(), templates.Filter{
		Term:       q.Get("q"),
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		CustomOnly: custom,
	}))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.WorkoutTemplate
	if err := readJSON(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = ""
	saved, err := s.templates.Save(r.Context(), t)
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.templates.Get(r.Context(), id); err != nil {
		s.writeTemplateError(w, err)
		return
	}
	var t models.WorkoutTemplate
	if err := readJSON(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = id
	saved, err := s.templates.Save(r.Context(), t)
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeTemplateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	dup, err := s.templates.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

func (s *Server) handleExportTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.templates.Get(r.Context(), id)
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	data, err := s.templates.Export(r.Context(), id)
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeAttachment(w, templates.FileName(t), data)
}

func (s *Server) handleExportAllTemplates(w http.ResponseWriter, r *http.Request) {
	data, err := s.templates.ExportAll(r.Context())
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeAttachment(w, templates.AllFileName(time.Now()), data)
}

func (s *Server) handleImportTemplates(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	result, err := s.templates.Import(r.Context(), data)
	if err != nil {
		s.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeAttachment(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

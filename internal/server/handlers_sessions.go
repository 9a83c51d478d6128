package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/session"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/templates"
)

type startSessionRequest struct {
	Name       string   `json:"name"`
	Exercises  []string `json:"exercises"`
	TemplateID string   `json:"templateId,omitempty"`
}

type addSetRequest struct {
	Exercise int    `json:"exercise"`
	Input    string `json:"input"`
}

type addSetResponse struct {
	Session models.ActiveSession `json:"session"`
	Parsed  setinput.ParsedSet   `json:"parsed"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TemplateID != "" {
		t, err := s.templates.Get(r.Context(), req.TemplateID)
		if err != nil {
			s.writeTemplateError(w, err)
			return
		}
		if req.Name == "" {
			req.Name = t.Name
		}
		if len(req.Exercises) == 0 {
			req.Exercises = s.templates.ExerciseNames(t)
		}
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sess, err := s.sessions.Start(r.Context(), chi.URLParam(r, "workoutID"), req.Name, req.Exercises)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "workoutID"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Cancel(r.Context(), chi.URLParam(r, "workoutID")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var req addSetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, parsed, err := s.sessions.AddSet(r.Context(), chi.URLParam(r, "workoutID"), req.Exercise, req.Input)
	var invalid *session.InvalidSetError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": invalid.Error(), "parsed": invalid.Parsed})
		return
	}
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addSetResponse{Session: sess, Parsed: parsed})
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	exercise, err := intParam(r, "exercise")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	set, err := intParam(r, "set")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.DeleteSet(r.Context(), chi.URLParam(r, "workoutID"), exercise, set)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.SetNotes(r.Context(), chi.URLParam(r, "workoutID"), req.Notes)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStartRest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.StartRest(r.Context(), chi.URLParam(r, "workoutID"), req.Seconds)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	workout, err := s.sessions.Finish(r.Context(), chi.URLParam(r, "workoutID"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workout)
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrExercise), errors.Is(err, session.ErrSet), errors.Is(err, session.ErrRest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("session error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeTemplateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, templates.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, templates.ErrBuiltIn):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, templates.ErrInvalid),
		errors.Is(err, templates.ErrInvalidImport),
		errors.Is(err, templates.ErrNoValidImport):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, templates.ErrNothingToExport):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("template error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

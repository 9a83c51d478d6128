package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/models"
)

const (
	maxBodyBytes     = 10 << 20
	defaultTrendDays = 30
)

func (s *Server) handleQueryWorkouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		if err := validateDate(date); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.history.ForDate(r.Context(), date))
		return
	}

	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		writeJSON(w, http.StatusOK, s.history.History(r.Context()))
		return
	}
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start and end are both required")
		return
	}
	for _, d := range []string{start, end} {
		if err := validateDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.history.InRange(r.Context(), start, end))
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	workout, ok := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "workout not found")
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	removed, err := s.history.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error("deleting workout", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "workout not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWorkoutStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Stats(r.Context()))
}

func (s *Server) handleVolumeTrend(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 366 {
			writeError(w, http.StatusBadRequest, "days must be an integer between 0 and 366")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, s.history.VolumeTrend(r.Context(), days))
}

func (s *Server) handleExportWorkouts(w http.ResponseWriter, r *http.Request) {
	data, err := s.history.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAttachment(w, fmt.Sprintf("forge-history-%s.json", s.history.Today().Format(models.DateLayout)), data)
}

func (s *Server) handleImportWorkouts(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	result, err := s.history.Import(r.Context(), data)
	if errors.Is(err, history.ErrInvalidImport) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("history import error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a size-limited request body into dst.
func readJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func validateDate(s string) error {
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

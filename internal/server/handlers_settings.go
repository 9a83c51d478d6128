package server

import (
	"net/http"
	"strconv"

	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/units"
)

type parseSetRequest struct {
	Input string     `json:"input"`
	Unit  units.Unit `json:"unit,omitempty"`
	Bells int        `json:"bells,omitempty"`
}

type parseSetResponse struct {
	setinput.ParsedSet
	Display string `json:"display"`
}

func (s *Server) handleParseSet(w http.ResponseWriter, r *http.Request) {
	var req parseSetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unit := req.Unit
	if unit == "" {
		unit, _ = s.prefs.Load(r.Context())
	} else if !unit.Valid() {
		writeError(w, http.StatusBadRequest, "unit must be kg or lbs")
		return
	}
	p := setinput.Parse(req.Input, setinput.Options{DefaultUnit: unit, DefaultBells: req.Bells})
	writeJSON(w, http.StatusOK, parseSetResponse{ParsedSet: p, Display: setinput.Format(p)})
}

func (s *Server) handleSetExamples(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.unitParam(r, "unit")
	if !ok {
		writeError(w, http.StatusBadRequest, "unit must be kg or lbs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unit": unit, "examples": setinput.Examples(unit)})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a number")
		return
	}
	from, okFrom := units.Parse(r.URL.Query().Get("from"))
	to, okTo := units.Parse(r.URL.Query().Get("to"))
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "from and to must be kg or lbs")
		return
	}
	converted := units.Convert(value, from, to)
	writeJSON(w, http.StatusOK, map[string]any{
		"value":     converted,
		"unit":      to,
		"formatted": units.FormatWeight(converted, to),
	})
}

func (s *Server) handleCommonWeights(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.unitParam(r, "unit")
	if !ok {
		writeError(w, http.StatusBadRequest, "unit must be kg or lbs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unit": unit, "weights": units.CommonWeights(unit)})
}

func (s *Server) handleRoundWeight(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a number")
		return
	}
	unit, ok := s.unitParam(r, "unit")
	if !ok {
		writeError(w, http.StatusBadRequest, "unit must be kg or lbs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unit": unit, "weight": units.RoundToCommonWeight(value, unit)})
}

type preferenceBody struct {
	Unit     units.Unit `json:"unit"`
	Degraded bool       `json:"degraded,omitempty"`
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	unit, degraded := s.prefs.Load(r.Context())
	writeJSON(w, http.StatusOK, preferenceBody{Unit: unit, Degraded: degraded})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceBody
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unit, ok := units.Parse(string(req.Unit))
	if !ok {
		writeError(w, http.StatusBadRequest, "unit must be kg or lbs")
		return
	}
	if err := s.prefs.Set(r.Context(), unit); err != nil {
		s.log.Error("saving unit preference", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Unit: unit})
}

func (s *Server) handleTogglePreference(w http.ResponseWriter, r *http.Request) {
	unit, err := s.prefs.Toggle(r.Context())
	if err != nil {
		s.log.Error("toggling unit preference", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Unit: unit})
}

// unitParam reads a unit query parameter, defaulting to the saved preference.
func (s *Server) unitParam(r *http.Request, name string) (units.Unit, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		unit, _ := s.prefs.Load(r.Context())
		return unit, true
	}
	return units.Parse(v)
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/models"
)

// ErrInvalidImport is returned when import data is not a JSON array.
var ErrInvalidImport = errors.New("import data must be a JSON array of workouts")

// ImportResult holds the outcome of an import.
type ImportResult struct {
	WorkoutsReceived int `json:"workouts_received"`
	// WorkoutsMalformed counts records that do not decode as a workout. They
	// are stored anyway; reads fail until the history is replaced.
	WorkoutsMalformed int    `json:"workouts_malformed,omitempty"`
	Message           string `json:"message,omitempty"`
}

// Export returns the history as indented JSON. An unreadable history exports
// as an empty array.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	data, err := json.MarshalIndent(s.load(ctx).Workouts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	return data, nil
}

// Import replaces the whole history with data. Only the top-level shape is
// checked: any JSON array is accepted and stored as given.
func (s *Store) Import(ctx context.Context, data []byte) (ImportResult, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		s.log.Warn("rejecting history import", "error", err)
		return ImportResult{}, ErrInvalidImport
	}

	result := ImportResult{WorkoutsReceived: len(records)}
	for _, r := range records {
		var w models.CompletedWorkout
		if err := json.Unmarshal(r, &w); err != nil {
			result.WorkoutsMalformed++
		}
	}

	compact, err := json.Marshal(records)
	if err != nil {
		return ImportResult{}, fmt.Errorf("encoding import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, kv.KeyWorkoutHistory, string(compact)); err != nil {
		return ImportResult{}, fmt.Errorf("storing import: %w", err)
	}

	if result.WorkoutsMalformed > 0 {
		result.Message = fmt.Sprintf("imported %d workouts, %d do not look like workouts", result.WorkoutsReceived, result.WorkoutsMalformed)
		s.log.Warn("history import contains malformed records",
			"received", result.WorkoutsReceived, "malformed", result.WorkoutsMalformed)
	} else {
		result.Message = fmt.Sprintf("imported %d workouts", result.WorkoutsReceived)
		s.log.Info("history imported", "received", result.WorkoutsReceived)
	}
	return result, nil
}

// MergeResult holds the outcome of a Merge.
type MergeResult struct {
	Received int `json:"received"`
	Added    int `json:"added"`
	Skipped  int `json:"skipped"` // id already present
}

// Merge adds workouts whose id is not yet in the history, keeping their own
// dates. Volumes are recomputed in kilograms. Re-merging the same workouts is
// a no-op.
func (s *Store) Merge(ctx context.Context, workouts []models.CompletedWorkout) (MergeResult, error) {
	result := MergeResult{Received: len(workouts)}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.load(ctx)
	if res.Outcome == kv.Unavailable {
		return result, fmt.Errorf("merging workouts: history unavailable")
	}

	seen := make(map[string]bool, len(res.Workouts))
	for _, w := range res.Workouts {
		seen[w.ID] = true
	}
	list := res.Workouts
	for _, w := range workouts {
		if w.ID == "" || seen[w.ID] {
			result.Skipped++
			continue
		}
		seen[w.ID] = true
		w.Exercises = Recompute(w.Exercises)
		w.TotalVolume = WorkoutVolumeKg(w.Exercises)
		list = append(list, w)
		result.Added++
	}
	if result.Added == 0 {
		return result, nil
	}
	sortNewestFirst(list)

	if err := kv.WriteJSON(ctx, s.kv, kv.KeyWorkoutHistory, list); err != nil {
		return result, fmt.Errorf("merging workouts: %w", err)
	}
	if s.metrics != nil {
		s.metrics.CounterWorkoutsSaved.Add(float64(result.Added))
	}
	s.log.Info("workouts merged", "received", result.Received, "added", result.Added, "skipped", result.Skipped)
	return result, nil
}

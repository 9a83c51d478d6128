// Package session manages in-progress workouts. Each one is stored under its
// own key until it is finished into the history or cancelled.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/units"
)

var (
	ErrNoSession     = errors.New("no active session for workout")
	ErrSessionExists = errors.New("workout already has an active session")
	ErrExercise      = errors.New("exercise index out of range")
	ErrSet           = errors.New("set index out of range")
	ErrRest          = errors.New("rest duration must be positive")
)

// InvalidSetError wraps a parse that was rejected.
type InvalidSetError struct {
	Parsed setinput.ParsedSet
}

func (e *InvalidSetError) Error() string {
	return e.Parsed.Error
}

// Service runs active sessions on top of a kv store and the history.
type Service struct {
	store   kv.Store
	history *history.Store
	prefs   *units.PreferenceStore
	log     *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

func New(store kv.Store, hist *history.Store, prefs *units.PreferenceStore, log *slog.Logger) *Service {
	return &Service{store: store, history: hist, prefs: prefs, log: log, now: time.Now}
}

// SetClock overrides time.Now. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start opens a session for workoutID with one empty exercise per name.
func (s *Service) Start(ctx context.Context, workoutID, name string, exerciseNames []string) (models.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx, workoutID); err == nil {
		return models.ActiveSession{}, ErrSessionExists
	} else if !errors.Is(err, ErrNoSession) {
		return models.ActiveSession{}, err
	}

	sess := models.ActiveSession{
		WorkoutID:   workoutID,
		WorkoutName: name,
		StartTime:   s.now().UnixMilli(),
		Exercises:   make([]models.WorkoutExercise, 0, len(exerciseNames)),
	}
	for _, n := range exerciseNames {
		sess.Exercises = append(sess.Exercises, models.WorkoutExercise{
			ID:   history.NewID(),
			Name: n,
			Sets: []models.WorkoutSet{},
		})
	}
	if err := s.save(ctx, &sess); err != nil {
		return models.ActiveSession{}, err
	}
	s.log.Info("session started", "workout_id", workoutID, "exercises", len(exerciseNames))
	return sess, nil
}

// Get returns the active session for workoutID, or ErrNoSession.
func (s *Service) Get(ctx context.Context, workoutID string) (models.ActiveSession, error) {
	return s.load(ctx, workoutID)
}

// List returns every active session.
func (s *Service) List(ctx context.Context) ([]models.ActiveSession, error) {
	keys, err := s.store.Keys(ctx, kv.ActiveSessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	out := []models.ActiveSession{}
	for _, k := range keys {
		sess, err := s.load(ctx, strings.TrimPrefix(k, kv.ActiveSessionPrefix))
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// AddSet parses input with the user's preferred unit and two bells as
// defaults and appends the set to exercise exerciseIndex.
func (s *Service) AddSet(ctx context.Context, workoutID string, exerciseIndex int, input string) (models.ActiveSession, setinput.ParsedSet, error) {
	unit, _ := s.prefs.Load(ctx)
	parsed := setinput.Parse(input, setinput.Options{DefaultUnit: unit, DefaultBells: 2})
	if !parsed.IsValid {
		return models.ActiveSession{}, parsed, &InvalidSetError{Parsed: parsed}
	}

	sess, err := s.update(ctx, workoutID, func(sess *models.ActiveSession) error {
		if exerciseIndex < 0 || exerciseIndex >= len(sess.Exercises) {
			return ErrExercise
		}
		ex := &sess.Exercises[exerciseIndex]
		ex.Sets = append(ex.Sets, history.SetFromParsed(parsed, s.now()))
		ex.TotalVolume = history.ExerciseVolumeKg(ex.Sets)
		return nil
	})
	return sess, parsed, err
}

// DeleteSet removes one set and recomputes the exercise volume.
func (s *Service) DeleteSet(ctx context.Context, workoutID string, exerciseIndex, setIndex int) (models.ActiveSession, error) {
	return s.update(ctx, workoutID, func(sess *models.ActiveSession) error {
		if exerciseIndex < 0 || exerciseIndex >= len(sess.Exercises) {
			return ErrExercise
		}
		ex := &sess.Exercises[exerciseIndex]
		if setIndex < 0 || setIndex >= len(ex.Sets) {
			return ErrSet
		}
		ex.Sets = append(ex.Sets[:setIndex], ex.Sets[setIndex+1:]...)
		ex.TotalVolume = history.ExerciseVolumeKg(ex.Sets)
		return nil
	})
}

// SetNotes replaces the session notes.
func (s *Service) SetNotes(ctx context.Context, workoutID, notes string) (models.ActiveSession, error) {
	return s.update(ctx, workoutID, func(sess *models.ActiveSession) error {
		sess.Notes = notes
		return nil
	})
}

// StartRest records a rest timer of seconds starting now.
func (s *Service) StartRest(ctx context.Context, workoutID string, seconds int) (models.ActiveSession, error) {
	if seconds <= 0 {
		return models.ActiveSession{}, ErrRest
	}
	return s.update(ctx, workoutID, func(sess *models.ActiveSession) error {
		sess.RestStartTime = s.now().UnixMilli()
		sess.RestDuration = seconds
		return nil
	})
}

// Finish saves the session into the history and removes it.
func (s *Service) Finish(ctx context.Context, workoutID string) (models.CompletedWorkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, workoutID)
	if err != nil {
		return models.CompletedWorkout{}, err
	}
	workout, err := s.history.Save(ctx, history.SaveRequest{
		Name:      sess.WorkoutName,
		Exercises: sess.Exercises,
		StartTime: time.UnixMilli(sess.StartTime),
		EndTime:   s.now(),
		Notes:     sess.Notes,
	})
	if err != nil {
		return models.CompletedWorkout{}, err
	}
	if err := s.store.Delete(ctx, kv.ActiveSessionKey(workoutID)); err != nil {
		// The workout is already in the history; a leftover session is harmless.
		s.log.Error("removing finished session", "workout_id", workoutID, "error", err)
	}
	return workout, nil
}

// Cancel drops the session without saving.
func (s *Service) Cancel(ctx context.Context, workoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx, workoutID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, kv.ActiveSessionKey(workoutID)); err != nil {
		return fmt.Errorf("cancelling session %s: %w", workoutID, err)
	}
	s.log.Info("session cancelled", "workout_id", workoutID)
	return nil
}

func (s *Service) update(ctx context.Context, workoutID string, fn func(*models.ActiveSession) error) (models.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, workoutID)
	if err != nil {
		return models.ActiveSession{}, err
	}
	if err := fn(&sess); err != nil {
		return models.ActiveSession{}, err
	}
	if err := s.save(ctx, &sess); err != nil {
		return models.ActiveSession{}, err
	}
	return sess, nil
}

func (s *Service) load(ctx context.Context, workoutID string) (models.ActiveSession, error) {
	var sess models.ActiveSession
	outcome, err := kv.ReadJSON(ctx, s.store, kv.ActiveSessionKey(workoutID), &sess)
	switch outcome {
	case kv.Loaded:
		return sess, nil
	case kv.Unavailable:
		return models.ActiveSession{}, err
	case kv.Corrupt:
		s.log.Warn("discarding unreadable session", "workout_id", workoutID, "error", err)
	}
	return models.ActiveSession{}, ErrNoSession
}

func (s *Service) save(ctx context.Context, sess *models.ActiveSession) error {
	sess.LastActiveTime = s.now().UnixMilli()
	return kv.WriteJSON(ctx, s.store, kv.ActiveSessionKey(sess.WorkoutID), sess)
}

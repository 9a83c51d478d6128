// Package history keeps the list of completed workouts and derives
// statistics from it. The whole list lives in one key as a JSON array sorted
// newest first.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/models"
)

// Store reads and writes the persisted workout history.
//
// Writes are serialized within the process. Two processes sharing a backend
// can still overwrite each other's appends; the last full-list write wins.
type Store struct {
	kv      kv.Store
	log     *slog.Logger
	metrics *metrics.Manager
	now     func() time.Time
	loc     *time.Location
	newID   func() string

	mu sync.Mutex
}

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the timezone calendar dates are taken in. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithMetrics records saves and degraded reads.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Store) { s.metrics = m }
}

func New(store kv.Store, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:    store,
		log:   log,
		now:   time.Now,
		loc:   time.UTC,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a history read. On a degraded read Workouts is empty and Outcome
// says why.
type Result struct {
	Workouts []models.CompletedWorkout `json:"workouts"`
	Outcome  kv.Outcome                `json:"-"`
}

// Degraded reports whether stored history existed but could not be read.
func (r Result) Degraded() bool {
	return r.Outcome.Degraded()
}

// MarshalJSON adds "degraded" so HTTP callers can tell an unreadable history
// from an empty one.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Workouts []models.CompletedWorkout `json:"workouts"`
		Degraded bool                      `json:"degraded,omitempty"`
	}{r.Workouts, r.Degraded()})
}

// SaveRequest describes a finished session.
type SaveRequest struct {
	Name      string
	Exercises []models.WorkoutExercise
	StartTime time.Time
	EndTime   time.Time // zero means now
	Notes     string
}

// Today returns the current calendar date in the store's location.
func (s *Store) Today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// Save recomputes every exercise volume in kilograms, stamps the workout with
// a new id and today's date, and writes it into the history.
//
// A corrupt history is replaced by a list holding only the new workout. An
// unreachable backend fails the save instead, so a transient read error never
// wipes stored history.
func (s *Store) Save(ctx context.Context, req SaveRequest) (models.CompletedWorkout, error) {
	end := req.EndTime
	if end.IsZero() {
		end = s.now()
	}
	exercises := Recompute(req.Exercises)
	workout := models.CompletedWorkout{
		ID:          s.newID(),
		Date:        s.Today().Format(models.DateLayout),
		StartTime:   req.StartTime.UnixMilli(),
		EndTime:     end.UnixMilli(),
		WorkoutName: req.Name,
		Exercises:   exercises,
		TotalVolume: WorkoutVolumeKg(exercises),
		Notes:       req.Notes,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.load(ctx)
	if res.Outcome == kv.Unavailable {
		return models.CompletedWorkout{}, fmt.Errorf("saving workout: history unavailable")
	}
	list := append(res.Workouts, workout)
	sortNewestFirst(list)

	if err := kv.WriteJSON(ctx, s.kv, kv.KeyWorkoutHistory, list); err != nil {
		return models.CompletedWorkout{}, fmt.Errorf("saving workout: %w", err)
	}
	if s.metrics != nil {
		s.metrics.CounterWorkoutsSaved.Inc()
	}
	s.log.Info("workout saved",
		"id", workout.ID,
		"name", workout.WorkoutName,
		"exercises", len(workout.Exercises),
		"volume_kg", workout.TotalVolume,
	)
	return workout, nil
}

// History returns every stored workout, newest first. It never fails: an
// unreadable history comes back empty with a degraded outcome.
func (s *Store) History(ctx context.Context) Result {
	return s.load(ctx)
}

// ForDate returns the workouts logged on date (YYYY-MM-DD).
func (s *Store) ForDate(ctx context.Context, date string) Result {
	res := s.load(ctx)
	res.Workouts = filter(res.Workouts, func(w models.CompletedWorkout) bool {
		return w.Date == date
	})
	return res
}

// InRange returns workouts with start <= date <= end. Dates compare as strings.
func (s *Store) InRange(ctx context.Context, start, end string) Result {
	res := s.load(ctx)
	res.Workouts = filter(res.Workouts, func(w models.CompletedWorkout) bool {
		return w.Date >= start && w.Date <= end
	})
	return res
}

// Get finds one workout by id.
func (s *Store) Get(ctx context.Context, id string) (models.CompletedWorkout, bool) {
	for _, w := range s.load(ctx).Workouts {
		if w.ID == id {
			return w, true
		}
	}
	return models.CompletedWorkout{}, false
}

// Delete removes the workout with id. It returns false, leaving the history
// untouched, when no such workout exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.load(ctx)
	if res.Outcome == kv.Unavailable {
		return false, fmt.Errorf("deleting workout %s: history unavailable", id)
	}
	idx := -1
	for i, w := range res.Workouts {
		if w.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, nil
	}

	list := append(res.Workouts[:idx:idx], res.Workouts[idx+1:]...)
	if err := kv.WriteJSON(ctx, s.kv, kv.KeyWorkoutHistory, list); err != nil {
		return false, fmt.Errorf("deleting workout %s: %w", id, err)
	}
	s.log.Info("workout deleted", "id", id)
	return true, nil
}

func (s *Store) load(ctx context.Context) Result {
	var list []models.CompletedWorkout
	outcome, err := kv.ReadJSON(ctx, s.kv, kv.KeyWorkoutHistory, &list)
	if outcome.Degraded() {
		s.log.Warn("workout history unreadable, treating as empty", "outcome", outcome, "error", err)
		if s.metrics != nil {
			s.metrics.CounterDegradedReads.WithLabelValues(kv.KeyWorkoutHistory, outcome.String()).Inc()
		}
		return Result{Workouts: []models.CompletedWorkout{}, Outcome: outcome}
	}
	if list == nil {
		list = []models.CompletedWorkout{}
	}
	return Result{Workouts: list, Outcome: outcome}
}

func sortNewestFirst(list []models.CompletedWorkout) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Date > list[j].Date
	})
}

func filter(list []models.CompletedWorkout, keep func(models.CompletedWorkout) bool) []models.CompletedWorkout {
	out := []models.CompletedWorkout{}
	for _, w := range list {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

package models

import (
	"time"

	"github.com/forgefit/forge/internal/units"
)

// DateLayout is the calendar date format used for CompletedWorkout.Date and
// every per-day map. Dates in this form compare correctly as strings.
const DateLayout = "2006-01-02"

// WorkoutSet is one logged set. Timestamps are Unix milliseconds so exported
// history stays readable by the web app.
type WorkoutSet struct {
	ID            string     `json:"id"`
	WeightPerBell float64    `json:"weightPerBell"`
	NumberOfBells int        `json:"numberOfBells"`
	Reps          int        `json:"reps"`
	TotalVolume   float64    `json:"totalVolume"`
	Unit          units.Unit `json:"unit"`
	RawInput      string     `json:"rawInput"`
	Timestamp     int64      `json:"timestamp"`
}

// VolumeKg returns the set volume converted to kilograms.
func (s WorkoutSet) VolumeKg() float64 {
	if s.Unit == units.LBS {
		return units.Convert(s.TotalVolume, units.LBS, units.KG)
	}
	return s.TotalVolume
}

// WorkoutExercise groups the sets logged for one exercise. TotalVolume is
// always in kilograms and is a snapshot written by whoever changed Sets.
type WorkoutExercise struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Sets        []WorkoutSet `json:"sets"`
	TotalVolume float64      `json:"totalVolume"`
}

// CompletedWorkout is one finished workout in the persisted history.
type CompletedWorkout struct {
	ID          string            `json:"id"`
	Date        string            `json:"date"`
	StartTime   int64             `json:"startTime"`
	EndTime     int64             `json:"endTime"`
	WorkoutName string            `json:"workoutName,omitempty"`
	Exercises   []WorkoutExercise `json:"exercises"`
	TotalVolume float64           `json:"totalVolume"`
	Notes       string            `json:"notes,omitempty"`
}

// Duration returns EndTime - StartTime.
func (w CompletedWorkout) Duration() time.Duration {
	return time.Duration(w.EndTime-w.StartTime) * time.Millisecond
}

// SetCount returns the number of sets across all exercises.
func (w CompletedWorkout) SetCount() int {
	n := 0
	for _, ex := range w.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// Millis converts t to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// ActiveSession is an in-progress workout, persisted per workout id until it
// is finished or cancelled.
type ActiveSession struct {
	WorkoutID      string            `json:"workoutId"`
	WorkoutName    string            `json:"workoutName,omitempty"`
	StartTime      int64             `json:"startTime"`
	Exercises      []WorkoutExercise `json:"exercises"`
	Notes          string            `json:"notes"`
	RestStartTime  int64             `json:"restStartTime,omitempty"`
	RestDuration   int               `json:"restDuration,omitempty"` // seconds
	LastActiveTime int64             `json:"lastActiveTime,omitempty"`
}

// RestRemaining returns the seconds left on the rest timer at now, or 0 when
// no timer is running or it already elapsed.
func (s ActiveSession) RestRemaining(now time.Time) int {
	if s.RestStartTime == 0 || s.RestDuration == 0 {
		return 0
	}
	elapsed := int((now.UnixMilli() - s.RestStartTime) / 1000)
	if remaining := s.RestDuration - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

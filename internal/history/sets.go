package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/setinput"
)

// NewID returns a time-ordered random identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SetFromParsed turns a confirmed parse into a loggable set.
func SetFromParsed(p setinput.ParsedSet, now time.Time) models.WorkoutSet {
	return models.WorkoutSet{
		ID:            NewID(),
		WeightPerBell: p.WeightPerBell,
		NumberOfBells: p.NumberOfBells,
		Reps:          p.Reps,
		TotalVolume:   p.TotalVolume,
		Unit:          p.Unit,
		RawInput:      p.RawInput,
		Timestamp:     now.UnixMilli(),
	}
}

// ExerciseVolumeKg sums set volumes in kilograms, whatever unit each set used.
func ExerciseVolumeKg(sets []models.WorkoutSet) float64 {
	total := 0.0
	for _, s := range sets {
		total += s.VolumeKg()
	}
	return total
}

// WorkoutVolumeKg sums the exercise volume snapshots.
func WorkoutVolumeKg(exercises []models.WorkoutExercise) float64 {
	total := 0.0
	for _, ex := range exercises {
		total += ex.TotalVolume
	}
	return total
}

// Recompute returns a copy of exercises with every TotalVolume rebuilt from
// its sets.
func Recompute(exercises []models.WorkoutExercise) []models.WorkoutExercise {
	out := make([]models.WorkoutExercise, len(exercises))
	for i, ex := range exercises {
		ex.TotalVolume = ExerciseVolumeKg(ex.Sets)
		if ex.Sets == nil {
			ex.Sets = []models.WorkoutSet{}
		}
		out[i] = ex
	}
	return out
}

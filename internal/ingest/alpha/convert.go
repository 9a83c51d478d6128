package alpha

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/units"
)

// idSpace namespaces workout ids derived from exported sessions.
var idSpace = uuid.MustParse("6f1c9a52-3c1e-4b8e-9a57-2d0f4e7b8c31")

// WorkoutID is stable for a session name and start, so re-importing an
// export finds the workouts it added before.
func WorkoutID(s Session) string {
	key := s.Name + "|" + s.Start.Format("2006-01-02 15:04")
	return uuid.NewSHA1(idSpace, []byte(key)).String()
}

// Workout converts s into a completed workout. Start times are read as wall
// clock in loc. Every set is logged as one bell in kilograms; bodyweight sets
// count only the added load.
func Workout(s Session, loc *time.Location, warmups bool) models.CompletedWorkout {
	start := time.Date(s.Start.Year(), s.Start.Month(), s.Start.Day(),
		s.Start.Hour(), s.Start.Minute(), 0, 0, loc)
	id := WorkoutID(s)

	w := models.CompletedWorkout{
		ID:          id,
		Date:        start.Format(models.DateLayout),
		StartTime:   start.UnixMilli(),
		EndTime:     start.Add(s.Duration).UnixMilli(),
		WorkoutName: s.Name,
		Exercises:   []models.WorkoutExercise{},
		Notes:       "Imported from Alpha Progression",
	}
	for _, ex := range s.Exercises {
		we := models.WorkoutExercise{
			ID:   fmt.Sprintf("%s-%d", id, ex.Number),
			Name: ex.Name,
			Sets: []models.WorkoutSet{},
		}
		for i, set := range ex.Sets {
			if set.Warmup && !warmups {
				continue
			}
			we.Sets = append(we.Sets, models.WorkoutSet{
				ID:            fmt.Sprintf("%s-%d-%d", id, ex.Number, i+1),
				WeightPerBell: set.WeightKg,
				NumberOfBells: 1,
				Reps:          set.Reps,
				TotalVolume:   set.WeightKg * float64(set.Reps),
				Unit:          units.KG,
				RawInput:      rawInput(set),
				Timestamp:     start.UnixMilli(),
			})
		}
		w.Exercises = append(w.Exercises, we)
	}
	return w
}

func rawInput(s Set) string {
	weight := units.FormatWeight(s.WeightKg, units.KG)
	if s.Bodyweight {
		weight = "BW+" + weight
	}
	return fmt.Sprintf("%s x%d", weight, s.Reps)
}

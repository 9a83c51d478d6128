package history

import (
	"context"
	"sort"
	"time"

	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/units"
)

const topExerciseLimit = 5

// Stats aggregates the whole history.
type Stats struct {
	TotalWorkouts           int            `json:"totalWorkouts"`
	TotalVolumeKg           float64        `json:"totalVolumeKg"`
	TotalVolumeLbs          float64        `json:"totalVolumeLbs"`
	AverageVolumePerWorkout float64        `json:"averageVolumePerWorkout"`
	TopExercises            []ExerciseStat `json:"topExercises"`
	LastWorkoutDate         string         `json:"lastWorkoutDate,omitempty"`
	CurrentStreak           int            `json:"currentStreak"`
	Degraded                bool           `json:"degraded,omitempty"`
}

// ExerciseStat is the cumulative volume (kg) and set count for one exercise name.
type ExerciseStat struct {
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
	Count  int     `json:"count"`
}

// TrendPoint is the total volume (kg) logged on one calendar day.
type TrendPoint struct {
	Date   string  `json:"date"`
	Volume float64 `json:"volume"`
}

// Stats computes totals, the top five exercises and the current streak.
func (s *Store) Stats(ctx context.Context) Stats {
	res := s.load(ctx)
	st := Summarize(res.Workouts, s.Today())
	st.Degraded = res.Degraded()
	return st
}

// Summarize computes Stats over list, which must be sorted newest first.
// today is the calendar day the streak ends on.
func Summarize(list []models.CompletedWorkout, today time.Time) Stats {
	st := Stats{TopExercises: []ExerciseStat{}}
	if len(list) == 0 {
		return st
	}

	st.TotalWorkouts = len(list)
	for _, w := range list {
		st.TotalVolumeKg += w.TotalVolume
	}
	st.TotalVolumeLbs = units.Convert(st.TotalVolumeKg, units.KG, units.LBS)
	st.AverageVolumePerWorkout = st.TotalVolumeKg / float64(len(list))
	st.TopExercises = TopExercises(list, topExerciseLimit)
	st.LastWorkoutDate = list[0].Date

	dates := make([]string, 0, len(list))
	for _, w := range list {
		dates = append(dates, w.Date)
	}
	st.CurrentStreak = CurrentStreak(dates, today)
	return st
}

// TopExercises ranks exercise names by cumulative volume. Ties keep the order
// in which names were first seen.
func TopExercises(list []models.CompletedWorkout, limit int) []ExerciseStat {
	index := map[string]int{}
	var agg []ExerciseStat
	for _, w := range list {
		for _, ex := range w.Exercises {
			i, ok := index[ex.Name]
			if !ok {
				i = len(agg)
				index[ex.Name] = i
				agg = append(agg, ExerciseStat{Name: ex.Name})
			}
			agg[i].Volume += ex.TotalVolume
			agg[i].Count += len(ex.Sets)
		}
	}
	sort.SliceStable(agg, func(i, j int) bool {
		return agg[i].Volume > agg[j].Volume
	})
	if len(agg) > limit {
		agg = agg[:limit]
	}
	if agg == nil {
		agg = []ExerciseStat{}
	}
	return agg
}

// CurrentStreak counts consecutive days with a workout, ending today. No
// workout today means a streak of zero.
func CurrentStreak(dates []string, today time.Time) int {
	seen := map[string]bool{}
	unique := make([]string, 0, len(dates))
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(unique)))

	streak := 0
	check := today
	for _, d := range unique {
		if d != check.Format(models.DateLayout) {
			break
		}
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}

// VolumeTrend returns one point per day from today-days through today,
// inclusive, with zero for days without workouts.
func (s *Store) VolumeTrend(ctx context.Context, days int) []TrendPoint {
	if days < 0 {
		days = 0
	}
	today := s.Today()
	start := today.AddDate(0, 0, -days)

	res := s.InRange(ctx, start.Format(models.DateLayout), today.Format(models.DateLayout))
	byDate := map[string]float64{}
	for _, w := range res.Workouts {
		byDate[w.Date] += w.TotalVolume
	}

	trend := make([]TrendPoint, 0, days+1)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		trend = append(trend, TrendPoint{Date: key, Volume: byDate[key]})
	}
	return trend
}

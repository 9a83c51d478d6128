package templates

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/models"
)

var now = time.Date(2026, 10, 17, 7, 30, 0, 0, time.UTC)

func newService(t *testing.T, store kv.Store) *Service {
	t.Helper()
	lib, err := exercises.NewLibrary(store, nil, logging.Discard())
	require.NoError(t, err)
	s := New(store, lib, logging.Discard())
	s.SetClock(func() time.Time { return now })
	return s
}

func customTemplate() models.WorkoutTemplate {
	return models.WorkoutTemplate{
		Name:     gofakeit.Adjective() + " " + gofakeit.Noun(),
		Category: "conditioning",
		Exercises: []models.TemplateExercise{
			{ExerciseID: "kb_swing", TargetSets: 5, TargetReps: "20"},
			{ExerciseID: "bw_003", TargetSets: 3, TargetReps: "45s"},
		},
	}
}

func TestBuiltinTemplates(t *testing.T) {
	s := newService(t, kv.NewMemory())
	res := s.List(context.Background(), Filter{})
	require.Len(t, res.Templates, 3)

	a := res.Templates[0]
	assert.Equal(t, "Workout A", a.Name)
	assert.Equal(t, "4 exercise kettlebell workout", a.Description)
	assert.Equal(t, 48, a.EstimatedDuration)
	assert.Equal(t, []string{"kettlebell", "strength", "featured"}, a.Tags)
	assert.False(t, a.IsCustom)
	assert.Equal(t, "kb_front_squat_double", a.Exercises[0].ExerciseID)
	assert.Equal(t, "legacy_double_kettlebell_clean", a.Exercises[1].ExerciseID)
	assert.Equal(t, 4, a.Exercises[0].TargetSets)

	c := res.Templates[2]
	assert.Equal(t, "1,2,3 reps × 3 rounds", c.Exercises[2].TargetReps)
	assert.Equal(t, "Side Plank (with reach-under or weight)", c.Exercises[3].OriginalName)
	assert.Equal(t, 2, c.Exercises[3].TargetSets)
}

func TestBuiltinsAreReadOnly(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	_, err = s.Save(ctx, a)
	assert.ErrorIs(t, err, ErrBuiltIn)
	assert.ErrorIs(t, s.Delete(ctx, "b"), ErrBuiltIn)
}

func TestCustomCRUD(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	_, err := s.Save(ctx, models.WorkoutTemplate{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalid)

	created, err := s.Save(ctx, customTemplate())
	require.NoError(t, err)
	assert.Regexp(t, `^custom_\d+_[0-9a-f]{9}$`, created.ID)
	assert.True(t, created.IsCustom)
	assert.Equal(t, 24, created.EstimatedDuration)
	assert.Equal(t, 2, created.Exercises[1].Order)

	created.Name = "Renamed"
	s.SetClock(func() time.Time { return now.Add(time.Hour) })
	updated, err := s.Save(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), updated.CreatedAt)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), updated.UpdatedAt)

	custom := s.List(ctx, Filter{CustomOnly: true})
	require.Len(t, custom.Templates, 1)
	assert.Equal(t, "Renamed", custom.Templates[0].Name)

	require.NoError(t, s.Delete(ctx, created.ID))
	assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateBuiltin(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	dup, err := s.Duplicate(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "Workout C (Copy)", dup.Name)
	assert.True(t, dup.IsCustom)
	assert.NotEqual(t, "c", dup.ID)
	assert.Len(t, dup.Exercises, 4)

	_, err = s.Duplicate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())
	tpl := customTemplate()
	tpl.Name = "Evening Flow"
	tpl.Tags = []string{"mobility"}
	_, err := s.Save(ctx, tpl)
	require.NoError(t, err)

	assert.Len(t, s.List(ctx, Filter{Term: "MOBIL"}).Templates, 1)
	assert.Len(t, s.List(ctx, Filter{Term: "kettlebell workout"}).Templates, 3)
	assert.Len(t, s.List(ctx, Filter{Category: "strength"}).Templates, 3)
	assert.Len(t, s.List(ctx, Filter{Difficulty: "advanced"}).Templates, 0)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	_, err := s.ExportAll(ctx)
	assert.ErrorIs(t, err, ErrNothingToExport)

	created, err := s.Save(ctx, customTemplate())
	require.NoError(t, err)

	one, err := s.Export(ctx, created.ID)
	require.NoError(t, err)
	var doc ExportOne
	require.NoError(t, json.Unmarshal(one, &doc))
	assert.Equal(t, "Forge Workout App", doc.ExportedBy)
	assert.Equal(t, "1.0", doc.Version)

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	var allDoc ExportAll
	require.NoError(t, json.Unmarshal(all, &allDoc))
	assert.Equal(t, 1, allDoc.Count)

	other := newService(t, kv.NewMemory())
	res, err := other.Import(ctx, one)
	require.NoError(t, err)
	require.Len(t, res.Imported, 1)
	assert.Equal(t, created.Name+" (Imported)", res.Imported[0].Name)
	assert.Regexp(t, `^imported_`, res.Imported[0].ID)
	assert.Len(t, other.List(ctx, Filter{CustomOnly: true}).Templates, 1)
}

func TestImportValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	tests := []struct {
		name string
		data string
		err  error
	}{
		{"not json", `{`, ErrInvalidImport},
		{"no templates", `{"exportedBy": "x"}`, ErrInvalidImport},
		{"missing duration", `{"template": {"name": "x", "category": "strength", "difficulty": "beginner", "exercises": [], "equipment": []}}`, ErrNoValidImport},
		{"name not a string", `{"templates": [{"name": 3, "category": "strength", "difficulty": "beginner", "exercises": [], "equipment": [], "estimatedDuration": 10}]}`, ErrNoValidImport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Import(ctx, []byte(tt.data))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	mixed := `{"templates": [
		{"name": "Good", "category": "strength", "difficulty": "beginner", "exercises": [], "equipment": ["kettlebell"], "estimatedDuration": 30},
		{"name": "Bad", "category": "strength"}
	]}`
	res, err := s.Import(ctx, []byte(mixed))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Templates)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "Good (Imported)", res.Imported[0].Name)
}

func TestExerciseNames(t *testing.T) {
	ctx := context.Background()
	s := newService(t, kv.NewMemory())

	b, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Clean to Front Squat Complex", "Kettlebell Push Press", "Kettlebell Suitcase Carry", "Dead Bug or Bird-Dog",
	}, s.ExerciseNames(b))

	names := s.ExerciseNames(customTemplate())
	assert.Equal(t, []string{"Kettlebell Swing", "Plank"}, names)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "workout_a__copy__template.json", FileName(models.WorkoutTemplate{Name: "Workout A (Copy)"}))
	assert.Equal(t, "forge_workout_templates_2026-10-17.json", AllFileName(now))
}

func TestCorruptCustomTemplates(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, kv.KeyCustomTemplates, `{"not": "a list"}`))
	s := newService(t, mem)

	res := s.List(ctx, Filter{})
	assert.True(t, res.Degraded)
	assert.Len(t, res.Templates, 3)
}

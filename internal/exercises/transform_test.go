package exercises

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgefit/forge/internal/models"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"barbell bench press", "Barbell Bench Press"},
		{"CLEAN AND JERK", "Clean and Jerk"},
		{"the world's greatest stretch", "The World's Greatest Stretch"},
		{"a frame push up", "A Frame Push Up"},
		{"rack pull with bands of steel", "Rack Pull With Bands of Steel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.in), tt.in)
	}
}

func TestMappings(t *testing.T) {
	assert.Equal(t, "plyometric", MapCategory("plyometrics"))
	assert.Equal(t, "strength", MapCategory("strongman"))
	assert.Equal(t, "olympic", MapCategory("olympic_weightlifting"))
	assert.Equal(t, "strength", MapCategory("unknown"))

	equipment := map[string]string{
		"":              "bodyweight",
		"kettlebells":   "kettlebell",
		"body only":     "bodyweight",
		"Body-Only":     "bodyweight",
		"bands":         "resistance_band",
		"exercise ball": "stability_ball",
		"foam roll":     "foam_roller",
		"machine":       "bodyweight",
	}
	for in, want := range equipment {
		assert.Equal(t, want, MapEquipment(in), in)
	}

	m, ok := MapMuscle("abdominals")
	assert.True(t, ok)
	assert.Equal(t, "core", m)
	m, ok = MapMuscle("lower back")
	assert.True(t, ok)
	assert.Equal(t, "back", m)
	_, ok = MapMuscle("adductors")
	assert.False(t, ok)

	assert.Equal(t, "advanced", MapDifficulty("expert"))
	assert.Equal(t, "intermediate", MapDifficulty("unknown"))
}

func TestDefaultsByCategory(t *testing.T) {
	tests := []struct {
		category         string
		sets, reps, rest string
	}{
		{"strength", "3-4", "8-12", "60-90s"},
		{"powerlifting", "3-5", "1-5", "120-180s"},
		{"olympic_weightlifting", "3-5", "3-6", "120-180s"},
		{"cardio", "1-3", "30-60s", "30-60s"},
		{"stretching", "1-3", "30-60s", "15-30s"},
		{"plyometrics", "3-4", "8-15", "60-90s"},
		{"other", "3", "8-12", "60-90s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.sets, DefaultSets(tt.category), tt.category)
		assert.Equal(t, tt.reps, DefaultReps(tt.category), tt.category)
		assert.Equal(t, tt.rest, DefaultRest(tt.category), tt.category)
	}
}

func TestBestImage(t *testing.T) {
	assert.Equal(t, "", BestImage(nil))
	assert.Equal(t, "a/0.jpg", BestImage([]string{"a/0.jpg", "a/1.jpg"}))
	assert.Equal(t, "a/move.GIF", BestImage([]string{"a/0.jpg", "a/move.GIF"}))
}

func TestTransform(t *testing.T) {
	var src SourceExercise
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "Kettlebell_Pistol_Squat",
		"name": "kettlebell pistol squat",
		"force": "push",
		"level": "expert",
		"mechanic": "compound",
		"equipment": "kettlebells",
		"primaryMuscles": ["quadriceps", "adductors"],
		"secondaryMuscles": ["abdominals", "glutes", "lower back"],
		"instructions": ["Hold the bell", "Squat on one leg"],
		"category": "strength",
		"images": ["Kettlebell_Pistol_Squat/0.jpg", "Kettlebell_Pistol_Squat/1.jpg"]
	}`), &src))

	ex, ok := Transform(src)
	require.True(t, ok)
	assert.Equal(t, "free_Kettlebell_Pistol_Squat", ex.ID)
	assert.Equal(t, "Kettlebell Pistol Squat", ex.Name)
	assert.Equal(t, []string{"kettlebell"}, ex.Equipment)
	assert.Equal(t, []string{"quadriceps"}, ex.PrimaryMuscles)
	assert.Equal(t, []string{"core", "glutes", "back"}, ex.SecondaryMuscles)
	assert.Equal(t, "advanced", ex.Difficulty)
	assert.Equal(t, "Kettlebell_Pistol_Squat/0.jpg", ex.GifURL)
	assert.Equal(t, SourceFreeExerciseDB, ex.Source)
	assert.Equal(t, []string{"strength", "kettlebells", "quadriceps", "adductors", "push", "compound"}, ex.Tags)
	assert.Equal(t, "3-4", ex.RecommendedSets)
	assert.Empty(t, ex.SafetyTips)
	assert.NotNil(t, ex.AlternativeNames)
}

func TestTransformSnakeCaseMuscles(t *testing.T) {
	ex, ok := Transform(SourceExercise{
		ID: "x", Name: "x", PrimaryMusclesSnake: []string{"lats"}, Level: "beginner",
	})
	require.True(t, ok)
	assert.Equal(t, []string{"back"}, ex.PrimaryMuscles)
	assert.Equal(t, "strength", ex.Category)
	assert.Equal(t, "beginner", ex.Difficulty)
}

func TestTransformRejectsIncomplete(t *testing.T) {
	_, ok := Transform(SourceExercise{Name: "no id"})
	assert.False(t, ok)
	_, ok = Transform(SourceExercise{ID: "no-name"})
	assert.False(t, ok)
}

func TestTransformCurated(t *testing.T) {
	ex := TransformCurated(CuratedExercise{
		ID: "pullup_001", Name: "Pull-up", Category: "strength", Equipment: "pull_up_bar",
		BodyPart: "back", Target: "latissimus_dorsi", SecondaryMuscles: []string{"biceps", "rhomboids"},
		GifURL: "https://example.test/Pull-up.gif", Difficulty: "advanced",
	})
	assert.Equal(t, SourceCurated, ex.Source)
	assert.Equal(t, []string{"bodyweight"}, ex.Equipment)
	assert.Empty(t, ex.PrimaryMuscles)
	assert.Equal(t, []string{"biceps"}, ex.SecondaryMuscles)
	assert.Equal(t, []string{"https://example.test/Pull-up.gif"}, ex.ImageURLs)
	assert.Equal(t, []string{"back", "pull_up_bar", "latissimus_dorsi", "biceps", "rhomboids"}, ex.Tags)
}

func TestMerge(t *testing.T) {
	base := []models.Exercise{
		{ID: "free_1", Name: "Kettlebell Swing", ImageURLs: []string{"swing.jpg"}},
		{ID: "free_2", Name: "Plank", GifURL: "plank-old.gif"},
	}
	extra := []models.Exercise{
		{ID: "kb_001", Name: "kettlebell swing", GifURL: "swing.gif"},
		{ID: "bw_003", Name: "Plank", GifURL: "plank-new.gif"},
		{ID: "bw_001", Name: "Push-up", GifURL: "push.gif"},
	}

	merged := Merge(base, extra)
	require.Len(t, merged, 3)
	assert.Equal(t, "swing.gif", merged[0].GifURL)
	assert.Equal(t, []string{"swing.jpg", "swing.gif"}, merged[0].ImageURLs)
	assert.Equal(t, "plank-old.gif", merged[1].GifURL)
	assert.Equal(t, "bw_001", merged[2].ID)
	assert.Empty(t, base[0].GifURL, "base is not modified")
}

package models

// Exercise is an entry in the exercise library.
type Exercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Equipment        []string `json:"equipment"`
	PrimaryMuscles   []string `json:"primaryMuscles"`
	SecondaryMuscles []string `json:"secondaryMuscles"`
	Difficulty       string   `json:"difficulty"`
	Force            string   `json:"force,omitempty"`
	Mechanic         string   `json:"mechanic,omitempty"`

	Instructions   []string `json:"instructions"`
	FormCues       []string `json:"formCues"`
	SafetyTips     []string `json:"safetyTips"`
	CommonMistakes []string `json:"commonMistakes"`
	Variations     []string `json:"variations"`

	GifURL    string   `json:"gifUrl,omitempty"`
	ImageURLs []string `json:"imageUrls"`

	Source           string   `json:"source"` // local, curated, free_exercise_db
	Tags             []string `json:"tags"`
	AlternativeNames []string `json:"alternativeNames"`

	RecommendedSets string `json:"recommendedSets,omitempty"`
	RecommendedReps string `json:"recommendedReps,omitempty"`
	RecommendedRest string `json:"recommendedRest,omitempty"`
}

// HasMuscle reports whether m is a primary or secondary muscle.
func (e Exercise) HasMuscle(m string) bool {
	return contains(e.PrimaryMuscles, m) || contains(e.SecondaryMuscles, m)
}

// UsesEquipment reports whether eq is in the equipment list.
func (e Exercise) UsesEquipment(eq string) bool {
	return contains(e.Equipment, eq)
}

// WorkoutTemplate is a plan of exercises, either built in or user created.
type WorkoutTemplate struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Category          string             `json:"category"` // strength, hypertrophy, conditioning, mobility, mixed
	Difficulty        string             `json:"difficulty"`
	EstimatedDuration int                `json:"estimatedDuration"` // minutes
	Equipment         []string           `json:"equipment"`
	Exercises         []TemplateExercise `json:"exercises"`
	Tags              []string           `json:"tags"`
	IsCustom          bool               `json:"isCustom"`
	CreatedAt         int64              `json:"createdAt"`
	UpdatedAt         int64              `json:"updatedAt"`
}

// TemplateExercise is one planned exercise inside a template.
type TemplateExercise struct {
	ExerciseID    string `json:"exerciseId"`
	OriginalName  string `json:"originalName,omitempty"` // name the template was written with
	Order         int    `json:"order"`
	TargetSets    int    `json:"targetSets"`
	TargetReps    string `json:"targetReps"` // "8-12", "5", "AMRAP"
	TargetWeight  string `json:"targetWeight,omitempty"`
	RestTime      int    `json:"restTime,omitempty"` // seconds
	Notes         string `json:"notes,omitempty"`
	IsSuperset    bool   `json:"isSuperset,omitempty"`
	SupersetGroup string `json:"supersetGroup,omitempty"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

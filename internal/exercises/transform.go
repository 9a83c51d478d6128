package exercises

import (
	"regexp"
	"strings"

	"github.com/forgefit/forge/internal/models"
)

// Exercise sources.
const (
	SourceLocal          = "local"
	SourceCurated        = "curated"
	SourceFreeExerciseDB = "free_exercise_db"
)

// SourceExercise is one record of the Free Exercise DB document. The
// published dataset uses camelCase muscle fields; older mirrors use
// snake_case, so both are accepted.
type SourceExercise struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Aliases               []string `json:"aliases"`
	PrimaryMuscles        []string `json:"primaryMuscles"`
	SecondaryMuscles      []string `json:"secondaryMuscles"`
	PrimaryMusclesSnake   []string `json:"primary_muscles"`
	SecondaryMusclesSnake []string `json:"secondary_muscles"`
	Force                 string   `json:"force"`
	Level                 string   `json:"level"`
	Mechanic              string   `json:"mechanic"`
	Equipment             string   `json:"equipment"`
	Category              string   `json:"category"`
	Instructions          []string `json:"instructions"`
	Tips                  []string `json:"tips"`
	Images                []string `json:"images"`
}

func (s SourceExercise) primary() []string {
	if len(s.PrimaryMuscles) > 0 {
		return s.PrimaryMuscles
	}
	return s.PrimaryMusclesSnake
}

func (s SourceExercise) secondary() []string {
	if len(s.SecondaryMuscles) > 0 {
		return s.SecondaryMuscles
	}
	return s.SecondaryMusclesSnake
}

// CuratedExercise is an entry of the bundled list with demonstration GIFs.
type CuratedExercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Equipment        string   `json:"equipment"`
	BodyPart         string   `json:"bodyPart"`
	Target           string   `json:"target"`
	SecondaryMuscles []string `json:"secondaryMuscles"`
	GifURL           string   `json:"gifUrl"`
	Instructions     []string `json:"instructions"`
	FormCues         []string `json:"formCues"`
	SafetyTips       []string `json:"safetyTips"`
	CommonMistakes   []string `json:"commonMistakes"`
	Variations       []string `json:"variations"`
	Difficulty       string   `json:"difficulty"`
}

var (
	separatorRe = regexp.MustCompile(`[\s_-]`)
	minorWordRe = regexp.MustCompile(`\b(And|Or|Of|The|A|An)\b`)
)

var categoryMap = map[string]string{
	"strength":              "strength",
	"stretching":            "stretching",
	"plyometrics":           "plyometric",
	"strongman":             "strength",
	"powerlifting":          "powerlifting",
	"cardio":                "cardio",
	"olympic_weightlifting": "olympic",
}

// curated lists use our own category names
var curatedCategoryMap = map[string]string{
	"strength":     "strength",
	"cardio":       "cardio",
	"flexibility":  "flexibility",
	"plyometric":   "plyometric",
	"powerlifting": "powerlifting",
	"olympic":      "olympic",
	"stretching":   "stretching",
}

var equipmentMap = map[string]string{
	"barbell":       "barbell",
	"dumbbell":      "dumbbell",
	"kettlebells":   "kettlebell",
	"kettlebell":    "kettlebell",
	"body_only":     "bodyweight",
	"bodyweight":    "bodyweight",
	"cable":         "cable",
	"bands":         "resistance_band",
	"medicine_ball": "medicine_ball",
	"exercise_ball": "stability_ball",
	"foam_roll":     "foam_roller",
	"none":          "bodyweight",
}

var muscleMap = map[string]string{
	"chest":       "chest",
	"back":        "back",
	"shoulders":   "shoulders",
	"biceps":      "biceps",
	"triceps":     "triceps",
	"forearms":    "forearms",
	"abdominals":  "core",
	"core":        "core",
	"glutes":      "glutes",
	"quadriceps":  "quadriceps",
	"hamstrings":  "hamstrings",
	"calves":      "calves",
	"lower_back":  "back",
	"middle_back": "back",
	"lats":        "back",
	"traps":       "back",
}

var difficultyMap = map[string]string{
	"beginner":     "beginner",
	"intermediate": "intermediate",
	"expert":       "advanced",
	"advanced":     "advanced",
}

var (
	defaultSets = map[string]string{
		"strength":              "3-4",
		"powerlifting":          "3-5",
		"olympic_weightlifting": "3-5",
		"cardio":                "1-3",
		"stretching":            "1-3",
		"plyometrics":           "3-4",
	}
	defaultReps = map[string]string{
		"strength":              "8-12",
		"powerlifting":          "1-5",
		"olympic_weightlifting": "3-6",
		"cardio":                "30-60s",
		"stretching":            "30-60s",
		"plyometrics":           "8-15",
	}
	defaultRest = map[string]string{
		"strength":              "60-90s",
		"powerlifting":          "120-180s",
		"olympic_weightlifting": "120-180s",
		"cardio":                "30-60s",
		"stretching":            "15-30s",
		"plyometrics":           "60-90s",
	}
)

func normalize(s string) string {
	return separatorRe.ReplaceAllString(strings.ToLower(s), "_")
}

func lookup(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// MapCategory maps a Free Exercise DB category, defaulting to strength.
func MapCategory(c string) string {
	return lookup(categoryMap, strings.ToLower(c), "strength")
}

// MapEquipment maps an equipment name, defaulting to bodyweight.
func MapEquipment(e string) string {
	if e == "" {
		return "bodyweight"
	}
	return lookup(equipmentMap, normalize(e), "bodyweight")
}

// MapMuscle maps a muscle name. Unknown muscles report false.
func MapMuscle(m string) (string, bool) {
	v, ok := muscleMap[normalize(m)]
	return v, ok
}

func mapMuscles(in []string) []string {
	out := []string{}
	for _, m := range in {
		if v, ok := MapMuscle(m); ok {
			out = append(out, v)
		}
	}
	return out
}

// MapDifficulty maps a level, defaulting to intermediate.
func MapDifficulty(level string) string {
	return lookup(difficultyMap, strings.ToLower(level), "intermediate")
}

// CleanName title-cases every word and lowercases minor words except at
// the start.
func CleanName(name string) string {
	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
	}
	s := strings.Join(words, " ")
	start := minorWordRe.FindStringIndex(s)
	s = minorWordRe.ReplaceAllStringFunc(s, strings.ToLower)
	if start != nil && start[0] == 0 {
		s = strings.ToUpper(s[:1]) + s[1:]
	}
	return s
}

// DefaultSets, DefaultReps and DefaultRest give prescriptions for a Free
// Exercise DB category.
func DefaultSets(category string) string {
	return lookup(defaultSets, strings.ToLower(category), "3")
}

func DefaultReps(category string) string {
	return lookup(defaultReps, strings.ToLower(category), "8-12")
}

func DefaultRest(category string) string {
	return lookup(defaultRest, strings.ToLower(category), "60-90s")
}

// BestImage prefers the first GIF, else the first image.
func BestImage(images []string) string {
	for _, img := range images {
		if strings.Contains(strings.ToLower(img), ".gif") {
			return img
		}
	}
	if len(images) > 0 {
		return images[0]
	}
	return ""
}

func tagsFor(s SourceExercise) []string {
	var tags []string
	if s.Category != "" {
		tags = append(tags, strings.ToLower(s.Category))
	}
	if s.Equipment != "" {
		tags = append(tags, normalize(s.Equipment))
	}
	for _, m := range s.primary() {
		if m != "" {
			tags = append(tags, normalize(m))
		}
	}
	if s.Force != "" {
		tags = append(tags, strings.ToLower(s.Force))
	}
	if s.Mechanic != "" {
		tags = append(tags, strings.ToLower(s.Mechanic))
	}
	return dedupe(tags)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Transform converts a Free Exercise DB record. Records without an id or
// name report false.
func Transform(s SourceExercise) (models.Exercise, bool) {
	if s.ID == "" || s.Name == "" {
		return models.Exercise{}, false
	}
	category := s.Category
	if category == "" {
		category = "strength"
	}
	level := s.Level
	if level == "" {
		level = "intermediate"
	}
	return models.Exercise{
		ID:               "free_" + s.ID,
		Name:             CleanName(s.Name),
		Category:         MapCategory(category),
		Equipment:        []string{MapEquipment(s.Equipment)},
		PrimaryMuscles:   mapMuscles(s.primary()),
		SecondaryMuscles: mapMuscles(s.secondary()),
		Difficulty:       MapDifficulty(level),
		Force:            s.Force,
		Mechanic:         s.Mechanic,
		Instructions:     orEmpty(s.Instructions),
		FormCues:         orEmpty(s.Tips),
		SafetyTips:       []string{},
		CommonMistakes:   []string{},
		Variations:       []string{},
		GifURL:           BestImage(s.Images),
		ImageURLs:        orEmpty(s.Images),
		Source:           SourceFreeExerciseDB,
		Tags:             tagsFor(s),
		AlternativeNames: orEmpty(s.Aliases),
		RecommendedSets:  DefaultSets(category),
		RecommendedReps:  DefaultReps(category),
		RecommendedRest:  DefaultRest(category),
	}, true
}

// TransformCurated converts a bundled curated entry.
func TransformCurated(c CuratedExercise) models.Exercise {
	primary := []string{}
	if m, ok := MapMuscle(c.Target); ok {
		primary = append(primary, m)
	}
	tags := append([]string{c.BodyPart, c.Equipment, c.Target}, c.SecondaryMuscles...)
	return models.Exercise{
		ID:               c.ID,
		Name:             c.Name,
		Category:         lookup(curatedCategoryMap, strings.ToLower(c.Category), "strength"),
		Equipment:        []string{MapEquipment(c.Equipment)},
		PrimaryMuscles:   primary,
		SecondaryMuscles: mapMuscles(c.SecondaryMuscles),
		Difficulty:       c.Difficulty,
		Instructions:     orEmpty(c.Instructions),
		FormCues:         orEmpty(c.FormCues),
		SafetyTips:       orEmpty(c.SafetyTips),
		CommonMistakes:   orEmpty(c.CommonMistakes),
		Variations:       orEmpty(c.Variations),
		GifURL:           c.GifURL,
		ImageURLs:        []string{c.GifURL},
		Source:           SourceCurated,
		Tags:             tags,
		AlternativeNames: []string{},
		RecommendedSets:  DefaultSets(c.Category),
		RecommendedReps:  DefaultReps(c.Category),
		RecommendedRest:  DefaultRest(c.Category),
	}
}

// Merge appends extra to base, skipping names already present
// (case-insensitive). An existing entry without a GIF takes the GIF of the
// skipped duplicate.
func Merge(base, extra []models.Exercise) []models.Exercise {
	merged := make([]models.Exercise, len(base), len(base)+len(extra))
	copy(merged, base)
	index := make(map[string]int, len(merged))
	for i, ex := range merged {
		key := strings.ToLower(ex.Name)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	for _, ex := range extra {
		key := strings.ToLower(ex.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			merged = append(merged, ex)
			continue
		}
		if ex.GifURL != "" && merged[i].GifURL == "" {
			merged[i].GifURL = ex.GifURL
			merged[i].ImageURLs = append(append([]string{}, merged[i].ImageURLs...), ex.GifURL)
		}
	}
	return merged
}

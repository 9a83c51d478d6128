// Package templates serves the built-in workouts and the user's own
// templates, including their JSON import and export format.
package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/models"
)

const (
	exportedBy    = "Forge Workout App"
	exportVersion = "1.0"

	minutesPerExercise = 12
)

var (
	ErrNotFound        = errors.New("template not found")
	ErrBuiltIn         = errors.New("built-in templates cannot be changed")
	ErrInvalid         = errors.New("template needs a name and at least one exercise")
	ErrNothingToExport = errors.New("no custom templates to export")
	ErrInvalidImport   = errors.New("invalid template file format")
	ErrNoValidImport   = errors.New("no valid templates found in the file")
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	fileNameRe   = regexp.MustCompile(`(?i)[^a-z0-9]`)
)

// Resolver looks exercises up in the library.
type Resolver interface {
	ByName(name string) (models.Exercise, bool)
	ByID(id string) (models.Exercise, error)
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Term       string
	Category   string
	Difficulty string
	CustomOnly bool
}

// ListResult carries templates and whether custom templates were unreadable.
type ListResult struct {
	Templates []models.WorkoutTemplate `json:"templates"`
	Degraded  bool                     `json:"degraded,omitempty"`
}

// ExportOne is the single-template export document.
type ExportOne struct {
	Template   models.WorkoutTemplate `json:"template"`
	ExportedAt int64                  `json:"exportedAt"`
	ExportedBy string                 `json:"exportedBy"`
	Version    string                 `json:"version"`
}

// ExportAll is the multi-template export document.
type ExportAll struct {
	Templates  []models.WorkoutTemplate `json:"templates"`
	ExportedAt int64                    `json:"exportedAt"`
	ExportedBy string                   `json:"exportedBy"`
	Version    string                   `json:"version"`
	Count      int                      `json:"count"`
}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported  []models.WorkoutTemplate `json:"imported"`
	Skipped   int                      `json:"skipped"`
	Templates int                      `json:"templates"`
}

// Service manages templates. Built-ins are computed at construction and
// custom templates live under a single kv key.
type Service struct {
	store kv.Store
	lib   Resolver
	log   *slog.Logger
	now   func() time.Time

	builtin []models.WorkoutTemplate

	mu sync.Mutex
}

func New(store kv.Store, lib Resolver, log *slog.Logger) *Service {
	s := &Service{store: store, lib: lib, log: log, now: time.Now}
	s.builtin = s.convertBuiltin()
	return s
}

// SetClock overrides time.Now. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) convertBuiltin() []models.WorkoutTemplate {
	created := s.now().UnixMilli()
	out := make([]models.WorkoutTemplate, 0, len(builtin))
	for _, p := range builtin {
		exercises := make([]models.TemplateExercise, 0, len(p.exercises))
		for i, ex := range p.exercises {
			exercises = append(exercises, models.TemplateExercise{
				ExerciseID:   s.exerciseID(ex.name),
				OriginalName: ex.name,
				Order:        i + 1,
				TargetSets:   ex.sets,
				TargetReps:   ex.reps,
				Notes:        ex.notes,
			})
		}
		out = append(out, models.WorkoutTemplate{
			ID:                p.id,
			Name:              p.name,
			Description:       fmt.Sprintf("%d exercise kettlebell workout", len(p.exercises)),
			Category:          "strength",
			Difficulty:        "intermediate",
			EstimatedDuration: len(p.exercises) * minutesPerExercise,
			Equipment:         []string{"kettlebell"},
			Exercises:         exercises,
			Tags:              []string{"kettlebell", "strength", "featured"},
			CreatedAt:         created,
			UpdatedAt:         created,
		})
	}
	return out
}

func (s *Service) exerciseID(name string) string {
	if s.lib != nil {
		if ex, ok := s.lib.ByName(name); ok {
			return ex.ID
		}
	}
	return "legacy_" + whitespaceRe.ReplaceAllString(strings.ToLower(name), "_")
}

func (s *Service) isBuiltin(id string) bool {
	for _, t := range s.builtin {
		if t.ID == id {
			return true
		}
	}
	return false
}

// List returns built-in templates followed by custom ones.
func (s *Service) List(ctx context.Context, f Filter) ListResult {
	custom, outcome := s.loadCustom(ctx)
	all := append(append([]models.WorkoutTemplate{}, s.builtin...), custom...)

	term := strings.ToLower(strings.TrimSpace(f.Term))
	out := []models.WorkoutTemplate{}
	for _, t := range all {
		if term != "" && !matchesTerm(t, term) {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && t.Difficulty != f.Difficulty {
			continue
		}
		if f.CustomOnly && !t.IsCustom {
			continue
		}
		out = append(out, t)
	}
	return ListResult{Templates: out, Degraded: outcome.Degraded()}
}

func matchesTerm(t models.WorkoutTemplate, term string) bool {
	if strings.Contains(strings.ToLower(t.Name), term) || strings.Contains(strings.ToLower(t.Description), term) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Get returns a built-in or custom template.
func (s *Service) Get(ctx context.Context, id string) (models.WorkoutTemplate, error) {
	for _, t := range s.builtin {
		if t.ID == id {
			return t, nil
		}
	}
	custom, _ := s.loadCustom(ctx)
	for _, t := range custom {
		if t.ID == id {
			return t, nil
		}
	}
	return models.WorkoutTemplate{}, ErrNotFound
}

// Save creates a custom template when t.ID is empty or unknown and replaces
// it otherwise.
func (s *Service) Save(ctx context.Context, t models.WorkoutTemplate) (models.WorkoutTemplate, error) {
	if s.isBuiltin(t.ID) {
		return models.WorkoutTemplate{}, ErrBuiltIn
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || len(t.Exercises) == 0 {
		return models.WorkoutTemplate{}, ErrInvalid
	}

	var saved models.WorkoutTemplate
	err := s.modify(ctx, func(custom []models.WorkoutTemplate) ([]models.WorkoutTemplate, error) {
		now := s.now().UnixMilli()
		t.IsCustom = true
		t.UpdatedAt = now
		fillDefaults(&t)
		for i, existing := range custom {
			if t.ID != "" && existing.ID == t.ID {
				t.CreatedAt = existing.CreatedAt
				custom[i] = t
				saved = t
				return custom, nil
			}
		}
		if t.ID == "" {
			t.ID = newID("custom", now)
		}
		t.CreatedAt = now
		saved = t
		return append(custom, t), nil
	})
	return saved, err
}

// Delete removes a custom template.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.isBuiltin(id) {
		return ErrBuiltIn
	}
	return s.modify(ctx, func(custom []models.WorkoutTemplate) ([]models.WorkoutTemplate, error) {
		for i, t := range custom {
			if t.ID == id {
				return append(custom[:i], custom[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// Duplicate copies any template into a new custom one named "<name> (Copy)".
func (s *Service) Duplicate(ctx context.Context, id string) (models.WorkoutTemplate, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	var dup models.WorkoutTemplate
	err = s.modify(ctx, func(custom []models.WorkoutTemplate) ([]models.WorkoutTemplate, error) {
		now := s.now().UnixMilli()
		dup = clone(src)
		dup.ID = newID("custom", now)
		dup.Name = src.Name + " (Copy)"
		dup.IsCustom = true
		dup.CreatedAt = now
		dup.UpdatedAt = now
		return append(custom, dup), nil
	})
	return dup, err
}

// Export renders one template as an export document.
func (s *Service) Export(ctx context.Context, id string) ([]byte, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(ExportOne{
		Template:   t,
		ExportedAt: s.now().UnixMilli(),
		ExportedBy: exportedBy,
		Version:    exportVersion,
	}, "", "  ")
}

// ExportAll renders every custom template.
func (s *Service) ExportAll(ctx context.Context) ([]byte, error) {
	custom, _ := s.loadCustom(ctx)
	if len(custom) == 0 {
		return nil, ErrNothingToExport
	}
	return json.MarshalIndent(ExportAll{
		Templates:  custom,
		ExportedAt: s.now().UnixMilli(),
		ExportedBy: exportedBy,
		Version:    exportVersion,
		Count:      len(custom),
	}, "", "  ")
}

// FileName returns the download name for a single template export.
func FileName(t models.WorkoutTemplate) string {
	return strings.ToLower(fileNameRe.ReplaceAllString(t.Name, "_")) + "_template.json"
}

// AllFileName returns the download name for an export of all templates.
func AllFileName(now time.Time) string {
	return "forge_workout_templates_" + now.UTC().Format(models.DateLayout) + ".json"
}

// Import reads either export document. Templates with a valid structure are
// added under new ids with " (Imported)" appended to their names; the rest
// are skipped.
func (s *Service) Import(ctx context.Context, data []byte) (ImportResult, error) {
	var doc struct {
		Template  json.RawMessage   `json:"template"`
		Templates []json.RawMessage `json:"templates"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	var raw []json.RawMessage
	switch {
	case len(doc.Template) > 0 && !bytes.Equal(doc.Template, []byte("null")):
		raw = []json.RawMessage{doc.Template}
	case doc.Templates != nil:
		raw = doc.Templates
	default:
		return ImportResult{}, ErrInvalidImport
	}

	res := ImportResult{Templates: len(raw)}
	now := s.now().UnixMilli()
	var valid []models.WorkoutTemplate
	for _, r := range raw {
		t, ok := decodeTemplate(r)
		if !ok {
			res.Skipped++
			continue
		}
		t.ID = newID("imported", now)
		t.Name += " (Imported)"
		t.IsCustom = true
		t.CreatedAt = now
		t.UpdatedAt = now
		fillDefaults(&t)
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return res, ErrNoValidImport
	}

	err := s.modify(ctx, func(custom []models.WorkoutTemplate) ([]models.WorkoutTemplate, error) {
		return append(custom, valid...), nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	res.Imported = valid
	s.log.Info("templates imported", "imported", len(valid), "skipped", res.Skipped)
	return res, nil
}

// decodeTemplate accepts a template carrying a string name, category and
// difficulty, exercise and equipment arrays and a numeric duration.
func decodeTemplate(r json.RawMessage) (models.WorkoutTemplate, bool) {
	var shape struct {
		Name              *string           `json:"name"`
		Category          *string           `json:"category"`
		Difficulty        *string           `json:"difficulty"`
		Exercises         []json.RawMessage `json:"exercises"`
		Equipment         []json.RawMessage `json:"equipment"`
		EstimatedDuration *float64          `json:"estimatedDuration"`
	}
	if err := json.Unmarshal(r, &shape); err != nil {
		return models.WorkoutTemplate{}, false
	}
	if shape.Name == nil || shape.Category == nil || shape.Difficulty == nil ||
		shape.Exercises == nil || shape.Equipment == nil || shape.EstimatedDuration == nil {
		return models.WorkoutTemplate{}, false
	}
	var t models.WorkoutTemplate
	if err := json.Unmarshal(r, &t); err != nil {
		return models.WorkoutTemplate{}, false
	}
	return t, true
}

// ExerciseNames resolves the display names of a template's exercises, in
// order.
func (s *Service) ExerciseNames(t models.WorkoutTemplate) []string {
	names := make([]string, 0, len(t.Exercises))
	for _, ex := range t.Exercises {
		switch {
		case ex.OriginalName != "":
			names = append(names, ex.OriginalName)
		case s.lib != nil:
			if lib, err := s.lib.ByID(ex.ExerciseID); err == nil {
				names = append(names, lib.Name)
				continue
			}
			names = append(names, ex.ExerciseID)
		default:
			names = append(names, ex.ExerciseID)
		}
	}
	return names
}

func (s *Service) modify(ctx context.Context, fn func([]models.WorkoutTemplate) ([]models.WorkoutTemplate, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	custom, outcome := s.loadCustom(ctx)
	if outcome == kv.Unavailable {
		return fmt.Errorf("reading custom templates: storage unavailable")
	}
	next, err := fn(custom)
	if err != nil {
		return err
	}
	if err := kv.WriteJSON(ctx, s.store, kv.KeyCustomTemplates, next); err != nil {
		return fmt.Errorf("saving custom templates: %w", err)
	}
	return nil
}

func (s *Service) loadCustom(ctx context.Context) ([]models.WorkoutTemplate, kv.Outcome) {
	var custom []models.WorkoutTemplate
	outcome, err := kv.ReadJSON(ctx, s.store, kv.KeyCustomTemplates, &custom)
	if outcome.Degraded() {
		s.log.Warn("custom templates unreadable", "outcome", outcome.String(), "error", err)
		return []models.WorkoutTemplate{}, outcome
	}
	if custom == nil {
		custom = []models.WorkoutTemplate{}
	}
	return custom, outcome
}

func newID(prefix string, now int64) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now, strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

func clone(t models.WorkoutTemplate) models.WorkoutTemplate {
	c := t
	c.Equipment = append([]string{}, t.Equipment...)
	c.Tags = append([]string{}, t.Tags...)
	c.Exercises = append([]models.TemplateExercise{}, t.Exercises...)
	return c
}

func fillDefaults(t *models.WorkoutTemplate) {
	if t.Category == "" {
		t.Category = "mixed"
	}
	if t.Difficulty == "" {
		t.Difficulty = "intermediate"
	}
	if t.EstimatedDuration == 0 {
		t.EstimatedDuration = len(t.Exercises) * minutesPerExercise
	}
	if t.Equipment == nil {
		t.Equipment = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	for i := range t.Exercises {
		if t.Exercises[i].Order == 0 {
			t.Exercises[i].Order = i + 1
		}
	}
}

// Package exercises is the exercise library: a bundled kettlebell list, a
// curated list with demonstration GIFs, the Free Exercise DB and the user's
// own exercises, searchable as one collection.
package exercises

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/google/uuid"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/models"
)

const (
	APIFreshness   = 24 * time.Hour
	LocalFreshness = 7 * 24 * time.Hour

	megabyte         = 1024 * 1024
	defaultCacheSize = 16 * megabyte
	cacheBucket      = "exercises"
)

var (
	ErrNotFound    = errors.New("exercise not found")
	ErrInvalid     = errors.New("exercise needs a name and a category")
	ErrNoSource    = errors.New("no exercise source configured")
	ErrSourceEmpty = errors.New("exercise source returned no usable records")
)

//go:embed data/defaults.json
var defaultsJSON []byte

//go:embed data/curated.json
var curatedJSON []byte

// Fetcher retrieves the Free Exercise DB records.
type Fetcher interface {
	Fetch(ctx context.Context) ([]SourceExercise, error)
}

// cacheDoc is the persisted form of both exercise caches.
type cacheDoc struct {
	Exercises []models.Exercise `json:"exercises"`
	Timestamp int64             `json:"timestamp"`
}

// Filter narrows a search. Empty lists match everything.
type Filter struct {
	Categories     []string
	Equipment      []string
	PrimaryMuscles []string
	Difficulty     []string
	HasGif         bool
	Term           string
}

// SearchResult carries the matches and facet counts over the whole library.
type SearchResult struct {
	Exercises  []models.Exercise `json:"exercises"`
	TotalCount int               `json:"totalCount"`
	Categories map[string]int    `json:"categories"`
	Equipment  map[string]int    `json:"equipment"`
	Muscles    map[string]int    `json:"muscles"`
}

type Option func(*Library)

func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(l *Library) { l.metrics = m }
}

// WithCacheSize sets the in-memory lookup cache size in bytes.
func WithCacheSize(bytes int) Option {
	return func(l *Library) { l.cacheSize = bytes }
}

// Library holds the merged exercise collection.
type Library struct {
	store     kv.Store
	fetcher   Fetcher
	log       *slog.Logger
	metrics   *metrics.Manager
	now       func() time.Time
	cacheSize int
	mem       *freecache.Cache

	defaults []models.Exercise
	curated  []models.Exercise

	mu       sync.RWMutex
	api      []models.Exercise // Free Exercise DB merged with curated
	custom   []models.Exercise
	all      []models.Exercise
	degraded bool
}

// NewLibrary builds a library holding the bundled exercises. fetcher may be
// nil, in which case Refresh fails and only cached or bundled data is used.
func NewLibrary(store kv.Store, fetcher Fetcher, log *slog.Logger, opts ...Option) (*Library, error) {
	l := &Library{
		store:     store,
		fetcher:   fetcher,
		log:       log,
		now:       time.Now,
		cacheSize: defaultCacheSize,
	}
	for _, o := range opts {
		o(l)
	}
	l.mem = freecache.NewCache(l.cacheSize)

	if err := json.Unmarshal(defaultsJSON, &l.defaults); err != nil {
		return nil, fmt.Errorf("decoding bundled exercises: %w", err)
	}
	var curated []CuratedExercise
	if err := json.Unmarshal(curatedJSON, &curated); err != nil {
		return nil, fmt.Errorf("decoding curated exercises: %w", err)
	}
	for _, c := range curated {
		l.curated = append(l.curated, TransformCurated(c))
	}
	l.api = l.curated
	l.rebuild()
	return l, nil
}

// Load reads the persisted caches without touching the network. A stale API
// cache is still used; Refresh replaces it.
func (l *Library) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.degraded = false

	var local cacheDoc
	outcome, err := kv.ReadJSON(ctx, l.store, kv.KeyExerciseDB, &local)
	switch {
	case outcome == kv.Loaded && l.now().Sub(time.UnixMilli(local.Timestamp)) < LocalFreshness:
		l.custom = local.Exercises
	case outcome == kv.Loaded:
		l.log.Info("custom exercise database expired", "saved_at", time.UnixMilli(local.Timestamp))
	case outcome.Degraded():
		l.noteDegraded(kv.KeyExerciseDB, outcome, err)
	}

	var api cacheDoc
	outcome, err = kv.ReadJSON(ctx, l.store, kv.KeyExerciseAPI, &api)
	switch {
	case outcome == kv.Loaded && len(api.Exercises) > 0:
		l.api = api.Exercises
	case outcome.Degraded():
		l.noteDegraded(kv.KeyExerciseAPI, outcome, err)
	}

	l.rebuild()
	l.log.Info("exercise library loaded", "exercises", len(l.all), "custom", len(l.custom))
}

// Refresh downloads the Free Exercise DB when the API cache is older than
// 24 hours, or always when force is set. On failure the loaded collection is
// kept and the error returned.
func (l *Library) Refresh(ctx context.Context, force bool) error {
	if l.fetcher == nil {
		return ErrNoSource
	}
	if !force && l.apiCacheFresh(ctx) {
		l.log.Debug("exercise api cache is fresh, skipping download")
		return nil
	}

	records, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.log.Warn("exercise download failed, keeping loaded data", "error", err)
		return err
	}
	free := make([]models.Exercise, 0, len(records))
	for _, r := range records {
		if ex, ok := Transform(r); ok {
			free = append(free, ex)
		}
	}
	if len(free) == 0 {
		return ErrSourceEmpty
	}
	merged := Merge(free, l.curated)

	now := l.now()
	if err := kv.WriteJSON(ctx, l.store, kv.KeyExerciseAPI, cacheDoc{Exercises: merged, Timestamp: now.UnixMilli()}); err != nil {
		// The download still serves this process.
		l.log.Error("saving exercise api cache", "error", err)
	}

	l.mu.Lock()
	l.api = merged
	l.rebuild()
	total := len(l.all)
	l.mu.Unlock()

	l.log.Info("exercise library refreshed", "downloaded", len(free), "curated", len(l.curated), "total", total)
	return nil
}

func (l *Library) apiCacheFresh(ctx context.Context) bool {
	var doc cacheDoc
	outcome, _ := kv.ReadJSON(ctx, l.store, kv.KeyExerciseAPI, &doc)
	return outcome == kv.Loaded && l.now().Sub(time.UnixMilli(doc.Timestamp)) < APIFreshness
}

// Degraded reports whether the last Load hit an unreadable cache.
func (l *Library) Degraded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.degraded
}

// All returns every exercise.
func (l *Library) All() []models.Exercise {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Exercise(nil), l.all...)
}

// Search applies f and counts facets across the whole library.
func (l *Library) Search(f Filter) SearchResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(f.Term))
	res := SearchResult{
		Exercises:  []models.Exercise{},
		Categories: map[string]int{},
		Equipment:  map[string]int{},
		Muscles:    map[string]int{},
	}
	for _, ex := range l.all {
		res.Categories[ex.Category]++
		for _, eq := range ex.Equipment {
			res.Equipment[eq]++
		}
		for _, m := range ex.PrimaryMuscles {
			res.Muscles[m]++
		}
		if matches(ex, f, term) {
			res.Exercises = append(res.Exercises, ex)
		}
	}
	res.TotalCount = len(res.Exercises)
	return res
}

func matches(ex models.Exercise, f Filter, term string) bool {
	if len(f.Categories) > 0 && !anyIn([]string{ex.Category}, f.Categories) {
		return false
	}
	if len(f.Equipment) > 0 && !anyIn(ex.Equipment, f.Equipment) {
		return false
	}
	if len(f.PrimaryMuscles) > 0 && !anyIn(ex.PrimaryMuscles, f.PrimaryMuscles) {
		return false
	}
	if len(f.Difficulty) > 0 && !anyIn([]string{ex.Difficulty}, f.Difficulty) {
		return false
	}
	if f.HasGif && ex.GifURL == "" {
		return false
	}
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(ex.Name), term) {
		return true
	}
	for _, n := range ex.AlternativeNames {
		if strings.Contains(strings.ToLower(n), term) {
			return true
		}
	}
	for _, t := range ex.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

func anyIn(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// ByID returns one exercise.
func (l *Library) ByID(id string) (models.Exercise, error) {
	key := []byte("id::" + id)
	if data, err := l.mem.Get(key); err == nil {
		var ex models.Exercise
		if err := json.Unmarshal(data, &ex); err == nil {
			l.countCache(true)
			return ex, nil
		}
	}
	l.countCache(false)

	// rebuild clears mem under the write lock, so the entry is set while
	// l.all is still current.
	l.mu.RLock()
	defer l.mu.RUnlock()
	ex, ok := find(l.all, func(e models.Exercise) bool { return e.ID == id })
	if !ok {
		return models.Exercise{}, ErrNotFound
	}
	if data, err := json.Marshal(ex); err == nil {
		if err := l.mem.Set(key, data, int(APIFreshness.Seconds())); err != nil {
			l.log.Debug("exercise not cached", "id", id, "error", err)
		}
	}
	return ex, nil
}

// ByName finds an exercise by case-insensitive name or alternative name.
func (l *Library) ByName(name string) (models.Exercise, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	l.mu.RLock()
	defer l.mu.RUnlock()
	return find(l.all, func(e models.Exercise) bool {
		if strings.ToLower(e.Name) == want {
			return true
		}
		for _, alt := range e.AlternativeNames {
			if strings.ToLower(alt) == want {
				return true
			}
		}
		return false
	})
}

// Similar returns up to limit exercises sharing a primary muscle or a piece
// of equipment with id.
func (l *Library) Similar(id string, limit int) ([]models.Exercise, error) {
	if limit <= 0 {
		limit = 5
	}
	base, err := l.ByID(id)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []models.Exercise{}
	for _, ex := range l.all {
		if len(out) == limit {
			break
		}
		if ex.ID == base.ID {
			continue
		}
		if anyIn(ex.PrimaryMuscles, base.PrimaryMuscles) || anyIn(ex.Equipment, base.Equipment) {
			out = append(out, ex)
		}
	}
	return out, nil
}

// AddCustom stores a user exercise in the local database.
func (l *Library) AddCustom(ctx context.Context, ex models.Exercise) (models.Exercise, error) {
	ex.Name = strings.TrimSpace(ex.Name)
	if ex.Name == "" || ex.Category == "" {
		return models.Exercise{}, ErrInvalid
	}
	now := l.now()
	ex.ID = fmt.Sprintf("custom_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	ex.Source = SourceLocal
	normalizeLists(&ex)

	l.mu.Lock()
	defer l.mu.Unlock()
	custom := append(append([]models.Exercise(nil), l.custom...), ex)
	if err := kv.WriteJSON(ctx, l.store, kv.KeyExerciseDB, cacheDoc{Exercises: custom, Timestamp: now.UnixMilli()}); err != nil {
		return models.Exercise{}, fmt.Errorf("saving custom exercise: %w", err)
	}
	l.custom = custom
	l.rebuild()
	return ex, nil
}

// Categories lists the distinct categories, sorted.
func (l *Library) Categories() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, ex := range l.all {
		if !seen[ex.Category] {
			seen[ex.Category] = true
			out = append(out, ex.Category)
		}
	}
	sort.Strings(out)
	return out
}

// rebuild recomputes the merged list. Callers hold mu.
func (l *Library) rebuild() {
	all := Merge(l.defaults, l.api)
	all = append(all, l.custom...)
	l.all = all
	l.mem.Clear()
}

func (l *Library) noteDegraded(key string, outcome kv.Outcome, err error) {
	l.degraded = true
	l.log.Warn("exercise cache unreadable", "key", key, "outcome", outcome.String(), "error", err)
	if l.metrics != nil {
		l.metrics.CounterDegradedReads.WithLabelValues(key, outcome.String()).Inc()
	}
}

func (l *Library) countCache(hit bool) {
	if l.metrics == nil {
		return
	}
	if hit {
		l.metrics.CounterCacheHits.WithLabelValues(cacheBucket).Inc()
	} else {
		l.metrics.CounterCacheMisses.WithLabelValues(cacheBucket).Inc()
	}
}

func find(list []models.Exercise, pred func(models.Exercise) bool) (models.Exercise, bool) {
	for _, ex := range list {
		if pred(ex) {
			return ex, true
		}
	}
	return models.Exercise{}, false
}

func normalizeLists(ex *models.Exercise) {
	for _, p := range []*[]string{
		&ex.Equipment, &ex.PrimaryMuscles, &ex.SecondaryMuscles, &ex.Instructions,
		&ex.FormCues, &ex.SafetyTips, &ex.CommonMistakes, &ex.Variations,
		&ex.ImageURLs, &ex.Tags, &ex.AlternativeNames,
	} {
		if *p == nil {
			*p = []string{}
		}
	}
	if ex.Difficulty == "" {
		ex.Difficulty = "intermediate"
	}
}

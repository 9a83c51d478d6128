// Package kv is the persistence port for forge. Every piece of state lives
// under a single string key holding a JSON document (or a bare string for the
// unit preference), mirroring how the app keeps its data in a browser store.
package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/forgefit/forge/internal/config"
)

// Storage keys.
const (
	KeyWorkoutHistory   = "forge-workout-history"
	KeyPreferredUnit    = "forge-preferred-unit"
	KeyExerciseAPI      = "forge-exercise-api-cache"
	KeyExerciseDB       = "forge-exercise-database"
	KeyCustomTemplates  = "forge-custom-workout-templates"
	KeyProtein          = "forgeProtein"
	KeySteps            = "forgeSteps"
	ActiveSessionPrefix = "activeWorkoutNew_"
)

// Store is a flat string key-value store. A missing key is reported through
// ok=false, never as an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ActiveSessionKey returns the key holding the in-progress session for a workout.
func ActiveSessionKey(workoutID string) string {
	return ActiveSessionPrefix + workoutID
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		dsn := cfg.Postgres.DSN()
		if err := RunMigrations(dsn); err != nil {
			return nil, err
		}
		log.Info("postgres migrations applied")
		return OpenPostgres(ctx, dsn)
	case "redis":
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func sortedWithPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

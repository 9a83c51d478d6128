package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/ingest"
	"github.com/forgefit/forge/internal/models"
)

// Options tune an ingest.
type Options struct {
	Warmups bool // keep warm-up sets
	DryRun  bool // parse and count without writing
}

// Provider processes Alpha Progression CSV exports into the workout history.
type Provider struct {
	hist *history.Store
	loc  *time.Location
	log  *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider. Session start
// times are taken as wall clock in loc.
func NewProvider(hist *history.Store, loc *time.Location, log *slog.Logger) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{hist: hist, loc: loc, log: log}
}

// Ingest parses a CSV export and merges its sessions into the history.
// Sessions imported before are skipped.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, opts Options) (ingest.Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("parsing CSV: %w", err)
	}

	result := ingest.Result{SessionsReceived: len(sessions), DryRun: opts.DryRun}
	workouts := make([]models.CompletedWorkout, 0, len(sessions))
	for _, s := range sessions {
		for _, ex := range s.Exercises {
			for _, set := range ex.Sets {
				result.SetsReceived++
				if set.Warmup && !opts.Warmups {
					result.WarmupsSkipped++
				}
			}
		}
		workouts = append(workouts, Workout(s, p.loc, opts.Warmups))
	}

	if opts.DryRun {
		result.Message = fmt.Sprintf("dry run: %d sessions, %d sets", result.SessionsReceived, result.SetsReceived)
		return result, nil
	}

	merged, err := p.hist.Merge(ctx, workouts)
	if err != nil {
		return result, fmt.Errorf("storing workouts: %w", err)
	}
	result.WorkoutsAdded = merged.Added
	result.WorkoutsSkipped = merged.Skipped
	result.Message = fmt.Sprintf("imported %d of %d sessions", merged.Added, result.SessionsReceived)
	p.log.Info("alpha progression import",
		"sessions", result.SessionsReceived,
		"added", result.WorkoutsAdded,
		"skipped", result.WorkoutsSkipped,
		"sets", result.SetsReceived,
	)
	return result, nil
}

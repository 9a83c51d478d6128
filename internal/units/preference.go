package units

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgefit/forge/internal/kv"
)

// PreferenceStore persists the single user unit preference as the bare string
// "kg" or "lbs".
type PreferenceStore struct {
	store    kv.Store
	log      *slog.Logger
	fallback Unit
}

// NewPreferenceStore returns a store that reports fallback when nothing usable
// is stored. An invalid fallback becomes kg.
func NewPreferenceStore(store kv.Store, fallback Unit, log *slog.Logger) *PreferenceStore {
	if !fallback.Valid() {
		fallback = KG
	}
	return &PreferenceStore{store: store, log: log, fallback: fallback}
}

// Load returns the preferred unit. degraded is true when a stored value
// existed but could not be used (backend error or unrecognised value).
func (p *PreferenceStore) Load(ctx context.Context) (unit Unit, degraded bool) {
	raw, ok, err := p.store.Get(ctx, kv.KeyPreferredUnit)
	if err != nil {
		p.log.Warn("unit preference unavailable, using default", "default", p.fallback, "error", err)
		return p.fallback, true
	}
	if !ok {
		return p.fallback, false
	}
	u := Unit(raw)
	if !u.Valid() {
		p.log.Warn("ignoring invalid unit preference", "value", raw, "default", p.fallback)
		return p.fallback, true
	}
	return u, false
}

// Set persists unit.
func (p *PreferenceStore) Set(ctx context.Context, unit Unit) error {
	if !unit.Valid() {
		return fmt.Errorf("invalid unit %q", unit)
	}
	if err := p.store.Set(ctx, kv.KeyPreferredUnit, string(unit)); err != nil {
		return fmt.Errorf("saving unit preference: %w", err)
	}
	return nil
}

// Toggle flips between kg and lbs, persists, and returns the new unit.
func (p *PreferenceStore) Toggle(ctx context.Context) (Unit, error) {
	current, _ := p.Load(ctx)
	next := current.Other()
	if err := p.Set(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

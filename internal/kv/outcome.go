package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Outcome describes how a JSON read resolved.
type Outcome int

const (
	Loaded Outcome = iota
	Missing
	// Corrupt means the key held a value that did not decode.
	Corrupt
	// Unavailable means the backend itself failed.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Degraded reports whether the caller fell back to a default because stored
// data could not be used. A missing key is not degraded.
func (o Outcome) Degraded() bool {
	return o == Corrupt || o == Unavailable
}

// ReadJSON decodes key into dst. Unless the outcome is Loaded the caller must
// discard dst: a type mismatch can leave it partially filled. The returned
// error explains Corrupt and Unavailable outcomes and is meant for logging.
func ReadJSON(ctx context.Context, s Store, key string, dst any) (Outcome, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return Unavailable, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok || raw == "" {
		return Missing, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return Corrupt, fmt.Errorf("decoding %s: %w", key, err)
	}
	return Loaded, nil
}

// WriteJSON encodes v and stores it under key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Package ingest holds what every workout import source reports back.
package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int `json:"sessions_received"`
	WorkoutsAdded    int `json:"workouts_added"`
	WorkoutsSkipped  int `json:"workouts_skipped"` // already imported

	SetsReceived   int `json:"sets_received"`
	WarmupsSkipped int `json:"warmups_skipped,omitempty"`

	DryRun  bool   `json:"dry_run,omitempty"`
	Message string `json:"message,omitempty"`
}

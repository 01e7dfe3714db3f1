// Package ledger records the outcome of every iteration for later
// inspection. The checkpoint file only carries the campaign forward; the
// ledger is the queryable history behind it.
package ledger

import (
	"context"
	"time"
)

// Iteration outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Run identifies one controller invocation. A resumed campaign gets a new
// run so its iterations are distinguishable from the first attempt's.
type Run struct {
	// ID is the run identifier, a UUID.
	ID string `json:"id"`

	// SettingsPath is the settings file the run was started with.
	SettingsPath string `json:"settings_path"`

	StartedAt time.Time `json:"started_at"`
}

// Record is one iteration's outcome.
type Record struct {
	// Iteration is the iteration number.
	Iteration int `json:"iteration"`

	// RunID is the run that performed the iteration.
	RunID string `json:"run_id"`

	// Outcome is OutcomeSuccess or OutcomeFailure.
	Outcome string `json:"outcome"`

	// Reason describes the failure. Empty on success.
	Reason string `json:"reason,omitempty"`

	// Particles is the particle count after the iteration.
	Particles int `json:"particles"`

	// StatePath is the archived snapshot carried into the next
	// iteration. Empty on failure.
	StatePath string `json:"state_path,omitempty"`

	// ArchivePath is where the iteration's working directory went.
	ArchivePath string `json:"archive_path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary aggregates a campaign's history.
type Summary struct {
	Iterations    int       `json:"iterations"`
	Successes     int       `json:"successes"`
	Failures      int       `json:"failures"`
	LastIteration int       `json:"last_iteration"`
	LastFinished  time.Time `json:"last_finished,omitempty"`
}

// Ledger stores iteration records.
type Ledger interface {
	// AddRun registers a controller invocation before its iterations.
	AddRun(ctx context.Context, run Run) error

	// Add records an iteration. Re-recording an iteration number
	// replaces the previous record, which happens when an operator
	// restarts a campaign after a fatal error.
	Add(ctx context.Context, rec Record) error

	// List returns records ordered newest first. A non-positive limit
	// returns everything.
	List(ctx context.Context, limit int) ([]Record, error)

	// Summary aggregates the recorded history.
	Summary(ctx context.Context) (Summary, error)

	Close() error
}

package simulation

import (
	"github.com/mmtn/deposition-molecular-dynamics/internal/campaign"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/status"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// Step programs the scripted engine's behaviour for one iteration.
type Step int

const (
	// StepDeposit lands the injected particle on top of the structure,
	// one lattice spacing above the highest existing particle.
	StepDeposit Step = iota

	// StepScatter leaves the injected particle isolated far above the
	// surface, so the structural checks reject the iteration.
	StepScatter

	// StepCrash makes the engine exit with an error during the
	// relaxation phase.
	StepCrash

	// StepHang blocks the engine until the campaign context is
	// cancelled, standing in for an operator interrupt of a stuck
	// subprocess.
	StepHang
)

// Scenario defines a complete campaign experiment.
type Scenario struct {
	Name string

	// Script programs the engine iteration by iteration. Iterations
	// beyond the end of the script deposit normally.
	Script []Step

	// Substrate overrides the default three-atom silicon column.
	Substrate *structure.State

	// Configure, when non-nil, adjusts the campaign settings after the
	// runner has filled in the campaign-root paths.
	Configure func(*config.Settings)
}

// CampaignResult captures a finished or aborted campaign run.
type CampaignResult struct {
	// Outcome is meaningful only when SetupErr and Err are both nil.
	Outcome campaign.Outcome

	// SetupErr is the error that stopped Setup, if any.
	SetupErr error

	// Err is the fatal error that aborted the iteration loop, if any.
	Err error

	// Status is the checkpoint left on disk, or nil if none was written.
	Status *status.Status

	// Records is the ledger history, oldest first.
	Records []ledger.Record

	Summary ledger.Summary
}

// DefaultSubstrate returns the three-atom silicon column scenarios start
// from unless they provide their own: unit spacing in z at the centre of
// the default cell.
func DefaultSubstrate() *structure.State {
	return &structure.State{
		Coordinates: []geometry.Vec3{
			{X: 5, Y: 5, Z: 0},
			{X: 5, Y: 5, Z: 1},
			{X: 5, Y: 5, Z: 2},
		},
		Elements: []string{"Si", "Si", "Si"},
	}
}

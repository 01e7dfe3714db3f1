package simulation_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmtn/deposition-molecular-dynamics/internal/campaign"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/simulation"
)

// TestFailureBudgetAbandonsCampaign scatters every deposition.
//
// Setup: budget of two sequential failures, ten iterations allowed,
// every particle scatters instead of landing.
// Expected: the third consecutive failure exhausts the budget. All three
// failures are checkpointed and recorded, no record references a
// snapshot, and the checkpoint still points at the initial substrate.
func TestFailureBudgetAbandonsCampaign(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:      "sputtering-film",
		Script:    []simulation.Step{simulation.StepScatter, simulation.StepScatter, simulation.StepScatter},
		Configure: func(s *config.Settings) { s.MaxTotalIterations = 10 },
	})

	simulation.AssertOutcome(t, result, campaign.OutcomeFailureBudget)
	simulation.AssertStatus(t, result, 4, 3, 3)
	simulation.AssertRecords(t, result,
		ledger.OutcomeFailure, ledger.OutcomeFailure, ledger.OutcomeFailure)

	rec := simulation.RecordFor(t, result, 2)
	if !strings.Contains(rec.Reason, "num_neighbours") {
		t.Errorf("expected a num_neighbours failure, got %q", rec.Reason)
	}
	if rec.StatePath != "" {
		t.Errorf("expected no snapshot for a failed iteration, got %s", rec.StatePath)
	}
	if want := filepath.Join("failed", "002"); rec.ArchivePath != want {
		t.Errorf("expected archive %s, got %s", want, rec.ArchivePath)
	}

	if result.Status.StateReference != campaign.InitialSnapshotFile {
		t.Errorf("expected the checkpoint still on %s, got %s",
			campaign.InitialSnapshotFile, result.Status.StateReference)
	}
}

// TestResumingExhaustedBudgetRunsNothing restarts a campaign whose
// failure budget is already spent.
//
// Setup: every deposition scatters until the budget is exhausted, then
// the campaign is restarted with unchanged settings.
// Expected: the restarted controller reports the exhausted budget before
// performing an iteration; counters and history are unchanged.
func TestResumingExhaustedBudgetRunsNothing(t *testing.T) {
	r := simulation.NewRunner(t)

	tenIterations := func(s *config.Settings) { s.MaxTotalIterations = 10 }
	first := r.Run(simulation.Scenario{
		Name:      "exhausted-budget",
		Script:    []simulation.Step{simulation.StepScatter, simulation.StepScatter, simulation.StepScatter},
		Configure: tenIterations,
	})
	simulation.AssertOutcome(t, first, campaign.OutcomeFailureBudget)
	simulation.AssertStatus(t, first, 4, 3, 3)

	second := r.Run(simulation.Scenario{Name: "budget-resume", Configure: tenIterations})
	simulation.AssertOutcome(t, second, campaign.OutcomeFailureBudget)
	simulation.AssertStatus(t, second, 4, 3, 3)
	simulation.AssertRecords(t, second,
		ledger.OutcomeFailure, ledger.OutcomeFailure, ledger.OutcomeFailure)
}

// TestRecoveryResetsSequentialFailures interleaves a failure with
// successful depositions.
//
// Setup: the first particle scatters, the next two land.
// Expected: the success after the failure resets the sequential counter,
// the campaign completes, and the retry rebuilt on the unchanged
// substrate rather than on the rejected structure.
func TestRecoveryResetsSequentialFailures(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:   "recovered-film",
		Script: []simulation.Step{simulation.StepScatter, simulation.StepDeposit, simulation.StepDeposit},
	})

	simulation.AssertOutcome(t, result, campaign.OutcomeComplete)
	simulation.AssertStatus(t, result, 4, 0, 1)
	simulation.AssertRecords(t, result,
		ledger.OutcomeFailure, ledger.OutcomeSuccess, ledger.OutcomeSuccess)

	if rec := simulation.RecordFor(t, result, 2); rec.Particles != 4 {
		t.Errorf("expected the retry to rebuild on the substrate, got %d particles", rec.Particles)
	}
	if result.Summary.Failures != 1 || result.Summary.Successes != 2 {
		t.Errorf("summary %+v, want 2 successes and 1 failure", result.Summary)
	}
}

// TestStrictAnalysisEscalates runs with strict structural analysis.
//
// Setup: strict mode on, the second particle scatters.
// Expected: the failure is checkpointed and recorded first, then
// escalated to a fatal error instead of continuing the loop.
func TestStrictAnalysisEscalates(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:      "strict-film",
		Script:    []simulation.Step{simulation.StepDeposit, simulation.StepScatter},
		Configure: func(s *config.Settings) { s.StrictStructuralAnalysis = true },
	})

	simulation.AssertFatal(t, result, "strict structural analysis")
	simulation.AssertStatus(t, result, 3, 1, 1)
	simulation.AssertRecords(t, result, ledger.OutcomeSuccess, ledger.OutcomeFailure)
}

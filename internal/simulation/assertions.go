package simulation

import (
	"strings"
	"testing"

	"github.com/mmtn/deposition-molecular-dynamics/internal/campaign"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
)

// AssertOutcome asserts that the campaign ran to a clean terminal
// outcome.
func AssertOutcome(t *testing.T, result CampaignResult, want campaign.Outcome) {
	t.Helper()
	if result.SetupErr != nil {
		t.Fatalf("AssertOutcome: setup failed: %v", result.SetupErr)
	}
	if result.Err != nil {
		t.Fatalf("AssertOutcome: campaign aborted: %v", result.Err)
	}
	if result.Outcome != want {
		t.Errorf("AssertOutcome: got %q, want %q", result.Outcome, want)
	}
}

// AssertFatal asserts that the iteration loop aborted with an error
// containing substr.
func AssertFatal(t *testing.T, result CampaignResult, substr string) {
	t.Helper()
	if result.SetupErr != nil {
		t.Fatalf("AssertFatal: setup failed before the loop started: %v", result.SetupErr)
	}
	if result.Err == nil {
		t.Fatalf("AssertFatal: campaign ended %q, want an error", result.Outcome)
	}
	if !strings.Contains(result.Err.Error(), substr) {
		t.Errorf("AssertFatal: error %q does not contain %q", result.Err, substr)
	}
}

// AssertSetupFails asserts that the campaign refused to start with an
// error containing substr.
func AssertSetupFails(t *testing.T, result CampaignResult, substr string) {
	t.Helper()
	if result.SetupErr == nil {
		t.Fatalf("AssertSetupFails: setup succeeded, want an error containing %q", substr)
	}
	if !strings.Contains(result.SetupErr.Error(), substr) {
		t.Errorf("AssertSetupFails: error %q does not contain %q", result.SetupErr, substr)
	}
}

// AssertStatus asserts the checkpoint counters left on disk.
func AssertStatus(t *testing.T, result CampaignResult, iteration, sequential, total int) {
	t.Helper()
	if result.Status == nil {
		t.Fatal("AssertStatus: no checkpoint on disk")
	}
	st := result.Status
	if st.IterationNumber != iteration || st.SequentialFailures != sequential || st.TotalFailures != total {
		t.Errorf("AssertStatus: got iteration=%d sequential=%d total=%d, want %d/%d/%d",
			st.IterationNumber, st.SequentialFailures, st.TotalFailures,
			iteration, sequential, total)
	}
}

// AssertRecords asserts the ledger outcomes, oldest iteration first.
func AssertRecords(t *testing.T, result CampaignResult, outcomes ...string) {
	t.Helper()
	if len(result.Records) != len(outcomes) {
		t.Fatalf("AssertRecords: ledger has %d records, want %d", len(result.Records), len(outcomes))
	}
	for i, rec := range result.Records {
		if rec.Outcome != outcomes[i] {
			t.Errorf("AssertRecords: iteration %d recorded %q, want %q", rec.Iteration, rec.Outcome, outcomes[i])
		}
	}
}

// RecordFor returns the ledger record for an iteration, failing the test
// if it was never recorded.
func RecordFor(t *testing.T, result CampaignResult, iteration int) ledger.Record {
	t.Helper()
	for _, rec := range result.Records {
		if rec.Iteration == iteration {
			return rec
		}
	}
	t.Fatalf("RecordFor: iteration %d not in ledger", iteration)
	return ledger.Record{}
}

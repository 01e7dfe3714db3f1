package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryLedger implements Ledger in memory, for testing and dry runs.
type MemoryLedger struct {
	mu      sync.RWMutex
	runs    map[string]Run
	records map[int]Record
}

// NewMemoryLedger creates a new in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		runs:    make(map[string]Run),
		records: make(map[int]Record),
	}
}

// AddRun registers a controller invocation.
func (l *MemoryLedger) AddRun(ctx context.Context, run Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	l.runs[run.ID] = run
	return nil
}

// Add records an iteration, replacing any previous record for the same
// iteration number.
func (l *MemoryLedger) Add(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Iteration < 1 {
		return fmt.Errorf("iteration number must be at least 1, got %d", rec.Iteration)
	}
	if _, ok := l.runs[rec.RunID]; !ok {
		return fmt.Errorf("unknown run %q", rec.RunID)
	}
	if rec.Outcome != OutcomeSuccess && rec.Outcome != OutcomeFailure {
		return fmt.Errorf("unknown outcome %q", rec.Outcome)
	}

	l.records[rec.Iteration] = rec
	return nil
}

// List returns records ordered newest first.
func (l *MemoryLedger) List(ctx context.Context, limit int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Iteration > records[j].Iteration
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Summary aggregates the recorded history.
func (l *MemoryLedger) Summary(ctx context.Context) (Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var s Summary
	for _, rec := range l.records {
		s.Iterations++
		switch rec.Outcome {
		case OutcomeSuccess:
			s.Successes++
		case OutcomeFailure:
			s.Failures++
		}
		if rec.Iteration > s.LastIteration {
			s.LastIteration = rec.Iteration
		}
		if rec.FinishedAt.After(s.LastFinished) {
			s.LastFinished = rec.FinishedAt
		}
	}
	return s, nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}

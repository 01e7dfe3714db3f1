// Package status persists campaign progress so a killed or crashed
// campaign resumes where it stopped instead of reprocessing iterations.
package status

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the checkpoint file, relative to the campaign root.
const FileName = "status.yaml"

// Status is the campaign checkpoint. It is read once at startup and
// rewritten after every iteration.
type Status struct {
	// IterationNumber is the next iteration to run.
	IterationNumber int `yaml:"iteration_number" json:"iteration_number"`

	// SequentialFailures counts consecutive failed iterations. Reset by
	// the first success.
	SequentialFailures int `yaml:"sequential_failures" json:"sequential_failures"`

	// TotalFailures counts failed iterations across the whole campaign.
	TotalFailures int `yaml:"total_failures" json:"total_failures"`

	// StateReference locates the snapshot the next iteration starts
	// from.
	StateReference string `yaml:"state_reference" json:"state_reference"`

	// LastUpdated records when the checkpoint was written.
	LastUpdated time.Time `yaml:"last_updated" json:"last_updated"`
}

// New returns the checkpoint of a fresh campaign, pointing at the initial
// state snapshot.
func New(stateReference string) *Status {
	return &Status{
		IterationNumber: 1,
		StateReference:  stateReference,
	}
}

// Load reads and validates a checkpoint file.
func Load(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}
	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing status file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status file: %w", err)
	}
	return &s, nil
}

// Exists reports whether a checkpoint file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes the checkpoint atomically and stamps LastUpdated. A crash
// mid-write leaves the previous checkpoint intact.
func (s *Status) Save(path string) error {
	s.LastUpdated = time.Now().UTC()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Validate checks the checkpoint's internal consistency.
func (s *Status) Validate() error {
	if s.IterationNumber < 1 {
		return fmt.Errorf("iteration_number must be at least 1, got %d", s.IterationNumber)
	}
	if s.SequentialFailures < 0 {
		return fmt.Errorf("sequential_failures must not be negative, got %d", s.SequentialFailures)
	}
	if s.TotalFailures < 0 {
		return fmt.Errorf("total_failures must not be negative, got %d", s.TotalFailures)
	}
	if s.SequentialFailures > s.TotalFailures {
		return fmt.Errorf("sequential_failures %d exceeds total_failures %d", s.SequentialFailures, s.TotalFailures)
	}
	if s.StateReference == "" {
		return fmt.Errorf("state_reference must not be empty")
	}
	return nil
}

// RecordSuccess advances to the next iteration after a successful one,
// resetting the consecutive-failure count and pointing at the archived
// snapshot.
func (s *Status) RecordSuccess(stateReference string) {
	s.SequentialFailures = 0
	s.StateReference = stateReference
	s.IterationNumber++
}

// RecordFailure advances to the next iteration after a failed one. The
// state reference is left alone so the next iteration retries from the
// last good snapshot.
func (s *Status) RecordFailure() {
	s.SequentialFailures++
	s.TotalFailures++
	s.IterationNumber++
}

package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	s := New("initial.json")

	if s.IterationNumber != 1 {
		t.Errorf("expected iteration 1, got %d", s.IterationNumber)
	}
	if s.SequentialFailures != 0 || s.TotalFailures != 0 {
		t.Errorf("expected zero failures, got %d/%d", s.SequentialFailures, s.TotalFailures)
	}
	if s.StateReference != "initial.json" {
		t.Errorf("expected state reference initial.json, got %q", s.StateReference)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("expected fresh status to validate, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	s := New("snapshots/deposition003.json")
	s.IterationNumber = 4
	s.SequentialFailures = 1
	s.TotalFailures = 2

	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.LastUpdated.IsZero() {
		t.Error("expected LastUpdated to be stamped on save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.IterationNumber != 4 {
		t.Errorf("expected iteration 4, got %d", loaded.IterationNumber)
	}
	if loaded.SequentialFailures != 1 {
		t.Errorf("expected 1 sequential failure, got %d", loaded.SequentialFailures)
	}
	if loaded.TotalFailures != 2 {
		t.Errorf("expected 2 total failures, got %d", loaded.TotalFailures)
	}
	if loaded.StateReference != "snapshots/deposition003.json" {
		t.Errorf("unexpected state reference %q", loaded.StateReference)
	}
	if loaded.LastUpdated.IsZero() {
		t.Error("expected LastUpdated to round-trip")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	if err := New("initial.json").Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	s := New("initial.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	s.RecordSuccess("snapshots/deposition001.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.IterationNumber != 2 {
		t.Errorf("expected iteration 2, got %d", loaded.IterationNumber)
	}
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	if Exists(path) {
		t.Error("expected missing file to not exist")
	}
	if err := New("initial.json").Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !Exists(path) {
		t.Error("expected saved file to exist")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), FileName)); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte("iteration_number: [1"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("inconsistent counters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		content := "iteration_number: 3\nsequential_failures: 2\ntotal_failures: 1\nstate_reference: a.json\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected error for sequential > total")
		}
	})
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Status)
	}{
		{"zero iteration", func(s *Status) { s.IterationNumber = 0 }},
		{"negative sequential", func(s *Status) { s.SequentialFailures = -1; s.TotalFailures = 0 }},
		{"negative total", func(s *Status) { s.TotalFailures = -1 }},
		{"sequential exceeds total", func(s *Status) { s.SequentialFailures = 3; s.TotalFailures = 2 }},
		{"empty state reference", func(s *Status) { s.StateReference = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("initial.json")
			tt.modify(s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestRecordSuccess(t *testing.T) {
	s := New("initial.json")
	s.SequentialFailures = 2
	s.TotalFailures = 2

	s.RecordSuccess("snapshots/deposition001.json")

	if s.IterationNumber != 2 {
		t.Errorf("expected iteration 2, got %d", s.IterationNumber)
	}
	if s.SequentialFailures != 0 {
		t.Errorf("expected sequential failures reset, got %d", s.SequentialFailures)
	}
	if s.TotalFailures != 2 {
		t.Errorf("expected total failures kept, got %d", s.TotalFailures)
	}
	if s.StateReference != "snapshots/deposition001.json" {
		t.Errorf("expected updated state reference, got %q", s.StateReference)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("expected status to stay valid, got %v", err)
	}
}

func TestRecordFailure(t *testing.T) {
	s := New("initial.json")

	s.RecordFailure()

	if s.IterationNumber != 2 {
		t.Errorf("expected iteration 2, got %d", s.IterationNumber)
	}
	if s.SequentialFailures != 1 {
		t.Errorf("expected 1 sequential failure, got %d", s.SequentialFailures)
	}
	if s.TotalFailures != 1 {
		t.Errorf("expected 1 total failure, got %d", s.TotalFailures)
	}
	if s.StateReference != "initial.json" {
		t.Errorf("expected state reference unchanged, got %q", s.StateReference)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("expected status to stay valid, got %v", err)
	}
}

package structure

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveSnapshot persists a state to a JSON snapshot file. Snapshots are the
// durable hand-off between iterations and the target of the checkpoint's
// state reference, so the write is atomic via temp file + rename.
// Velocities are dropped when includeVelocities is false; the next
// relaxation phase regenerates them.
func SaveSnapshot(path string, s *State, includeVelocities bool) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	out := s
	if !includeVelocities && s.HasVelocities() {
		out = &State{Coordinates: s.Coordinates, Elements: s.Elements}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a state back from a JSON snapshot file.
func LoadSnapshot(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return &s, nil
}

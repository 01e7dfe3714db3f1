// Package structure holds the particle state exchanged with the external
// simulation engine and its on-disk representations: XYZ geometry files
// and JSON snapshots used as iteration checkpoint targets.
package structure

import (
	"fmt"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
)

// State is the full particle system at a point in time. Coordinates and
// elements are index-aligned; velocities are optional but when present
// must align too.
type State struct {
	Coordinates []geometry.Vec3 `json:"coordinates"`
	Elements    []string        `json:"elements"`
	Velocities  []geometry.Vec3 `json:"velocities,omitempty"`
}

// Validate checks the index alignment invariant.
func (s *State) Validate() error {
	if len(s.Coordinates) != len(s.Elements) {
		return fmt.Errorf("state has %d coordinates for %d elements", len(s.Coordinates), len(s.Elements))
	}
	if s.Velocities != nil && len(s.Velocities) != len(s.Coordinates) {
		return fmt.Errorf("state has %d velocities for %d coordinates", len(s.Velocities), len(s.Coordinates))
	}
	return nil
}

// Len returns the number of particles.
func (s *State) Len() int { return len(s.Coordinates) }

// HasVelocities reports whether velocity data is present.
func (s *State) HasVelocities() bool { return s.Velocities != nil }

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		Coordinates: make([]geometry.Vec3, len(s.Coordinates)),
		Elements:    make([]string, len(s.Elements)),
	}
	copy(c.Coordinates, s.Coordinates)
	copy(c.Elements, s.Elements)
	if s.Velocities != nil {
		c.Velocities = make([]geometry.Vec3, len(s.Velocities))
		copy(c.Velocities, s.Velocities)
	}
	return c
}

// Append adds particles to the state. Velocities must be provided exactly
// when the state already carries them.
func (s *State) Append(coords []geometry.Vec3, elements []string, velocities []geometry.Vec3) error {
	if len(coords) != len(elements) {
		return fmt.Errorf("appending %d coordinates for %d elements", len(coords), len(elements))
	}
	if s.Len() > 0 && s.HasVelocities() != (velocities != nil) {
		return fmt.Errorf("velocity presence mismatch on append")
	}
	if velocities != nil && len(velocities) != len(coords) {
		return fmt.Errorf("appending %d velocities for %d coordinates", len(velocities), len(coords))
	}
	s.Coordinates = append(s.Coordinates, coords...)
	s.Elements = append(s.Elements, elements...)
	if velocities != nil {
		s.Velocities = append(s.Velocities, velocities...)
	}
	return nil
}

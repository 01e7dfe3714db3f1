package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

func testCell(t *testing.T, a, b, c float64) *geometry.Cell {
	t.Helper()
	cell, err := geometry.NewCell(geometry.CellParams{A: a, B: b, C: c, Alpha: 90, Beta: 90, Gamma: 90})
	if err != nil {
		t.Fatalf("failed to build cell: %v", err)
	}
	return cell
}

func TestWrapZ(t *testing.T) {
	cell := testCell(t, 10, 10, 100)

	coords := []geometry.Vec3{
		{X: 1, Y: 2, Z: 50},
		{X: 1, Y: 2, Z: 80},
		{X: 1, Y: 2, Z: 85},
	}
	wrapped := WrapZ(coords, cell)

	if wrapped[0].Z != 50 {
		t.Errorf("expected atom at z=50 untouched, got z=%g", wrapped[0].Z)
	}
	if wrapped[1].Z != 80 {
		t.Errorf("expected atom exactly at threshold untouched, got z=%g", wrapped[1].Z)
	}
	if wrapped[2].Z != -15 {
		t.Errorf("expected atom at z=85 wrapped to z=-15, got z=%g", wrapped[2].Z)
	}
	if coords[2].Z != 85 {
		t.Errorf("expected input coordinates untouched, got z=%g", coords[2].Z)
	}
}

func TestWrapZTriclinic(t *testing.T) {
	cell, err := geometry.NewCell(geometry.CellParams{A: 10, B: 10, C: 100, Alpha: 85, Beta: 80, Gamma: 90})
	if err != nil {
		t.Fatalf("failed to build cell: %v", err)
	}

	coords := []geometry.Vec3{{X: 5, Y: 5, Z: 0.9 * cell.SizeZ()}}
	wrapped := WrapZ(coords, cell)

	want := coords[0].Sub(cell.ZVector)
	if math.Abs(wrapped[0].X-want.X) > 1e-12 ||
		math.Abs(wrapped[0].Y-want.Y) > 1e-12 ||
		math.Abs(wrapped[0].Z-want.Z) > 1e-12 {
		t.Errorf("expected full cell vector subtracted, got %+v want %+v", wrapped[0], want)
	}
}

func TestPeriodicImagesXY(t *testing.T) {
	cell := testCell(t, 10, 20, 100)

	coords := []geometry.Vec3{{X: 1, Y: 2, Z: 3}}
	images := PeriodicImagesXY(coords, cell)

	if len(images) != 9 {
		t.Fatalf("expected 9 images for a single atom, got %d", len(images))
	}
	if images[0] != coords[0] {
		t.Errorf("expected original first, got %+v", images[0])
	}

	want := map[geometry.Vec3]bool{
		{X: 1, Y: 2, Z: 3}:    false,
		{X: -9, Y: -18, Z: 3}: false,
		{X: -9, Y: 2, Z: 3}:   false,
		{X: -9, Y: 22, Z: 3}:  false,
		{X: 1, Y: -18, Z: 3}:  false,
		{X: 1, Y: 22, Z: 3}:   false,
		{X: 11, Y: -18, Z: 3}: false,
		{X: 11, Y: 2, Z: 3}:   false,
		{X: 11, Y: 22, Z: 3}:  false,
	}
	for _, img := range images {
		seen, ok := want[img]
		if !ok {
			t.Errorf("unexpected image %+v", img)
			continue
		}
		if seen {
			t.Errorf("duplicate image %+v", img)
		}
		want[img] = true
	}
}

func TestNeighbourCounts(t *testing.T) {
	cell := testCell(t, 10, 10, 100)

	t.Run("self counts", func(t *testing.T) {
		counts := NeighbourCounts([]geometry.Vec3{{X: 5, Y: 5, Z: 5}}, cell, 3.0)
		if counts[0] != 1 {
			t.Errorf("expected isolated atom to count itself, got %d", counts[0])
		}
	})

	t.Run("pair within cutoff", func(t *testing.T) {
		coords := []geometry.Vec3{{X: 4, Y: 5, Z: 5}, {X: 6, Y: 5, Z: 5}}
		counts := NeighbourCounts(coords, cell, 3.0)
		for i, n := range counts {
			if n != 2 {
				t.Errorf("expected count 2 for atom %d, got %d", i, n)
			}
		}
	})

	t.Run("cutoff is exclusive", func(t *testing.T) {
		coords := []geometry.Vec3{{X: 4, Y: 5, Z: 5}, {X: 6, Y: 5, Z: 5}}
		counts := NeighbourCounts(coords, cell, 2.0)
		for i, n := range counts {
			if n != 1 {
				t.Errorf("expected count 1 for atom %d at exact cutoff, got %d", i, n)
			}
		}
	})

	t.Run("neighbour across boundary", func(t *testing.T) {
		coords := []geometry.Vec3{{X: 0.5, Y: 5, Z: 5}, {X: 9.5, Y: 5, Z: 5}}
		counts := NeighbourCounts(coords, cell, 2.0)
		for i, n := range counts {
			if n != 2 {
				t.Errorf("expected periodic neighbour for atom %d, got count %d", i, n)
			}
		}
	})
}

func TestShiftToOrigin(t *testing.T) {
	cell := testCell(t, 10, 10, 100)

	t.Run("translates minima to zero", func(t *testing.T) {
		coords := []geometry.Vec3{
			{X: 2, Y: -3, Z: 5},
			{X: 4, Y: 1, Z: 7},
		}
		shifted := ShiftToOrigin(coords, cell)

		want := []geometry.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 2, Y: 4, Z: 2},
		}
		for i := range want {
			if shifted[i] != want[i] {
				t.Errorf("atom %d: expected %+v, got %+v", i, want[i], shifted[i])
			}
		}
	})

	t.Run("wraps before shifting", func(t *testing.T) {
		coords := []geometry.Vec3{
			{X: 0, Y: 0, Z: 5},
			{X: 0, Y: 0, Z: 95},
		}
		shifted := ShiftToOrigin(coords, cell)

		// z=95 wraps to -5 and becomes the new floor
		if shifted[1].Z != 0 {
			t.Errorf("expected wrapped atom at origin, got z=%g", shifted[1].Z)
		}
		if shifted[0].Z != 10 {
			t.Errorf("expected unwrapped atom at z=10, got z=%g", shifted[0].Z)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if shifted := ShiftToOrigin(nil, cell); len(shifted) != 0 {
			t.Errorf("expected empty output, got %d coordinates", len(shifted))
		}
	})
}

func substrateState() *structure.State {
	return &structure.State{
		Coordinates: []geometry.Vec3{
			{X: 4, Y: 5, Z: 0},
			{X: 5, Y: 5, Z: 1},
			{X: 6, Y: 5, Z: 2},
		},
		Elements: []string{"Si", "Si", "Si"},
	}
}

func TestValidatorNumNeighbours(t *testing.T) {
	cell := testCell(t, 10, 10, 100)
	settings := config.Postprocessing{
		NumNeighbours: &config.NumNeighboursSettings{MinNeighbours: 1, BondingCutoff: 3.0},
	}
	validator := NewValidator(settings, "Ar", cell)

	t.Run("bonded structure passes", func(t *testing.T) {
		state := substrateState()
		result, err := validator.Run(state)
		if err != nil {
			t.Fatalf("expected pass, got %v", err)
		}
		if result.Len() != state.Len() {
			t.Errorf("expected state preserved, got %d atoms", result.Len())
		}
	})

	t.Run("isolated particle fails", func(t *testing.T) {
		state := substrateState()
		if err := state.Append(
			[]geometry.Vec3{{X: 5, Y: 5, Z: 50}},
			[]string{"Ar"}, nil,
		); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		_, err := validator.Run(state)
		var failure *Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected a check failure, got %v", err)
		}
		if failure.Check != "num_neighbours" {
			t.Errorf("expected num_neighbours failure, got %q", failure.Check)
		}
	})
}

func TestValidatorLowerInterface(t *testing.T) {
	cell := testCell(t, 10, 10, 100)
	settings := config.Postprocessing{
		LowerInterface: &config.LowerInterfaceSettings{BondingCutoff: 4.0},
	}
	validator := NewValidator(settings, "Ar", cell)

	t.Run("deposit on top passes", func(t *testing.T) {
		state := substrateState()
		if err := state.Append(
			[]geometry.Vec3{{X: 5, Y: 5, Z: 10}},
			[]string{"Ar"}, nil,
		); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if _, err := validator.Run(state); err != nil {
			t.Errorf("expected pass, got %v", err)
		}
	})

	t.Run("deposit at bottom fails", func(t *testing.T) {
		state := substrateState()
		if err := state.Append(
			[]geometry.Vec3{{X: 5, Y: 5, Z: 3}},
			[]string{"Ar"}, nil,
		); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		_, err := validator.Run(state)
		var failure *Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected a check failure, got %v", err)
		}
		if failure.Check != "lower_interface" {
			t.Errorf("expected lower_interface failure, got %q", failure.Check)
		}
	})

	t.Run("wrapped deposit fails", func(t *testing.T) {
		// An atom over the top boundary wraps below the substrate and
		// becomes the lowest point of the structure.
		state := substrateState()
		if err := state.Append(
			[]geometry.Vec3{{X: 5, Y: 5, Z: 95}},
			[]string{"Ar"}, nil,
		); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		_, err := validator.Run(state)
		var failure *Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected a check failure, got %v", err)
		}
	})

	t.Run("other species ignored", func(t *testing.T) {
		state := substrateState()
		if _, err := validator.Run(state); err != nil {
			t.Errorf("expected substrate-only state to pass, got %v", err)
		}
	})
}

func TestValidatorShiftToOrigin(t *testing.T) {
	cell := testCell(t, 10, 10, 100)
	validator := NewValidator(config.Postprocessing{ShiftToOrigin: true}, "Ar", cell)

	state := substrateState()
	result, err := validator.Run(state)
	if err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	if result.Coordinates[0].X != 0 || result.Coordinates[0].Y != 0 || result.Coordinates[0].Z != 0 {
		t.Errorf("expected first atom at origin, got %+v", result.Coordinates[0])
	}
	if state.Coordinates[0].X != 4 {
		t.Errorf("expected input state untouched, got %+v", state.Coordinates[0])
	}
}

func TestValidatorNoChecks(t *testing.T) {
	cell := testCell(t, 10, 10, 100)
	validator := NewValidator(config.Postprocessing{}, "Ar", cell)

	state := substrateState()
	result, err := validator.Run(state)
	if err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if result != state {
		t.Error("expected state returned unchanged when no checks are enabled")
	}
}

func TestValidatorRejectsMisalignedState(t *testing.T) {
	cell := testCell(t, 10, 10, 100)
	validator := NewValidator(config.Postprocessing{}, "Ar", cell)

	state := &structure.State{
		Coordinates: []geometry.Vec3{{X: 1, Y: 1, Z: 1}},
		Elements:    []string{"Si", "Si"},
	}
	_, err := validator.Run(state)
	if err == nil {
		t.Fatal("expected error for misaligned state")
	}
	var failure *Failure
	if errors.As(err, &failure) {
		t.Error("expected a fatal error, not a check failure")
	}
}

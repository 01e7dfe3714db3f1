package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

func testState(withVelocities bool) *structure.State {
	s := &structure.State{
		Coordinates: []geometry.Vec3{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		Elements:    []string{"Si", "O"},
	}
	if withVelocities {
		s.Velocities = []geometry.Vec3{{Z: -1.5}, {X: 0.5, Z: -2}}
	}
	return s
}

func newTestGeneric(t *testing.T) (*genericDriver, Config) {
	t.Helper()
	cfg, err := ParseConfig(genericSettings(t))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	d, err := newGeneric(cfg, testCampaign())
	if err != nil {
		t.Fatalf("newGeneric() error = %v", err)
	}
	return d, cfg
}

func TestGenericWriteInputsRelaxation(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "relaxation001")

	if err := d.WriteInputs(prefix, testState(true), PhaseRelaxation); err != nil {
		t.Fatalf("WriteInputs() error = %v", err)
	}

	data, err := os.ReadFile(prefix + ".input")
	if err != nil {
		t.Fatalf("reading input: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "run "+prefix+" for 10 ps") {
		t.Errorf("expected expanded template, got %q", text)
	}
	if !strings.Contains(text, "2\nrelaxation\nSi 1 2 3\nO 4 5 6\n") {
		t.Errorf("expected coordinate block, got %q", text)
	}
	if strings.Contains(text, "velocities") {
		t.Error("relaxation input should not carry velocities")
	}
}

func TestGenericWriteInputsDeposition(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "deposition001")

	if err := d.WriteInputs(prefix, testState(true), PhaseDeposition); err != nil {
		t.Fatalf("WriteInputs() error = %v", err)
	}

	data, err := os.ReadFile(prefix + ".input")
	if err != nil {
		t.Fatalf("reading input: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "for 2 ps") {
		t.Errorf("expected deposition time in template, got %q", text)
	}
	if !strings.Contains(text, "velocities\n0 0 -1.5\n0.5 0 -2\n") {
		t.Errorf("expected velocity block, got %q", text)
	}
}

func TestGenericWriteInputsDepositionNeedsVelocities(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "deposition001")

	err := d.WriteInputs(prefix, testState(false), PhaseDeposition)
	if err == nil || !strings.Contains(err.Error(), "no velocities") {
		t.Errorf("expected missing-velocities error, got %v", err)
	}
}

func TestGenericReadOutputs(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "relaxation001")

	// Two frames; only the last one should be read.
	trajectory := "2\nstep 0\nSi 0 0 0\nO 0 0 1\n2\nstep 100\nSi 1 1 1\nO 2 2 2\n"
	if err := os.WriteFile(prefix+".output.xyz", []byte(trajectory), 0o644); err != nil {
		t.Fatalf("writing trajectory: %v", err)
	}
	velocities := "0.1 0.2 0.3\n\n-0.1 -0.2 -0.3\n"
	if err := os.WriteFile(prefix+".output.velocities", []byte(velocities), 0o644); err != nil {
		t.Fatalf("writing velocities: %v", err)
	}

	state, err := d.ReadOutputs(prefix)
	if err != nil {
		t.Fatalf("ReadOutputs() error = %v", err)
	}
	if state.Len() != 2 {
		t.Fatalf("expected 2 particles, got %d", state.Len())
	}
	if state.Coordinates[0] != (geometry.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("expected last-frame coordinates, got %v", state.Coordinates[0])
	}
	if !state.HasVelocities() {
		t.Fatal("expected velocities from sidecar file")
	}
	if state.Velocities[1] != (geometry.Vec3{X: -0.1, Y: -0.2, Z: -0.3}) {
		t.Errorf("expected velocity (-0.1 -0.2 -0.3), got %v", state.Velocities[1])
	}
}

func TestGenericReadOutputsWithoutVelocities(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "relaxation001")

	if err := os.WriteFile(prefix+".output.xyz", []byte("1\nfinal\nAr 5 5 12\n"), 0o644); err != nil {
		t.Fatalf("writing trajectory: %v", err)
	}

	state, err := d.ReadOutputs(prefix)
	if err != nil {
		t.Fatalf("ReadOutputs() error = %v", err)
	}
	if state.HasVelocities() {
		t.Error("expected no velocities without a sidecar file")
	}
}

func TestGenericReadOutputsVelocityCountMismatch(t *testing.T) {
	d, _ := newTestGeneric(t)
	prefix := filepath.Join(t.TempDir(), "relaxation001")

	if err := os.WriteFile(prefix+".output.xyz", []byte("2\nfinal\nSi 0 0 0\nO 1 1 1\n"), 0o644); err != nil {
		t.Fatalf("writing trajectory: %v", err)
	}
	if err := os.WriteFile(prefix+".output.velocities", []byte("0 0 -1\n"), 0o644); err != nil {
		t.Fatalf("writing velocities: %v", err)
	}

	if _, err := d.ReadOutputs(prefix); err == nil {
		t.Error("expected row count error, got nil")
	}
}

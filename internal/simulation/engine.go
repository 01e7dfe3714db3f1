package simulation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mmtn/deposition-molecular-dynamics/internal/driver"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// scriptedEngine stands in for an external molecular dynamics engine.
// It implements both the driver and the runner, so no subprocess is
// ever started; what each iteration does comes from the scenario
// script. The iteration number is recovered from the path prefix the
// engine hands over, which keeps the stand-in stateless across
// controller restarts.
type scriptedEngine struct {
	script  []Step
	scaling float64
	cancel  context.CancelFunc
	inputs  map[string]*structure.State
}

func newScriptedEngine(script []Step, scaling float64, cancel context.CancelFunc) *scriptedEngine {
	return &scriptedEngine{
		script:  script,
		scaling: scaling,
		cancel:  cancel,
		inputs:  make(map[string]*structure.State),
	}
}

func (s *scriptedEngine) Name() string { return "scripted" }

func (s *scriptedEngine) CommandTemplate() string {
	return "${prefix} ${binary} ${arguments} < ${input_file} > ${output_file}"
}

func (s *scriptedEngine) VelocityScaling() float64 { return s.scaling }

func (s *scriptedEngine) Environ() []string { return nil }

func (s *scriptedEngine) TemplateSpec() driver.TemplateSpec {
	return driver.TemplateSpec{
		Reserved: []string{"simulation_time_picoseconds"},
		Required: []string{"filename", "simulation_time_picoseconds"},
	}
}

// WriteInputs remembers the state handed over for the phase and leaves a
// marker file behind, so working directories and archives hold the files
// a real engine run would produce.
func (s *scriptedEngine) WriteInputs(prefix string, state *structure.State, phase driver.Phase) error {
	s.inputs[filepath.Base(prefix)] = state.Clone()
	marker := fmt.Sprintf("%s %d particles\n", phase, state.Len())
	return os.WriteFile(prefix+".input", []byte(marker), 0o644)
}

// ReadOutputs replays the remembered input. Relaxation returns it
// unchanged; deposition moves the newest particle according to the
// scripted step: onto the top of the structure, or far above it.
func (s *scriptedEngine) ReadOutputs(prefix string) (*structure.State, error) {
	base := filepath.Base(prefix)
	input, ok := s.inputs[base]
	if !ok {
		return nil, fmt.Errorf("no inputs written for %s", base)
	}
	if !strings.HasPrefix(base, string(driver.PhaseDeposition)) {
		return input.Clone(), nil
	}

	out := input.Clone()
	n := out.Len()
	if n < 2 {
		return nil, fmt.Errorf("deposition phase needs a substrate and a particle, have %d", n)
	}

	top := 0
	for i := 1; i < n-1; i++ {
		if out.Coordinates[i].Z > out.Coordinates[top].Z {
			top = i
		}
	}
	at := out.Coordinates[top]

	landed := geometry.Vec3{X: at.X, Y: at.Y, Z: at.Z + 1}
	if s.stepFor(iterationFrom(base)) == StepScatter {
		landed.Z = at.Z + 40
	}
	out.Coordinates[n-1] = landed
	if out.HasVelocities() {
		out.Velocities[n-1] = geometry.Vec3{}
	}
	return out, nil
}

// Run is the engine.Runner side of the stand-in: instead of launching a
// subprocess it acts out the scripted step for the iteration.
func (s *scriptedEngine) Run(ctx context.Context, _ driver.Driver, _ driver.Config, pathPrefix string) error {
	switch s.stepFor(iterationFrom(filepath.Base(pathPrefix))) {
	case StepCrash:
		return errors.New("engine exited with code 139")
	case StepHang:
		s.cancel()
		<-ctx.Done()
		return fmt.Errorf("engine interrupted: %w", ctx.Err())
	}
	return nil
}

func (s *scriptedEngine) stepFor(iteration int) Step {
	if iteration >= 1 && iteration <= len(s.script) {
		return s.script[iteration-1]
	}
	return StepDeposit
}

// iterationFrom parses the trailing digits of a path prefix base such as
// "relaxation007".
func iterationFrom(base string) int {
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	n, _ := strconv.Atoi(base[i:])
	return n
}

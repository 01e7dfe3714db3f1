package driver

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// genericDriver talks to any engine that reads an XYZ coordinate block
// appended to its input file and writes its final frame to
// <prefix>.output.xyz, with velocities in an optional
// <prefix>.output.velocities sidecar. It carries no engine-specific
// settings, so it doubles as the test harness driver.
type genericDriver struct {
	cfg  Config
	camp Campaign
}

func newGeneric(cfg Config, camp Campaign) (*genericDriver, error) {
	d := &genericDriver{cfg: cfg, camp: camp}
	if err := checkReservedCollisions(cfg.Settings, d.TemplateSpec()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *genericDriver) Name() string { return "generic" }

func (d *genericDriver) CommandTemplate() string {
	return "${prefix} ${binary} ${arguments} < ${input_file} > ${output_file}"
}

func (d *genericDriver) VelocityScaling() float64 { return d.cfg.VelocityScaling }

func (d *genericDriver) TemplateSpec() TemplateSpec {
	return TemplateSpec{
		Reserved: []string{"simulation_time_picoseconds"},
		Required: []string{"filename", "simulation_time_picoseconds"},
	}
}

func (d *genericDriver) Environ() []string { return nil }

// WriteInputs writes <prefix>.input: the expanded template followed by
// an XYZ coordinate block, plus a velocities block during deposition.
func (d *genericDriver) WriteInputs(prefix string, state *structure.State, phase Phase) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}

	text, err := os.ReadFile(d.cfg.InputTemplate)
	if err != nil {
		return fmt.Errorf("reading input template: %w", err)
	}
	values := templateValues(d.cfg.Settings)
	values["filename"] = prefix
	values["simulation_time_picoseconds"] = formatFloat(d.camp.timeFor(phase))
	expanded, err := ExpandTemplate(string(text), values)
	if err != nil {
		return fmt.Errorf("expanding input template: %w", err)
	}

	f, err := os.Create(prefix + ".input")
	if err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.WriteString(expanded)
	if !strings.HasSuffix(expanded, "\n") {
		w.WriteByte('\n')
	}
	if err := structure.WriteXYZ(w, state, string(phase)); err != nil {
		return err
	}
	if phase == PhaseDeposition {
		if !state.HasVelocities() {
			return fmt.Errorf("writing %s inputs: deposition state has no velocities", d.Name())
		}
		w.WriteString("velocities\n")
		for _, v := range state.Velocities {
			fmt.Fprintf(w, "%g %g %g\n", v.X, v.Y, v.Z)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}
	return f.Close()
}

// ReadOutputs reads the last frame of <prefix>.output.xyz and any
// velocities from <prefix>.output.velocities.
func (d *genericDriver) ReadOutputs(prefix string) (*structure.State, error) {
	state, err := structure.ReadXYZ(prefix+".output.xyz", structure.LastFrame)
	if err != nil {
		return nil, err
	}

	velocities, err := readVelocityRows(prefix+".output.velocities", state.Len())
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, err
	}
	state.Velocities = velocities
	return state, nil
}

// readVelocityRows reads n whitespace-delimited "vx vy vz" rows,
// skipping blank lines.
func readVelocityRows(path string, n int) ([]geometry.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	velocities := make([]geometry.Vec3, 0, n)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("velocity file %s line %d: expected 'vx vy vz', got %q", path, i+1, line)
		}
		var v geometry.Vec3
		if v.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("velocity file %s line %d: %w", path, i+1, err)
		}
		if v.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("velocity file %s line %d: %w", path, i+1, err)
		}
		if v.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("velocity file %s line %d: %w", path, i+1, err)
		}
		velocities = append(velocities, v)
	}
	if len(velocities) != n {
		return nil, fmt.Errorf("velocity file %s: %d rows for %d particles", path, len(velocities), n)
	}
	return velocities, nil
}

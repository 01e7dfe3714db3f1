package driver

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/physics"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// keyGULPLibrary points GULP at its interatomic potential library
// directory.
const keyGULPLibrary = "GULP_LIB"

// gulpDriver drives GULP, which reads its input from stdin and writes
// the trajectory to <prefix>.trg and the final structure to
// <prefix>.xyz. Box sizes, cell angles and the Nose-Hoover thermostat
// damping are computed per run and handed to the template.
type gulpDriver struct {
	cfg     Config
	cell    *geometry.Cell
	camp    Campaign
	library string
}

func newGULP(cfg Config, cell *geometry.Cell, camp Campaign) (*gulpDriver, error) {
	d := &gulpDriver{cfg: cfg, cell: cell, camp: camp}
	if err := checkReservedCollisions(cfg.Settings, d.TemplateSpec()); err != nil {
		return nil, err
	}

	var err error
	if d.library, err = stringSetting(cfg.Settings, keyGULPLibrary); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *gulpDriver) Name() string { return "gulp" }

func (d *gulpDriver) CommandTemplate() string {
	return "${prefix} ${binary} ${arguments} < ${input_file} > ${output_file}"
}

func (d *gulpDriver) VelocityScaling() float64 { return d.cfg.VelocityScaling }

func (d *gulpDriver) TemplateSpec() TemplateSpec {
	return TemplateSpec{
		Reserved: []string{
			"production_time_picoseconds",
			"thermostat_damping",
			"x_size", "y_size", "z_size",
			"alpha", "beta", "gamma",
		},
		Required:     []string{"filename", "production_time_picoseconds"},
		SettingsKeys: []string{keyGULPLibrary},
	}
}

func (d *gulpDriver) Environ() []string {
	return []string{keyGULPLibrary + "=" + d.library}
}

// WriteInputs writes <prefix>.input: the expanded template followed by
// a cartesian coordinate block, plus a velocities block during
// deposition. GULP numbers atoms from one.
func (d *gulpDriver) WriteInputs(prefix string, state *structure.State, phase Phase) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}
	if phase == PhaseDeposition && !state.HasVelocities() {
		return fmt.Errorf("writing %s inputs: deposition state has no velocities", d.Name())
	}

	damping, err := physics.NoseHooverDamping(state.Len(), d.camp.TemperatureK)
	if err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}

	text, err := os.ReadFile(d.cfg.InputTemplate)
	if err != nil {
		return fmt.Errorf("reading input template: %w", err)
	}
	values := templateValues(d.cfg.Settings)
	values["filename"] = prefix
	values["production_time_picoseconds"] = formatFloat(d.camp.timeFor(phase))
	values["thermostat_damping"] = formatFloat(damping)
	values["x_size"] = formatFloat(d.cell.SizeX())
	values["y_size"] = formatFloat(d.cell.SizeY())
	values["z_size"] = formatFloat(d.cell.SizeZ())
	values["alpha"] = formatFloat(d.cell.Params.Alpha)
	values["beta"] = formatFloat(d.cell.Params.Beta)
	values["gamma"] = formatFloat(d.cell.Params.Gamma)
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
	w.WriteString("cartesian\n")
	for i, c := range state.Coordinates {
		fmt.Fprintf(w, "%s %g %g %g\n", state.Elements[i], c.X, c.Y, c.Z)
	}
	if phase == PhaseDeposition {
		w.WriteString("velocities\n")
		for i, v := range state.Velocities {
			fmt.Fprintf(w, "%d %g %g %g\n", i+1, v.X, v.Y, v.Z)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}
	return f.Close()
}

// ReadOutputs reads the final frame of <prefix>.xyz and the matching
// velocities from the last Velocities section of the <prefix>.trg
// trajectory.
func (d *gulpDriver) ReadOutputs(prefix string) (*structure.State, error) {
	state, err := structure.ReadXYZ(prefix+".xyz", structure.LastFrame)
	if err != nil {
		return nil, err
	}
	velocities, err := readGULPVelocities(prefix+".trg", state.Len())
	if err != nil {
		return nil, err
	}
	state.Velocities = velocities
	return state, nil
}

// readGULPVelocities extracts n velocity rows from the last Velocities
// section of a GULP trajectory file.
func readGULPVelocities(path string, n int) ([]geometry.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trajectory: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#")) == "Velocities" {
			start = i + 1
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("trajectory %s: no Velocities section", path)
	}
	if start+n > len(lines) {
		return nil, fmt.Errorf("trajectory %s: Velocities section has fewer than %d rows", path, n)
	}

	velocities := make([]geometry.Vec3, n)
	for i := 0; i < n; i++ {
		fields := strings.Fields(lines[start+i])
		if len(fields) < 3 {
			return nil, fmt.Errorf("trajectory %s line %d: expected 'vx vy vz', got %q", path, start+i+1, lines[start+i])
		}
		if velocities[i], err = parseVec3(fields[:3]); err != nil {
			return nil, fmt.Errorf("trajectory %s line %d: %w", path, start+i+1, err)
		}
	}
	return velocities, nil
}

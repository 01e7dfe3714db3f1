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

// LAMMPS-specific settings keys.
const (
	keyAtomicMasses        = "atomic_masses"
	keyElementsInPotential = "elements_in_potential"
	keyTimestepScaling     = "timestep_scaling_from_picoseconds"
)

// lammpsDriver drives LAMMPS. Each run reads a "charge" style data file
// written next to the expanded input script; the script is expected to
// finish with a write_data command producing <prefix>.output_data.
type lammpsDriver struct {
	cfg  Config
	cell *geometry.Cell
	camp Campaign

	masses []float64
	// elements maps LAMMPS atom types to element symbols; type i is
	// elements[i-1].
	elements        []string
	timestepScaling float64
}

func newLAMMPS(cfg Config, cell *geometry.Cell, camp Campaign) (*lammpsDriver, error) {
	d := &lammpsDriver{cfg: cfg, cell: cell, camp: camp}
	if err := checkReservedCollisions(cfg.Settings, d.TemplateSpec()); err != nil {
		return nil, err
	}

	raw, ok := cfg.Settings[keyAtomicMasses]
	if !ok {
		return nil, fmt.Errorf("driver setting %s is required", keyAtomicMasses)
	}
	list, isList := raw.([]any)
	if !isList || len(list) == 0 {
		return nil, fmt.Errorf("driver setting %s must be a non-empty list of numbers", keyAtomicMasses)
	}
	for _, v := range list {
		mass, isNumber := floatValue(v)
		if !isNumber || mass <= 0 {
			return nil, fmt.Errorf("driver setting %s must contain positive numbers, got %v", keyAtomicMasses, v)
		}
		d.masses = append(d.masses, mass)
	}

	symbols, err := stringSetting(cfg.Settings, keyElementsInPotential)
	if err != nil {
		return nil, err
	}
	d.elements = strings.Fields(symbols)
	if len(d.elements) != len(d.masses) {
		return nil, fmt.Errorf("%s lists %d elements but %s lists %d masses",
			keyElementsInPotential, len(d.elements), keyAtomicMasses, len(d.masses))
	}

	if d.timestepScaling, err = floatSetting(cfg.Settings, keyTimestepScaling); err != nil {
		return nil, err
	}
	if d.timestepScaling <= 0 {
		return nil, fmt.Errorf("driver setting %s must be greater than zero, got %g", keyTimestepScaling, d.timestepScaling)
	}

	return d, nil
}

func (d *lammpsDriver) Name() string { return "lammps" }

func (d *lammpsDriver) CommandTemplate() string {
	return "${prefix} ${binary} ${arguments} -in ${input_file} > ${output_file}"
}

func (d *lammpsDriver) VelocityScaling() float64 { return d.cfg.VelocityScaling }

func (d *lammpsDriver) TemplateSpec() TemplateSpec {
	return TemplateSpec{
		Reserved: []string{"num_steps"},
		Required: []string{"filename", "num_steps"},
		SettingsKeys: []string{
			keyAtomicMasses,
			keyElementsInPotential,
			keyTimestepScaling,
		},
	}
}

func (d *lammpsDriver) Environ() []string { return nil }

// WriteInputs writes the input script <prefix>.input and the data file
// <prefix>.input_data it reads its structure from.
func (d *lammpsDriver) WriteInputs(prefix string, state *structure.State, phase Phase) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}

	numSteps := int(d.camp.timeFor(phase) * d.timestepScaling)
	if numSteps < 1 {
		return fmt.Errorf("%s phase of %g ps gives %d steps at %g steps per ps",
			phase, d.camp.timeFor(phase), numSteps, d.timestepScaling)
	}

	text, err := os.ReadFile(d.cfg.InputTemplate)
	if err != nil {
		return fmt.Errorf("reading input template: %w", err)
	}
	values := templateValues(d.cfg.Settings)
	values["filename"] = prefix
	values["num_steps"] = strconv.Itoa(numSteps)
	expanded, err := ExpandTemplate(string(text), values)
	if err != nil {
		return fmt.Errorf("expanding input template: %w", err)
	}
	if err := os.WriteFile(prefix+".input", []byte(expanded), 0o644); err != nil {
		return fmt.Errorf("writing %s inputs: %w", d.Name(), err)
	}

	return d.writeDataFile(prefix+".input_data", state, phase)
}

// writeDataFile writes a LAMMPS data file in the "charge" atom style,
// with a Velocities section during deposition.
func (d *lammpsDriver) writeDataFile(path string, state *structure.State, phase Phase) error {
	types := make([]int, state.Len())
	for i, element := range state.Elements {
		t, err := d.atomType(element)
		if err != nil {
			return err
		}
		types[i] = t
	}
	if phase == PhaseDeposition && !state.HasVelocities() {
		return fmt.Errorf("writing %s inputs: deposition state has no velocities", d.Name())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s data file: %w", d.Name(), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "LAMMPS data file: charge atom style\n\n")
	fmt.Fprintf(w, "%d atoms\n%d atom types\n\n", state.Len(), len(d.masses))
	fmt.Fprintf(w, "%s %s xlo xhi\n", formatFloat(d.cell.XMin), formatFloat(d.cell.XMax))
	fmt.Fprintf(w, "%s %s ylo yhi\n", formatFloat(d.cell.YMin), formatFloat(d.cell.YMax))
	fmt.Fprintf(w, "%s %s zlo zhi\n", formatFloat(d.cell.ZMin), formatFloat(d.cell.ZMax))
	if d.cell.TiltXY != 0 || d.cell.TiltXZ != 0 || d.cell.TiltYZ != 0 {
		fmt.Fprintf(w, "%s %s %s xy xz yz\n",
			formatFloat(d.cell.TiltXY), formatFloat(d.cell.TiltXZ), formatFloat(d.cell.TiltYZ))
	}

	fmt.Fprintf(w, "\nMasses\n\n")
	for i, mass := range d.masses {
		fmt.Fprintf(w, "%d %s\n", i+1, formatFloat(mass))
	}

	fmt.Fprintf(w, "\nAtoms # charge\n\n")
	for i, c := range state.Coordinates {
		fmt.Fprintf(w, "%d %d 0.0 %g %g %g\n", i+1, types[i], c.X, c.Y, c.Z)
	}

	if phase == PhaseDeposition {
		fmt.Fprintf(w, "\nVelocities\n\n")
		for i, v := range state.Velocities {
			fmt.Fprintf(w, "%d %g %g %g\n", i+1, v.X, v.Y, v.Z)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s data file: %w", d.Name(), err)
	}
	return f.Close()
}

// ReadOutputs parses the data file written by the script's final
// write_data command.
func (d *lammpsDriver) ReadOutputs(prefix string) (*structure.State, error) {
	path := prefix + ".output_data"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s outputs: %w", d.Name(), err)
	}
	lines := strings.Split(string(data), "\n")

	numAtoms := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "atoms" {
			if numAtoms, err = strconv.Atoi(fields[0]); err != nil {
				return nil, fmt.Errorf("data file %s: bad atom count %q", path, fields[0])
			}
			break
		}
	}
	if numAtoms <= 0 {
		return nil, fmt.Errorf("data file %s: no atom count", path)
	}

	state := &structure.State{
		Coordinates: make([]geometry.Vec3, numAtoms),
		Elements:    make([]string, numAtoms),
	}

	rows, err := dataSection(lines, "Atoms", numAtoms)
	if err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}
	for _, fields := range rows {
		// write_data may append image flags; only the leading
		// "id type q x y z" columns matter here.
		if len(fields) < 6 {
			return nil, fmt.Errorf("data file %s: short Atoms row %v", path, fields)
		}
		id, err := rowID(fields[0], numAtoms)
		if err != nil {
			return nil, fmt.Errorf("data file %s: %w", path, err)
		}
		t, err := strconv.Atoi(fields[1])
		if err != nil || t < 1 || t > len(d.elements) {
			return nil, fmt.Errorf("data file %s: bad atom type %q", path, fields[1])
		}
		state.Elements[id-1] = d.elements[t-1]
		if state.Coordinates[id-1], err = parseVec3(fields[3:6]); err != nil {
			return nil, fmt.Errorf("data file %s atom %d: %w", path, id, err)
		}
	}

	velocityRows, err := dataSection(lines, "Velocities", numAtoms)
	if err == nil {
		state.Velocities = make([]geometry.Vec3, numAtoms)
		for _, fields := range velocityRows {
			if len(fields) < 4 {
				return nil, fmt.Errorf("data file %s: short Velocities row %v", path, fields)
			}
			id, err := rowID(fields[0], numAtoms)
			if err != nil {
				return nil, fmt.Errorf("data file %s: %w", path, err)
			}
			if state.Velocities[id-1], err = parseVec3(fields[1:4]); err != nil {
				return nil, fmt.Errorf("data file %s velocity %d: %w", path, id, err)
			}
		}
	}

	return state, nil
}

// atomType maps an element symbol to its 1-based LAMMPS type.
func (d *lammpsDriver) atomType(element string) (int, error) {
	for i, symbol := range d.elements {
		if symbol == element {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("element %s is not in %s (%s)", element, keyElementsInPotential, strings.Join(d.elements, " "))
}

// dataSection returns the n data rows following the named section
// header, split into fields.
func dataSection(lines []string, name string, n int) ([][]string, error) {
	start := -1
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == name {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no %s section", name)
	}
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start+n > len(lines) {
		return nil, fmt.Errorf("%s section has fewer than %d rows", name, n)
	}

	rows := make([][]string, 0, n)
	for _, line := range lines[start : start+n] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%s section has fewer than %d rows", name, n)
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

// rowID parses a 1-based particle id and bounds-checks it.
func rowID(field string, n int) (int, error) {
	id, err := strconv.Atoi(field)
	if err != nil || id < 1 || id > n {
		return 0, fmt.Errorf("bad particle id %q", field)
	}
	return id, nil
}

// parseVec3 parses three float fields.
func parseVec3(fields []string) (geometry.Vec3, error) {
	var v geometry.Vec3
	var err error
	if v.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return geometry.Vec3{}, err
	}
	if v.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return geometry.Vec3{}, err
	}
	if v.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return geometry.Vec3{}, err
	}
	return v, nil
}

// Package driver interfaces with external molecular dynamics engines.
// A driver knows how to write an engine's input files from a particle
// state, how to invoke the engine, and how to read the state back out of
// the engine's output files. The engine itself is a black box run as a
// subprocess.
package driver

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// ErrUnknownDriver means driver_settings.name matched no known engine.
var ErrUnknownDriver = errors.New("unknown driver")

// Phase is one simulation stage of an iteration.
type Phase string

const (
	PhaseRelaxation Phase = "relaxation"
	PhaseDeposition Phase = "deposition"
)

// Campaign carries the campaign-level values drivers need: phase
// durations and the deposition temperature. Drivers never see or mutate
// the full campaign settings.
type Campaign struct {
	RelaxationTimePS float64
	DepositionTimePS float64
	TemperatureK     float64
}

// timeFor returns the configured duration of a phase in picoseconds.
func (c Campaign) timeFor(phase Phase) float64 {
	if phase == PhaseDeposition {
		return c.DepositionTimePS
	}
	return c.RelaxationTimePS
}

// Driver is the interface to one external engine.
type Driver interface {
	// Name identifies the engine.
	Name() string

	// CommandTemplate is the shell command shape, with ${prefix},
	// ${binary}, ${arguments}, ${input_file} and ${output_file}
	// placeholders filled in by the Runner.
	CommandTemplate() string

	// VelocityScaling converts metres per second into the engine's
	// velocity units.
	VelocityScaling() float64

	// TemplateSpec describes the input template's reserved keys.
	TemplateSpec() TemplateSpec

	// Environ returns extra environment variables for engine
	// invocations, in "KEY=value" form.
	Environ() []string

	// WriteInputs writes the engine's input files for one phase. All
	// file names start with prefix (a path like "current/relaxation003").
	WriteInputs(prefix string, state *structure.State, phase Phase) error

	// ReadOutputs reads the engine's output files back into a state.
	ReadOutputs(prefix string) (*structure.State, error)
}

// Settings keys shared by every driver.
const (
	keyName            = "name"
	keyBinaryPath      = "path_to_binary"
	keyInputTemplate   = "path_to_input_template"
	keyVelocityScaling = "velocity_scaling_from_metres_per_second"
	keyCommandLineArgs = "command_line_args"
)

// commonSettingsKeys are consumed by the driver machinery itself rather
// than input templates.
var commonSettingsKeys = []string{
	keyName,
	keyBinaryPath,
	keyInputTemplate,
	keyVelocityScaling,
	keyCommandLineArgs,
}

// Config is the parsed driver_settings section of the campaign settings.
type Config struct {
	Name            string
	BinaryPath      string
	InputTemplate   string
	VelocityScaling float64
	CommandLineArgs string

	// Settings retains every key from driver_settings for template
	// substitution.
	Settings map[string]any
}

// ParseConfig extracts and validates the generic driver settings.
func ParseConfig(raw map[string]any) (Config, error) {
	cfg := Config{Settings: raw}

	var err error
	if cfg.Name, err = stringSetting(raw, keyName); err != nil {
		return Config{}, err
	}
	if cfg.BinaryPath, err = stringSetting(raw, keyBinaryPath); err != nil {
		return Config{}, err
	}
	if cfg.InputTemplate, err = stringSetting(raw, keyInputTemplate); err != nil {
		return Config{}, err
	}
	if cfg.VelocityScaling, err = floatSetting(raw, keyVelocityScaling); err != nil {
		return Config{}, err
	}
	if cfg.VelocityScaling <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than zero, got %g", keyVelocityScaling, cfg.VelocityScaling)
	}
	if v, ok := raw[keyCommandLineArgs]; ok {
		args, isString := v.(string)
		if !isString {
			return Config{}, fmt.Errorf("%s must be a string, got %T", keyCommandLineArgs, v)
		}
		cfg.CommandLineArgs = args
	}

	return cfg, nil
}

// New constructs the driver named by cfg. The name match is
// case-insensitive.
func New(cfg Config, cell *geometry.Cell, camp Campaign) (Driver, error) {
	switch strings.ToLower(cfg.Name) {
	case "generic":
		return newGeneric(cfg, camp)
	case "lammps":
		return newLAMMPS(cfg, cell, camp)
	case "gulp":
		return newGULP(cfg, cell, camp)
	default:
		return nil, fmt.Errorf("%w: %q (valid: generic, lammps, gulp)", ErrUnknownDriver, cfg.Name)
	}
}

// stringSetting reads a required string setting.
func stringSetting(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("driver setting %s is required", key)
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("driver setting %s must be a string, got %T", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("driver setting %s must not be empty", key)
	}
	return s, nil
}

// floatSetting reads a required numeric setting.
func floatSetting(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("driver setting %s is required", key)
	}
	f, isNumber := floatValue(v)
	if !isNumber {
		return 0, fmt.Errorf("driver setting %s must be a number, got %T", key, v)
	}
	return f, nil
}

// floatValue converts the numeric types the YAML decoder produces.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// formatFloat renders a float for templates and engine files without
// trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// templateValues renders every driver setting as a string for template
// substitution.
func templateValues(settings map[string]any) map[string]string {
	values := make(map[string]string, len(settings))
	for key, v := range settings {
		switch t := v.(type) {
		case string:
			values[key] = t
		case float64:
			values[key] = formatFloat(t)
		case float32:
			values[key] = formatFloat(float64(t))
		default:
			values[key] = fmt.Sprintf("%v", v)
		}
	}
	return values
}

// sortedKeys returns map keys in a stable order for error messages.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

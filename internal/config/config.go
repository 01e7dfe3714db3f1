// Package config provides settings loading for deposition campaigns.
// It supports loading from YAML files and environment variables, and
// validates everything eagerly so malformed campaigns fail before any
// simulation work begins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmtn/deposition-molecular-dynamics/internal/distributions"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
)

// Deposition types select what gets injected each iteration.
const (
	DepositionMonatomic = "monatomic"
	DepositionMolecule  = "molecule"
)

// Settings contains all configuration for a deposition campaign. YAML keys
// follow the historical wire names, units included, so existing campaign
// files load unchanged.
type Settings struct {
	// CommandPrefix is prepended to every simulation command, for MPI
	// launchers and the like (e.g. "mpirun -np 4").
	CommandPrefix string `yaml:"command_prefix"`

	// DepositionElement is the species injected by monatomic campaigns
	// and the species watched by the lower-interface check.
	DepositionElement string `yaml:"deposition_element"`

	// DepositionHeight is how far above the detected surface new
	// particles are placed, in Angstroms.
	DepositionHeight float64 `yaml:"deposition_height_Angstroms"`

	// DepositionTemperature is the temperature of newly added particles
	// in Kelvin.
	DepositionTemperature float64 `yaml:"deposition_temperature_Kelvin"`

	// DepositionTime is the duration of the deposition phase in
	// picoseconds.
	DepositionTime float64 `yaml:"deposition_time_picoseconds"`

	// DepositionType is "monatomic" or "molecule".
	DepositionType string `yaml:"deposition_type"`

	// DriverSettings configures the external simulation engine. The
	// "name" key selects the driver; remaining keys are driver-specific
	// and available to the input template.
	DriverSettings map[string]any `yaml:"driver_settings"`

	// DriverTimeout bounds each external engine invocation. Zero means
	// no timeout.
	DriverTimeout time.Duration `yaml:"driver_timeout"`

	// LogFilename is the campaign log file, appended across restarts.
	LogFilename string `yaml:"log_filename"`

	// LogLevel sets verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to events.jsonl; "trace" additionally
	// includes expanded subprocess commands and per-particle data.
	LogLevel string `yaml:"log_level"`

	// MaxSequentialFailures is the consecutive-failure budget. Exceeding
	// it terminates the campaign with a distinct exit status.
	MaxSequentialFailures int `yaml:"max_sequential_failures"`

	// MaxTotalIterations bounds the campaign.
	MaxTotalIterations int `yaml:"max_total_iterations"`

	// MinVelocity is the smallest allowed magnitude of the generated
	// z velocity, in metres per second.
	MinVelocity float64 `yaml:"min_velocity_metres_per_second"`

	// MoleculeXYZFile is the molecular geometry deposited by molecule
	// campaigns.
	MoleculeXYZFile string `yaml:"molecule_xyz_file"`

	// NumDepositedPerIteration is the number of insertion events per
	// iteration.
	NumDepositedPerIteration int `yaml:"num_deposited_per_iteration"`

	// PositionDistribution names the placement sampling strategy.
	PositionDistribution string `yaml:"position_distribution"`

	// PositionDistributionParameters are the strategy's parameters.
	PositionDistributionParameters []float64 `yaml:"position_distribution_parameters"`

	// Postprocessing configures the structural checks applied after the
	// deposition phase.
	Postprocessing Postprocessing `yaml:"postprocessing"`

	// RelaxationTime is the duration of the relaxation phase in
	// picoseconds.
	RelaxationTime float64 `yaml:"relaxation_time_picoseconds"`

	// SimulationCell defines the periodic cell.
	SimulationCell geometry.CellParams `yaml:"simulation_cell"`

	// StrictStructuralAnalysis escalates validation failures to fatal
	// errors instead of counting them against the failure budget.
	StrictStructuralAnalysis bool `yaml:"strict_structural_analysis"`

	// SubstrateXYZFile seeds the first iteration.
	SubstrateXYZFile string `yaml:"substrate_xyz_file"`

	// VelocityDistribution names the velocity sampling strategy.
	VelocityDistribution string `yaml:"velocity_distribution"`

	// VelocityDistributionParameters are the strategy's parameters.
	VelocityDistributionParameters []float64 `yaml:"velocity_distribution_parameters"`

	// Directories hold per-iteration working data and the archives.
	Directories Directories `yaml:"directories"`
}

// Directories names the campaign's filesystem layout. Paths are relative
// to the campaign root.
type Directories struct {
	// Working holds the in-progress iteration's engine inputs/outputs.
	Working string `yaml:"working"`

	// Success archives iterations that passed validation.
	Success string `yaml:"success"`

	// Failure archives iterations that failed validation.
	Failure string `yaml:"failure"`
}

// Postprocessing configures the structural checks. A check runs when its
// section is present.
type Postprocessing struct {
	NumNeighbours  *NumNeighboursSettings  `yaml:"num_neighbours"`
	LowerInterface *LowerInterfaceSettings `yaml:"lower_interface"`

	// ShiftToOrigin relocates the structure to the origin after the
	// checks pass.
	ShiftToOrigin bool `yaml:"shift_to_origin"`
}

// NumNeighboursSettings configures the minimum-neighbours check.
type NumNeighboursSettings struct {
	// MinNeighbours is the count at or below which a particle fails the
	// check. Counts include the particle itself.
	MinNeighbours int `yaml:"min_neighbours"`

	// BondingCutoff is the neighbour distance in Angstroms.
	BondingCutoff float64 `yaml:"bonding_distance_cutoff_Angstroms"`
}

// LowerInterfaceSettings configures the interface-bonding check.
type LowerInterfaceSettings struct {
	// BondingCutoff is the bonding distance in Angstroms.
	BondingCutoff float64 `yaml:"bonding_distance_cutoff_Angstroms"`
}

// Default postprocessing parameters, applied when a check section is
// present but a field is unset.
const (
	DefaultMinNeighbours = 1
	DefaultBondingCutoff = 4.0
)

// Default returns Settings with the defaults applied. Campaign-specific
// fields are left zero and caught by Validate.
func Default() *Settings {
	return &Settings{
		DepositionType:           DepositionMonatomic,
		LogFilename:              "deposition.log",
		LogLevel:                 "info",
		NumDepositedPerIteration: 1,
		Directories: Directories{
			Working: "current",
			Success: "iterations",
			Failure: "failed",
		},
	}
}

// Load reads settings from a YAML file, expands environment variables in
// path fields, and applies environment overrides. The result is not yet
// validated; call Validate before use.
func Load(path string) (*Settings, error) {
	settings, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadFromFile loads settings from a specific YAML file.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	settings := Default()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}

	// Expand environment variables in path fields
	settings.SubstrateXYZFile = expandEnvVars(settings.SubstrateXYZFile)
	settings.MoleculeXYZFile = expandEnvVars(settings.MoleculeXYZFile)
	settings.LogFilename = expandEnvVars(settings.LogFilename)

	if nn := settings.Postprocessing.NumNeighbours; nn != nil {
		if nn.MinNeighbours == 0 {
			nn.MinNeighbours = DefaultMinNeighbours
		}
		if nn.BondingCutoff == 0 {
			nn.BondingCutoff = DefaultBondingCutoff
		}
	}
	if li := settings.Postprocessing.LowerInterface; li != nil {
		if li.BondingCutoff == 0 {
			li.BondingCutoff = DefaultBondingCutoff
		}
	}

	return settings, nil
}

// Validate checks that the settings describe a runnable campaign.
func (s *Settings) Validate() error {
	for _, check := range []struct {
		name  string
		value float64
	}{
		{"deposition_height_Angstroms", s.DepositionHeight},
		{"deposition_temperature_Kelvin", s.DepositionTemperature},
		{"deposition_time_picoseconds", s.DepositionTime},
		{"relaxation_time_picoseconds", s.RelaxationTime},
		{"min_velocity_metres_per_second", s.MinVelocity},
		{"max_sequential_failures", float64(s.MaxSequentialFailures)},
		{"max_total_iterations", float64(s.MaxTotalIterations)},
		{"num_deposited_per_iteration", float64(s.NumDepositedPerIteration)},
	} {
		if check.value <= 0 {
			return fmt.Errorf("%s must be greater than zero, got %g", check.name, check.value)
		}
	}

	switch s.DepositionType {
	case DepositionMonatomic:
		if s.DepositionElement == "" {
			return fmt.Errorf("deposition_element required for %s deposition", s.DepositionType)
		}
	case DepositionMolecule:
		if s.MoleculeXYZFile == "" {
			return fmt.Errorf("molecule_xyz_file required for %s deposition", s.DepositionType)
		}
		if _, err := os.Stat(s.MoleculeXYZFile); err != nil {
			return fmt.Errorf("molecule_xyz_file: %w", err)
		}
	default:
		return fmt.Errorf("deposition_type must be one of: %s, %s; got %q",
			DepositionMonatomic, DepositionMolecule, s.DepositionType)
	}

	if s.SubstrateXYZFile == "" {
		return fmt.Errorf("substrate_xyz_file is required")
	}
	if _, err := os.Stat(s.SubstrateXYZFile); err != nil {
		return fmt.Errorf("substrate_xyz_file: %w", err)
	}

	if _, err := geometry.NewCell(s.SimulationCell); err != nil {
		return fmt.Errorf("simulation_cell: %w", err)
	}

	// Construct the distributions against a placeholder polygon so bad
	// kinds and parameter counts fail here, not at first sample.
	positionKind, err := distributions.ParsePositionKind(s.PositionDistribution)
	if err != nil {
		return fmt.Errorf("position_distribution: %w", err)
	}
	if _, err := distributions.NewPosition(positionKind, s.PositionDistributionParameters, nil, 0); err != nil {
		return fmt.Errorf("position_distribution_parameters: %w", err)
	}
	velocityKind, err := distributions.ParseVelocityKind(s.VelocityDistribution)
	if err != nil {
		return fmt.Errorf("velocity_distribution: %w", err)
	}
	if _, err := distributions.NewVelocity(velocityKind, s.VelocityDistributionParameters); err != nil {
		return fmt.Errorf("velocity_distribution_parameters: %w", err)
	}

	if nn := s.Postprocessing.NumNeighbours; nn != nil {
		if nn.MinNeighbours < 0 {
			return fmt.Errorf("postprocessing.num_neighbours.min_neighbours must not be negative, got %d", nn.MinNeighbours)
		}
		if nn.BondingCutoff < 0 {
			return fmt.Errorf("postprocessing.num_neighbours.bonding_distance_cutoff_Angstroms must not be negative, got %g", nn.BondingCutoff)
		}
	}
	if li := s.Postprocessing.LowerInterface; li != nil {
		if li.BondingCutoff < 0 {
			return fmt.Errorf("postprocessing.lower_interface.bonding_distance_cutoff_Angstroms must not be negative, got %g", li.BondingCutoff)
		}
		if s.DepositionElement == "" {
			return fmt.Errorf("postprocessing.lower_interface requires deposition_element")
		}
	}

	if s.DriverTimeout < 0 {
		return fmt.Errorf("driver_timeout must be non-negative, got %v", s.DriverTimeout)
	}

	if len(s.DriverSettings) == 0 {
		return fmt.Errorf("driver_settings is required")
	}
	if _, ok := s.DriverSettings["name"]; !ok {
		return fmt.Errorf("driver_settings.name is required")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if s.LogLevel != "" && !validLevels[s.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (valid: info, debug, trace, or empty for default)", s.LogLevel)
	}

	for _, dir := range []struct{ name, value string }{
		{"working", s.Directories.Working},
		{"success", s.Directories.Success},
		{"failure", s.Directories.Failure},
	} {
		if dir.value == "" {
			return fmt.Errorf("directories.%s must not be empty", dir.name)
		}
	}
	if s.Directories.Working == s.Directories.Success ||
		s.Directories.Working == s.Directories.Failure ||
		s.Directories.Success == s.Directories.Failure {
		return fmt.Errorf("directories must be distinct, got %q, %q, %q",
			s.Directories.Working, s.Directories.Success, s.Directories.Failure)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// settings. A value that does not parse is an error rather than a
// silently ignored override.
func applyEnvOverrides(settings *Settings) error {
	if v := os.Getenv("DEPOSITION_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}

	if v := os.Getenv("DEPOSITION_COMMAND_PREFIX"); v != "" {
		settings.CommandPrefix = v
	}

	if v := os.Getenv("DEPOSITION_DRIVER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DEPOSITION_DRIVER_TIMEOUT: %w", err)
		}
		settings.DriverTimeout = d
	}

	if v := os.Getenv("DEPOSITION_MAX_TOTAL_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEPOSITION_MAX_TOTAL_ITERATIONS: %w", err)
		}
		settings.MaxTotalIterations = n
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterSettings = `# Deposition campaign settings.
#
# A campaign grows a structure by repeated deposition iterations: inject
# new particles above the surface, run a deposition and a relaxation
# phase through the external engine, validate the result. Failed
# iterations retry from the last good structure until the budgets below
# are spent.

# What gets deposited: single atoms of deposition_element, or copies of
# a molecule read from an XYZ file.
deposition_type: monatomic
deposition_element: Cu
# molecule_xyz_file: molecule.xyz

# Insertions per iteration, how far above the detected surface they
# start, and the temperature their velocities are drawn at.
num_deposited_per_iteration: 1
deposition_height_Angstroms: 10.0
deposition_temperature_Kelvin: 300.0

# Phase durations handed to the engine.
deposition_time_picoseconds: 2.0
relaxation_time_picoseconds: 10.0

# Budgets. The campaign completes after max_total_iterations; it is
# abandoned when max_sequential_failures consecutive iterations fail.
max_total_iterations: 100
max_sequential_failures: 5

# Structure the first iteration starts from.
substrate_xyz_file: substrate.xyz

# Periodic simulation cell, in Angstroms and degrees.
simulation_cell:
  a: 20.0
  b: 20.0
  c: 80.0
  alpha: 90.0
  beta: 90.0
  gamma: 90.0

# Placement on the injection plane: uniform takes no parameters, fixed
# takes [x, y].
position_distribution: uniform
position_distribution_parameters: []

# Velocity sampling, in metres per second: gaussian takes [temperature
# in Kelvin, particle mass in kg, mean], fixed takes [vx, vy, vz]. The
# z component always points down; its magnitude is resampled until it
# exceeds min_velocity_metres_per_second.
velocity_distribution: gaussian
velocity_distribution_parameters: [300.0, 1.055e-25, 0.0]
min_velocity_metres_per_second: 10.0

# Structural checks applied after the deposition phase. A check runs
# when its section is present.
postprocessing:
  num_neighbours:
    min_neighbours: 1
    bonding_distance_cutoff_Angstroms: 4.0
  # lower_interface:
  #   bonding_distance_cutoff_Angstroms: 4.0
  shift_to_origin: false

# Escalate validation failures to fatal errors instead of counting them
# against the failure budget.
strict_structural_analysis: false

# The external engine. name selects the driver (generic, lammps, gulp);
# the remaining keys are driver-specific and available to the input
# template as ${key} references. The lammps values below assume metal
# units: velocities in Angstroms/ps, a 0.001 ps timestep.
driver_settings:
  name: lammps
  path_to_binary: /usr/bin/lmp
  path_to_input_template: in.deposition.template
  velocity_scaling_from_metres_per_second: 0.01
  atomic_masses: [63.546]
  elements_in_potential: "Cu"
  timestep_scaling_from_picoseconds: 1000.0
  # command_line_args: "-sf omp"

# Prefix for engine commands, e.g. an MPI launcher.
# command_prefix: mpirun -np 4

# Abort an engine invocation that runs longer than this. Unset means no
# limit.
# driver_timeout: 2h

# Logging: info, debug or trace. debug adds events.jsonl in the
# campaign root; trace adds expanded commands and per-particle detail.
log_filename: deposition.log
log_level: info
`

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter settings.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat("settings.yaml"); err == nil {
					return fmt.Errorf("settings.yaml already exists (use --force to overwrite)")
				}
			}

			if err := os.WriteFile("settings.yaml", []byte(starterSettings), 0644); err != nil {
				return fmt.Errorf("writing settings.yaml: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "created",
					"path":   "settings.yaml",
				})
			}
			fmt.Fprintln(out, "Created settings.yaml")
			fmt.Fprintln(out, "Edit it for your campaign, then validate with 'deposition check'.")
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing settings.yaml")

	return cmd
}

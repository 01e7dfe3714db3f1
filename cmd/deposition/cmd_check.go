package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/driver"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate campaign settings without running anything",
		Long: `Validate campaign settings without running anything.

Everything a campaign would reject at startup is checked here: setting
values, referenced files, the simulation cell, driver construction and
the input template's key references. Template placeholders the settings
never satisfy are errors; settings the template never uses are warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath, _ := cmd.Flags().GetString("settings")
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			warnings, err := checkSettings(settingsPath)
			if err != nil {
				return err
			}

			if jsonOut {
				if warnings == nil {
					warnings = []string{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"ok":       true,
					"settings": settingsPath,
					"warnings": warnings,
				})
			}

			for _, warning := range warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			fmt.Fprintf(out, "%s: ok\n", settingsPath)
			return nil
		},
	}

	cmd.Flags().String("settings", "settings.yaml", "Campaign settings file")

	return cmd
}

// checkSettings runs the full startup validation chain: load, validate,
// construct the driver and check its template against the settings.
func checkSettings(settingsPath string) ([]string, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cell, err := geometry.NewCell(settings.SimulationCell)
	if err != nil {
		return nil, err
	}
	dcfg, err := driver.ParseConfig(settings.DriverSettings)
	if err != nil {
		return nil, err
	}
	drv, err := driver.New(dcfg, cell, driver.Campaign{
		RelaxationTimePS: settings.RelaxationTime,
		DepositionTimePS: settings.DepositionTime,
		TemperatureK:     settings.DepositionTemperature,
	})
	if err != nil {
		return nil, err
	}

	return driver.CheckTemplate(drv, dcfg)
}

package simulation

import (
	"context"
	"os"
	"slices"
	"testing"

	"github.com/mmtn/deposition-molecular-dynamics/internal/campaign"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/driver"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
	"github.com/mmtn/deposition-molecular-dynamics/internal/status"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// Runner executes scenarios in an isolated campaign root.
type Runner struct {
	t    *testing.T
	root string
}

// NewRunner creates a runner whose campaign root is a fresh temporary
// directory. The process working directory moves there for the duration
// of the test, matching how the controller resolves campaign paths.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)
	return &Runner{t: t, root: root}
}

// Root returns the campaign root directory.
func (r *Runner) Root() string { return r.root }

// Run executes the scenario through the real controller wiring and
// collects what it left behind. Calling Run again on the same runner
// restarts the campaign in the same root, which is how resume scenarios
// are written.
func (r *Runner) Run(scenario Scenario) CampaignResult {
	r.t.Helper()

	substrate := scenario.Substrate
	if substrate == nil {
		substrate = DefaultSubstrate()
	}
	r.writeSubstrate(substrate)
	r.writeTemplate()

	settings := r.settings()
	if scenario.Configure != nil {
		scenario.Configure(settings)
	}

	dcfg, err := driver.ParseConfig(settings.DriverSettings)
	if err != nil {
		r.t.Fatalf("%s: ParseConfig() error = %v", scenario.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := newScriptedEngine(scenario.Script, dcfg.VelocityScaling, cancel)

	ledg, err := ledger.OpenSQLite(ledger.DBFileName)
	if err != nil {
		r.t.Fatalf("%s: OpenSQLite() error = %v", scenario.Name, err)
	}

	controller, err := campaign.NewWithEngine(settings, "settings.yaml", eng, dcfg, eng, ledg)
	if err != nil {
		ledg.Close()
		r.t.Fatalf("%s: NewWithEngine() error = %v", scenario.Name, err)
	}
	defer controller.Close()

	logFile, err := os.OpenFile("campaign.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.t.Fatalf("%s: opening campaign log: %v", scenario.Name, err)
	}
	defer logFile.Close()
	events := logging.NewEventLogger(".", "debug")
	defer events.Close()
	controller.SetLogger(logging.NewLogger("debug", logFile), events)

	if err := controller.Setup(); err != nil {
		return CampaignResult{SetupErr: err, Status: r.loadStatus()}
	}

	outcome, runErr := controller.Run(ctx)

	result := CampaignResult{
		Outcome: outcome,
		Err:     runErr,
		Status:  r.loadStatus(),
	}

	records, err := ledg.List(context.Background(), 0)
	if err != nil {
		r.t.Fatalf("%s: ledger List() error = %v", scenario.Name, err)
	}
	slices.Reverse(records)
	result.Records = records

	summary, err := ledg.Summary(context.Background())
	if err != nil {
		r.t.Fatalf("%s: ledger Summary() error = %v", scenario.Name, err)
	}
	result.Summary = summary

	return result
}

func (r *Runner) writeSubstrate(s *structure.State) {
	r.t.Helper()
	f, err := os.Create("substrate.xyz")
	if err != nil {
		r.t.Fatalf("writing substrate: %v", err)
	}
	defer f.Close()
	if err := structure.WriteXYZ(f, s, "substrate"); err != nil {
		r.t.Fatalf("writing substrate: %v", err)
	}
}

func (r *Runner) writeTemplate() {
	r.t.Helper()
	template := "run ${filename} for ${simulation_time_picoseconds} ps\n"
	if err := os.WriteFile("template.txt", []byte(template), 0o644); err != nil {
		r.t.Fatalf("writing template: %v", err)
	}
}

// settings builds the harness defaults: a small orthogonal cell, fixed
// injection distributions aimed straight down, three iterations and a
// neighbour check tight enough that a scattered particle fails it.
func (r *Runner) settings() *config.Settings {
	settings := config.Default()
	settings.DepositionElement = "Ar"
	settings.DepositionHeight = 10
	settings.DepositionTemperature = 300
	settings.DepositionTime = 2
	settings.RelaxationTime = 10
	settings.MaxSequentialFailures = 2
	settings.MaxTotalIterations = 3
	settings.MinVelocity = 10
	settings.PositionDistribution = "fixed"
	settings.PositionDistributionParameters = []float64{5, 5}
	settings.VelocityDistribution = "fixed"
	settings.VelocityDistributionParameters = []float64{0, 0, -200}
	settings.SimulationCell = geometry.CellParams{A: 10, B: 10, C: 100, Alpha: 90, Beta: 90, Gamma: 90}
	settings.SubstrateXYZFile = "substrate.xyz"
	settings.Postprocessing.NumNeighbours = &config.NumNeighboursSettings{MinNeighbours: 1, BondingCutoff: 1.5}
	settings.DriverSettings = map[string]any{
		"name":                   "scripted",
		"path_to_binary":         "/usr/bin/md-engine",
		"path_to_input_template": "template.txt",
		"velocity_scaling_from_metres_per_second": 0.01,
	}
	return settings
}

func (r *Runner) loadStatus() *status.Status {
	r.t.Helper()
	if !status.Exists(status.FileName) {
		return nil
	}
	st, err := status.Load(status.FileName)
	if err != nil {
		r.t.Fatalf("loading checkpoint: %v", err)
	}
	return st
}

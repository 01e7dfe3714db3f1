// Package campaign drives a whole deposition campaign: directory setup,
// the checkpointed iteration loop, failure budgets and the history
// ledger.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmtn/deposition-molecular-dynamics/internal/analysis"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/driver"
	"github.com/mmtn/deposition-molecular-dynamics/internal/engine"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/inject"
	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
	"github.com/mmtn/deposition-molecular-dynamics/internal/status"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// InitialSnapshotFile seeds the first iteration from the substrate.
const InitialSnapshotFile = "initial_positions.json"

// Outcome is how a campaign ended without a fatal error.
type Outcome int

const (
	// OutcomeComplete means the configured number of iterations ran.
	OutcomeComplete Outcome = iota
	// OutcomeFailureBudget means too many sequential failures.
	OutcomeFailureBudget
)

func (o Outcome) String() string {
	if o == OutcomeFailureBudget {
		return "failure budget exhausted"
	}
	return "complete"
}

// Controller owns one campaign. All paths are relative to the campaign
// root, which is the working directory of the process.
type Controller struct {
	settings     *config.Settings
	settingsPath string
	cell         *geometry.Cell
	drv          driver.Driver
	dcfg         driver.Config
	runner       engine.Runner
	injector     *inject.Injector
	validator    *analysis.Validator
	eng          *engine.Engine
	ledg         ledger.Ledger
	status       *status.Status
	runID        string
	logger       *slog.Logger
	events       *logging.EventLogger
}

// New wires up a controller from validated settings. The ledger database
// is opened (and created if needed) in the campaign root.
func New(settings *config.Settings, settingsPath string) (*Controller, error) {
	cell, err := geometry.NewCell(settings.SimulationCell)
	if err != nil {
		return nil, err
	}

	dcfg, err := driver.ParseConfig(settings.DriverSettings)
	if err != nil {
		return nil, err
	}
	camp := driver.Campaign{
		RelaxationTimePS: settings.RelaxationTime,
		DepositionTimePS: settings.DepositionTime,
		TemperatureK:     settings.DepositionTemperature,
	}
	drv, err := driver.New(dcfg, cell, camp)
	if err != nil {
		return nil, err
	}

	ledg, err := ledger.OpenSQLite(ledger.DBFileName)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	runner := driver.NewRunner(settings.CommandPrefix, settings.DriverTimeout)
	return NewWithEngine(settings, settingsPath, drv, dcfg, runner, ledg)
}

// NewWithEngine wires a controller around a prebuilt driver, runner and
// ledger. The scenario tests script engines through this entry point;
// production goes through New.
func NewWithEngine(settings *config.Settings, settingsPath string, drv driver.Driver, dcfg driver.Config, runner engine.Runner, ledg ledger.Ledger) (*Controller, error) {
	cell, err := geometry.NewCell(settings.SimulationCell)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	injector := inject.New(settings, cell, drv.VelocityScaling(), rng)
	validator := analysis.NewValidator(settings.Postprocessing, settings.DepositionElement, cell)
	eng := engine.New(settings.Directories, drv, dcfg, runner, injector, validator)

	return &Controller{
		settings:     settings,
		settingsPath: settingsPath,
		cell:         cell,
		drv:          drv,
		dcfg:         dcfg,
		runner:       runner,
		injector:     injector,
		validator:    validator,
		eng:          eng,
		ledg:         ledg,
		runID:        uuid.NewString(),
	}, nil
}

// SetLogger attaches loggers to the controller and every collaborator.
func (c *Controller) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	c.logger = logger
	c.events = events
	if r, ok := c.runner.(interface {
		SetLogger(*slog.Logger, *logging.EventLogger)
	}); ok {
		r.SetLogger(logger, events)
	}
	c.injector.SetLogger(logger, events)
	c.validator.SetLogger(logger, events)
	c.eng.SetLogger(logger, events)
}

// Close releases the ledger.
func (c *Controller) Close() error {
	return c.ledg.Close()
}

// Setup prepares the campaign root. A fresh campaign creates the
// directories and the initial snapshot; an existing status.yaml resumes
// from its checkpoint. A non-empty working directory alongside a status
// file means a previous run died mid-iteration, which is not resumable.
func (c *Controller) Setup() error {
	warnings, err := driver.CheckTemplate(c.drv, c.dcfg)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		if c.logger != nil {
			c.logger.Warn(warning)
		}
	}

	if status.Exists(status.FileName) {
		return c.resume()
	}
	return c.initialise()
}

func (c *Controller) initialise() error {
	dirs := c.directories()

	var existing []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			if c.logger != nil {
				c.logger.Warn("directory already exists", "path", dir)
			}
			existing = append(existing, dir)
		}
	}
	if len(existing) > 0 {
		return fmt.Errorf("directories already exist (remove them to start a fresh campaign): %s",
			strings.Join(existing, ", "))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	substrate, err := structure.ReadXYZ(c.settings.SubstrateXYZFile, structure.LastFrame)
	if err != nil {
		return fmt.Errorf("reading substrate: %w", err)
	}
	if err := structure.SaveSnapshot(InitialSnapshotFile, substrate, false); err != nil {
		return err
	}

	c.status = status.New(InitialSnapshotFile)
	if err := c.status.Save(status.FileName); err != nil {
		return err
	}

	if c.logger != nil {
		c.logger.Info("campaign initialised",
			"substrate", c.settings.SubstrateXYZFile,
			"particles", substrate.Len(),
			"max_iterations", c.settings.MaxTotalIterations)
	}
	return nil
}

func (c *Controller) resume() error {
	for _, dir := range c.directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	entries, err := os.ReadDir(c.settings.Directories.Working)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s holds %d files from an iteration that never finished: clear %s and restart",
			c.settings.Directories.Working, len(entries), c.settings.Directories.Working)
	}

	st, err := status.Load(status.FileName)
	if err != nil {
		return err
	}
	if _, err := os.Stat(st.StateReference); err != nil {
		return fmt.Errorf("checkpoint references missing state %s: %w", st.StateReference, err)
	}
	c.status = st

	if c.logger != nil {
		c.logger.Info("campaign resumed",
			"iteration", st.IterationNumber,
			"sequential_failures", st.SequentialFailures,
			"total_failures", st.TotalFailures,
			"state", st.StateReference)
	}
	return nil
}

// Run executes iterations until a terminal condition. Fatal problems
// return an error; the checkpoint already on disk lets a later run
// resume.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if c.status == nil {
		return 0, errors.New("campaign is not set up")
	}

	if err := c.ledg.AddRun(ctx, ledger.Run{
		ID:           c.runID,
		SettingsPath: c.settingsPath,
		StartedAt:    time.Now().UTC(),
	}); err != nil && c.logger != nil {
		c.logger.Warn("recording run in ledger", "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("campaign interrupted: %w", err)
		}

		// Terminal conditions are checked before starting an iteration,
		// so a controller resumed past either budget stops without
		// running anything.
		if c.status.IterationNumber > c.settings.MaxTotalIterations {
			if c.logger != nil {
				c.logger.Info("campaign complete",
					"iterations", c.settings.MaxTotalIterations,
					"total_failures", c.status.TotalFailures)
			}
			return OutcomeComplete, nil
		}
		if c.status.SequentialFailures > c.settings.MaxSequentialFailures {
			if c.logger != nil {
				c.logger.Error("failure budget exhausted",
					"sequential_failures", c.status.SequentialFailures,
					"budget", c.settings.MaxSequentialFailures)
			}
			return OutcomeFailureBudget, nil
		}

		number := c.status.IterationNumber
		if c.logger != nil {
			c.logger.Info("starting iteration",
				"iteration", number,
				"state", c.status.StateReference)
		}

		started := time.Now().UTC()
		result, err := c.eng.Run(ctx, number, c.status.StateReference)
		if err != nil {
			return 0, err
		}

		if result.Accepted {
			c.status.RecordSuccess(result.StatePath)
		} else {
			c.status.RecordFailure()
		}
		if err := c.status.Save(status.FileName); err != nil {
			return 0, err
		}

		c.record(ctx, number, started, result)

		if !result.Accepted && c.settings.StrictStructuralAnalysis {
			return 0, fmt.Errorf("strict structural analysis: %w", result.Failure)
		}
	}
}

// record adds one iteration to the ledger. History is advisory: a
// ledger problem must not abort a healthy campaign.
func (c *Controller) record(ctx context.Context, number int, started time.Time, result engine.Result) {
	rec := ledger.Record{
		Iteration:   number,
		RunID:       c.runID,
		Outcome:     ledger.OutcomeSuccess,
		Particles:   result.Particles,
		StatePath:   result.StatePath,
		ArchivePath: result.ArchivePath,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}
	if !result.Accepted {
		rec.Outcome = ledger.OutcomeFailure
		rec.Reason = result.Failure.Error()
	}
	if err := c.ledg.Add(ctx, rec); err != nil && c.logger != nil {
		c.logger.Warn("recording iteration in ledger", "iteration", number, "error", err)
	}
}

func (c *Controller) directories() []string {
	return []string{
		c.settings.Directories.Working,
		c.settings.Directories.Success,
		c.settings.Directories.Failure,
	}
}

// Package engine runs one deposition iteration end to end: relax the
// current structure, inject new particles, deposit them, validate the
// result and archive the iteration's working files.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mmtn/deposition-molecular-dynamics/internal/analysis"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/driver"
	"github.com/mmtn/deposition-molecular-dynamics/internal/inject"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// Runner abstracts engine invocation so iterations can be exercised
// without a subprocess.
type Runner interface {
	Run(ctx context.Context, d driver.Driver, cfg driver.Config, pathPrefix string) error
}

// Result reports one finished iteration. Failure is set when the
// structure was rejected by analysis; any other problem surfaces as an
// error from Run instead.
type Result struct {
	Accepted bool
	Failure  *analysis.Failure

	// StatePath is the archived snapshot the next iteration should
	// start from. Only set for accepted iterations.
	StatePath string

	// ArchivePath is where this iteration's working files went.
	ArchivePath string

	// Particles is the size of the final structure.
	Particles int
}

// Engine holds the per-campaign collaborators shared by every
// iteration.
type Engine struct {
	dirs      config.Directories
	drv       driver.Driver
	cfg       driver.Config
	runner    Runner
	injector  *inject.Injector
	validator *analysis.Validator
	logger    *slog.Logger
	events    *logging.EventLogger
}

func New(dirs config.Directories, drv driver.Driver, cfg driver.Config, runner Runner, injector *inject.Injector, validator *analysis.Validator) *Engine {
	return &Engine{
		dirs:      dirs,
		drv:       drv,
		cfg:       cfg,
		runner:    runner,
		injector:  injector,
		validator: validator,
	}
}

// SetLogger attaches loggers for iteration diagnostics.
func (e *Engine) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	e.logger = logger
	e.events = events
}

// Run performs iteration number starting from the snapshot at
// statePath. A rejected structure is a normal Result; an error means
// the campaign cannot safely continue and the working directory is left
// in place for inspection.
func (e *Engine) Run(ctx context.Context, number int, statePath string) (Result, error) {
	state, err := structure.LoadSnapshot(statePath)
	if err != nil {
		return Result{}, fmt.Errorf("iteration %d: %w", number, err)
	}

	relaxed, err := e.phase(ctx, driver.PhaseRelaxation, number, state)
	if err != nil {
		return Result{}, fmt.Errorf("iteration %d: %w", number, err)
	}

	injected, err := e.injector.Run(relaxed)
	if err != nil {
		return Result{}, fmt.Errorf("iteration %d: injecting particles: %w", number, err)
	}

	final, err := e.phase(ctx, driver.PhaseDeposition, number, injected)
	if err != nil {
		return Result{}, fmt.Errorf("iteration %d: %w", number, err)
	}

	normalized, err := e.validator.Run(final)
	var failure *analysis.Failure
	if err != nil {
		if !errors.As(err, &failure) {
			return Result{}, fmt.Errorf("iteration %d: %w", number, err)
		}
		if e.logger != nil {
			e.logger.Info("structure rejected", "iteration", number, "check", failure.Check, "reason", failure.Reason)
		}
	}

	result := Result{
		Accepted:  failure == nil,
		Failure:   failure,
		Particles: final.Len(),
	}

	// The snapshot is written even for rejected structures so the
	// failure archive carries the structure for post-mortem; only an
	// accepted snapshot becomes the next iteration's state.
	snapshotName := fmt.Sprintf("deposition%03d.json", number)
	snapshotState := normalized
	if !result.Accepted {
		snapshotState = final
	}
	if err := structure.SaveSnapshot(filepath.Join(e.dirs.Working, snapshotName), snapshotState, false); err != nil {
		return Result{}, fmt.Errorf("iteration %d: %w", number, err)
	}
	if result.Accepted {
		result.ArchivePath = filepath.Join(e.dirs.Success, fmt.Sprintf("%03d", number))
		result.StatePath = filepath.Join(result.ArchivePath, snapshotName)
	} else {
		result.ArchivePath = filepath.Join(e.dirs.Failure, fmt.Sprintf("%03d", number))
	}

	if err := archiveWorkingDir(e.dirs.Working, result.ArchivePath); err != nil {
		return Result{}, fmt.Errorf("iteration %d: %w", number, err)
	}

	if e.events != nil {
		e.events.Log(map[string]any{
			"event":     "iteration_complete",
			"iteration": number,
			"accepted":  result.Accepted,
			"particles": result.Particles,
			"archive":   result.ArchivePath,
		})
	}
	if e.logger != nil {
		e.logger.Info("iteration complete",
			"iteration", number,
			"accepted", result.Accepted,
			"particles", result.Particles)
	}
	return result, nil
}

// phase writes inputs, runs the engine and reads its outputs for one
// simulation stage.
func (e *Engine) phase(ctx context.Context, phase driver.Phase, number int, state *structure.State) (*structure.State, error) {
	prefix := filepath.Join(e.dirs.Working, fmt.Sprintf("%s%03d", phase, number))

	if err := e.drv.WriteInputs(prefix, state, phase); err != nil {
		return nil, fmt.Errorf("%s phase: %w", phase, err)
	}
	if err := e.runner.Run(ctx, e.drv, e.cfg, prefix); err != nil {
		return nil, fmt.Errorf("%s phase: %w", phase, err)
	}
	out, err := e.drv.ReadOutputs(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s phase: %w", phase, err)
	}
	if e.logger != nil {
		e.logger.Debug("phase finished", "phase", string(phase), "iteration", number, "particles", out.Len())
	}
	return out, nil
}

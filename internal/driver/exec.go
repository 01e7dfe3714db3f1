package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
)

// ErrTimeout means an engine run was killed after exceeding the
// configured driver timeout.
var ErrTimeout = errors.New("engine timed out")

// Runner invokes an engine subprocess through the shell, so command
// prefixes like "mpirun -np 4" work unchanged.
type Runner struct {
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	events  *logging.EventLogger
}

// NewRunner returns a runner with the given command prefix. A zero
// timeout disables the per-run deadline.
func NewRunner(commandPrefix string, timeout time.Duration) *Runner {
	return &Runner{prefix: commandPrefix, timeout: timeout}
}

// SetLogger attaches loggers for engine run diagnostics.
func (r *Runner) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	r.logger = logger
	r.events = events
}

// Run executes one engine invocation for the files under pathPrefix.
// Engine stdout goes to <prefix>.output via the command template's
// redirection; stderr is captured for error reporting.
func (r *Runner) Run(ctx context.Context, d Driver, cfg Config, pathPrefix string) error {
	values := map[string]string{
		"prefix":      r.prefix,
		"binary":      cfg.BinaryPath,
		"arguments":   cfg.CommandLineArgs,
		"input_file":  pathPrefix + ".input",
		"output_file": pathPrefix + ".output",
	}
	command, err := ExpandTemplate(d.CommandTemplate(), values)
	if err != nil {
		return fmt.Errorf("expanding command template: %w", err)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), d.Environ()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if r.logger != nil {
		r.logger.Debug("starting engine", "driver", d.Name(), "prefix", pathPrefix)
		r.logger.Log(ctx, logging.LevelTrace, "engine command", "command", command)
	}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if r.events != nil {
		r.events.Log(map[string]any{
			"event":      "engine_run",
			"driver":     d.Name(),
			"prefix":     pathPrefix,
			"elapsed_ms": elapsed.Milliseconds(),
			"ok":         runErr == nil,
		})
	}

	if runErr == nil {
		if r.logger != nil {
			r.logger.Debug("engine finished", "driver", d.Name(), "prefix", pathPrefix, "elapsed", elapsed)
		}
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %v: %s", ErrTimeout, r.timeout, command)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("engine interrupted: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		if msg := stderrTail(stderr.Bytes()); msg != "" {
			return fmt.Errorf("engine exited with code %d: %s: %s", exitErr.ExitCode(), command, msg)
		}
		return fmt.Errorf("engine exited with code %d: %s", exitErr.ExitCode(), command)
	}
	return fmt.Errorf("running engine: %w", runErr)
}

// stderrTail trims engine stderr to a size fit for an error message.
func stderrTail(b []byte) string {
	const limit = 1024
	b = bytes.TrimSpace(b)
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}

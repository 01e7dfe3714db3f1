package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// fakeEngine lets runner tests swap in arbitrary shell commands.
type fakeEngine struct {
	command string
	environ []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) CommandTemplate() string { return f.command }

func (f *fakeEngine) VelocityScaling() float64 { return 1 }

func (f *fakeEngine) TemplateSpec() TemplateSpec { return TemplateSpec{} }

func (f *fakeEngine) Environ() []string { return f.environ }

func (f *fakeEngine) WriteInputs(string, *structure.State, Phase) error { return nil }

func (f *fakeEngine) ReadOutputs(string) (*structure.State, error) { return nil, nil }

func runnerPrefix(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "relaxation001")
}

func TestRunnerRunsCommand(t *testing.T) {
	prefix := runnerPrefix(t)
	if err := os.WriteFile(prefix+".input", []byte("engine input\n"), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	engine := &fakeEngine{command: "${prefix} ${binary} ${arguments} < ${input_file} > ${output_file}"}
	cfg := Config{BinaryPath: "cat"}

	r := NewRunner("", 0)
	if err := r.Run(context.Background(), engine, cfg, prefix); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := os.ReadFile(prefix + ".output")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(out) != "engine input\n" {
		t.Errorf("expected output to mirror input, got %q", out)
	}
}

func TestRunnerEngineFailure(t *testing.T) {
	engine := &fakeEngine{command: "${binary} ${arguments}"}
	cfg := Config{BinaryPath: "sh", CommandLineArgs: `-c "echo engine blew up >&2; exit 3"`}

	err := NewRunner("", 0).Run(context.Background(), engine, cfg, runnerPrefix(t))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "code 3") {
		t.Errorf("expected exit code in error, got %q", err)
	}
	if !strings.Contains(err.Error(), "engine blew up") {
		t.Errorf("expected stderr in error, got %q", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	engine := &fakeEngine{command: "${binary} ${arguments}"}
	cfg := Config{BinaryPath: "sleep", CommandLineArgs: "10"}

	start := time.Now()
	err := NewRunner("", 100*time.Millisecond).Run(context.Background(), engine, cfg, runnerPrefix(t))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v, expected prompt kill", elapsed)
	}
}

func TestRunnerContextCancelled(t *testing.T) {
	engine := &fakeEngine{command: "${binary} ${arguments}"}
	cfg := Config{BinaryPath: "sleep", CommandLineArgs: "10"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := NewRunner("", time.Minute).Run(ctx, engine, cfg, runnerPrefix(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerEnviron(t *testing.T) {
	prefix := runnerPrefix(t)
	engine := &fakeEngine{
		command: "${binary} ${arguments} > ${output_file}",
		environ: []string{"DEPOSITION_ENGINE_LIB=/opt/engine/lib"},
	}
	cfg := Config{BinaryPath: "sh", CommandLineArgs: `-c "echo $DEPOSITION_ENGINE_LIB"`}

	if err := NewRunner("", 0).Run(context.Background(), engine, cfg, prefix); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := os.ReadFile(prefix + ".output")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if strings.TrimSpace(string(out)) != "/opt/engine/lib" {
		t.Errorf("expected driver environment to reach the engine, got %q", out)
	}
}

func TestRunnerCommandPrefix(t *testing.T) {
	prefix := runnerPrefix(t)
	engine := &fakeEngine{command: "${prefix} ${binary} ${arguments} > ${output_file}"}
	cfg := Config{BinaryPath: "prefix", CommandLineArgs: "reached"}

	// echo stands in for mpirun: the prefix wraps the whole command.
	if err := NewRunner("echo", 0).Run(context.Background(), engine, cfg, prefix); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := os.ReadFile(prefix + ".output")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if strings.TrimSpace(string(out)) != "prefix reached" {
		t.Errorf("expected prefix to wrap the command, got %q", out)
	}
}

func TestRunnerBadCommandTemplate(t *testing.T) {
	engine := &fakeEngine{command: "${binary} ${bogus_key}"}

	err := NewRunner("", 0).Run(context.Background(), engine, Config{BinaryPath: "true"}, runnerPrefix(t))
	if !errors.Is(err, ErrTemplateSyntax) {
		t.Errorf("expected ErrTemplateSyntax, got %v", err)
	}
}

package driver

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandTemplate(t *testing.T) {
	values := map[string]string{"filename": "current/relaxation001", "steps": "5000"}

	got, err := ExpandTemplate("read ${filename}.input\nrun $steps of ${steps}\n", values)
	if err != nil {
		t.Fatalf("ExpandTemplate() error = %v", err)
	}
	want := "read current/relaxation001.input\nrun 5000 of 5000\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExpandTemplateMissingKey(t *testing.T) {
	_, err := ExpandTemplate("run ${steps} on ${machine}\n", map[string]string{"steps": "10"})
	if !errors.Is(err, ErrTemplateSyntax) {
		t.Fatalf("expected ErrTemplateSyntax, got %v", err)
	}
	if !strings.Contains(err.Error(), "machine") {
		t.Errorf("expected error to name the missing key, got %q", err)
	}
}

func TestExpandTemplateMismatchedBrace(t *testing.T) {
	if _, err := ExpandTemplate("run ${steps\n", map[string]string{"steps": "10"}); !errors.Is(err, ErrTemplateSyntax) {
		t.Errorf("expected ErrTemplateSyntax, got %v", err)
	}
}

func TestExpandTemplateLeavesPlainText(t *testing.T) {
	got, err := ExpandTemplate("price is 5 dollars\n", nil)
	if err != nil {
		t.Fatalf("ExpandTemplate() error = %v", err)
	}
	if got != "price is 5 dollars\n" {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestCheckTemplateSyntax(t *testing.T) {
	spec := TemplateSpec{
		Reserved: []string{"num_steps"},
		Required: []string{"filename", "num_steps"},
	}
	settings := map[string]any{"potential_file": "sio2.tersoff"}

	warnings, err := CheckTemplateSyntax("read_data ${filename}.input_data\npair_coeff * * ${potential_file}\nrun ${num_steps}\n", settings, spec)
	if err != nil {
		t.Fatalf("CheckTemplateSyntax() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}

func TestCheckTemplateSyntaxUnknownKey(t *testing.T) {
	_, err := CheckTemplateSyntax("run ${nonexistent}\n", map[string]any{}, TemplateSpec{})
	if !errors.Is(err, ErrTemplateSyntax) {
		t.Fatalf("expected ErrTemplateSyntax, got %v", err)
	}
	if !strings.Contains(err.Error(), "nonexistent") {
		t.Errorf("expected error to name the unknown key, got %q", err)
	}
}

func TestCheckTemplateSyntaxMismatchedDelimiter(t *testing.T) {
	for _, template := range []string{"run ${steps\n", "run $steps}\n"} {
		if _, err := CheckTemplateSyntax(template, map[string]any{"steps": 10}, TemplateSpec{}); !errors.Is(err, ErrTemplateSyntax) {
			t.Errorf("template %q: expected ErrTemplateSyntax, got %v", template, err)
		}
	}
}

func TestCheckTemplateSyntaxMissingRequired(t *testing.T) {
	spec := TemplateSpec{
		Reserved: []string{"num_steps"},
		Required: []string{"num_steps"},
	}

	_, err := CheckTemplateSyntax("minimize 1e-6 1e-8 100 1000\n", nil, spec)
	if !errors.Is(err, ErrTemplateSyntax) {
		t.Fatalf("expected ErrTemplateSyntax, got %v", err)
	}
	if !strings.Contains(err.Error(), "num_steps") {
		t.Errorf("expected error to name the required key, got %q", err)
	}
}

func TestCheckTemplateSyntaxUnusedSettingsWarn(t *testing.T) {
	settings := map[string]any{
		"name":           "generic",
		"GULP_LIB":       "/opt/gulp/libraries",
		"potential_file": "sio2.tersoff",
	}
	spec := TemplateSpec{SettingsKeys: []string{"GULP_LIB"}}

	warnings, err := CheckTemplateSyntax("no keys here\n", settings, spec)
	if err != nil {
		t.Fatalf("CheckTemplateSyntax() error = %v", err)
	}
	// name is consumed by the driver machinery and GULP_LIB by the
	// driver itself; only potential_file is genuinely unused.
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "potential_file") {
		t.Errorf("expected warning to name potential_file, got %q", warnings[0])
	}
}

func TestCheckTemplate(t *testing.T) {
	raw := genericSettings(t)
	raw["unused_setting"] = true
	cfg, err := ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	d, err := New(cfg, testCell(t), testCampaign())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	warnings, err := CheckTemplate(d, cfg)
	if err != nil {
		t.Fatalf("CheckTemplate() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unused_setting") {
		t.Errorf("expected a warning for unused_setting, got %v", warnings)
	}
}

func TestCheckTemplateMissingFile(t *testing.T) {
	raw := genericSettings(t)
	cfg, err := ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	d, err := New(cfg, testCell(t), testCampaign())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cfg.InputTemplate = cfg.InputTemplate + ".gone"
	if _, err := CheckTemplate(d, cfg); err == nil {
		t.Error("expected error for missing template file, got nil")
	}
}

package driver

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

// ErrTemplateSyntax means an input or command template cannot be
// expanded with the available keys.
var ErrTemplateSyntax = errors.New("template syntax error")

// ErrReservedKeyword means a user setting collides with a keyword the
// driver fills in itself.
var ErrReservedKeyword = errors.New("reserved keyword")

// globallyReserved keywords are filled in by every driver.
var globallyReserved = []string{"filename"}

// templateKeyPattern matches ${key} and $key references in templates.
var templateKeyPattern = regexp.MustCompile(`\$(\{?[a-zA-Z][_a-zA-Z0-9]*\}?)`)

// TemplateSpec describes what a driver makes available to its input
// template beyond the user's own settings.
type TemplateSpec struct {
	// Reserved keys are computed by the driver each phase. Users must
	// not set them.
	Reserved []string

	// Required keys must appear in the template. A template that omits
	// one would silently ignore part of the campaign settings.
	Required []string

	// SettingsKeys are settings the driver consumes directly, so their
	// absence from the template is expected.
	SettingsKeys []string
}

// ExpandTemplate substitutes ${key} and $key references in text. Every
// referenced key must be present in values.
func ExpandTemplate(text string, values map[string]string) (string, error) {
	var missing []string
	expanded := templateKeyPattern.ReplaceAllStringFunc(text, func(match string) string {
		token := match[1:]
		if strings.HasPrefix(token, "{") != strings.HasSuffix(token, "}") {
			missing = append(missing, token)
			return match
		}
		key := strings.Trim(token, "{}")
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: unresolved keys: %s", ErrTemplateSyntax, strings.Join(missing, ", "))
	}
	return expanded, nil
}

// CheckTemplate reads the driver's input template and checks it against
// the driver's settings before any simulation runs. It returns warnings
// for settings the template never uses.
func CheckTemplate(d Driver, cfg Config) ([]string, error) {
	text, err := os.ReadFile(cfg.InputTemplate)
	if err != nil {
		return nil, fmt.Errorf("reading input template: %w", err)
	}
	return CheckTemplateSyntax(string(text), cfg.Settings, d.TemplateSpec())
}

// CheckTemplateSyntax checks every key reference in a template against
// the user settings and the driver's reserved keywords. Malformed
// references, unknown keys and missing required keywords are errors;
// settings the template never uses only produce warnings.
func CheckTemplateSyntax(text string, settings map[string]any, spec TemplateSpec) ([]string, error) {
	reserved := append(slices.Clone(spec.Reserved), globallyReserved...)

	used := make(map[string]bool)
	for _, match := range templateKeyPattern.FindAllStringSubmatch(text, -1) {
		token := match[1]
		if strings.HasPrefix(token, "{") != strings.HasSuffix(token, "}") {
			return nil, fmt.Errorf("%w: mismatched delimiter in $%s", ErrTemplateSyntax, token)
		}
		key := strings.Trim(token, "{}")
		if _, ok := settings[key]; !ok && !slices.Contains(reserved, key) {
			return nil, fmt.Errorf("%w: unknown key $%s", ErrTemplateSyntax, key)
		}
		used[key] = true
	}

	for _, key := range spec.Required {
		if !used[key] {
			return nil, fmt.Errorf("%w: template must reference ${%s}", ErrTemplateSyntax, key)
		}
	}

	var warnings []string
	for _, key := range sortedKeys(settings) {
		if used[key] || slices.Contains(commonSettingsKeys, key) || slices.Contains(spec.SettingsKeys, key) {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("driver setting %s is not used by the input template", key))
	}
	return warnings, nil
}

// checkReservedCollisions rejects user settings that shadow keywords the
// driver computes itself.
func checkReservedCollisions(settings map[string]any, spec TemplateSpec) error {
	reserved := append(slices.Clone(spec.Reserved), globallyReserved...)
	for _, key := range sortedKeys(settings) {
		if slices.Contains(reserved, key) {
			return fmt.Errorf("%w: %s is set by the driver and cannot appear in driver_settings", ErrReservedKeyword, key)
		}
	}
	return nil
}

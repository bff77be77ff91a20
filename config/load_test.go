package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Parser.MaxDepth != 512 {
		t.Errorf("expected default max depth 512, got %d", cfg.Parser.MaxDepth)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected default log level 'warn', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.REPL.Prompt != ">> " {
		t.Errorf("expected default prompt '>> ', got %q", cfg.REPL.Prompt)
	}
	if len(cfg.Notations) == 0 {
		t.Error("expected a default notation table")
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "TEST_LEVEL":
			return "debug"
		case "TEST_PREC":
			return "25"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "level: ${TEST_LEVEL}",
			expected: "level: debug",
		},
		{
			name:     "with default (env set)",
			input:    "level: ${TEST_LEVEL:-info}",
			expected: "level: debug",
		},
		{
			name:     "with default (env not set)",
			input:    "level: ${UNSET_VAR:-info}",
			expected: "level: info",
		},
		{
			name:     "multiple substitutions",
			input:    "x: ${TEST_LEVEL}/${TEST_PREC}",
			expected: "x: debug/25",
		},
		{
			name:     "no substitution needed",
			input:    "static: value",
			expected: "static: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pratt.yaml")

	configContent := `
notations:
  - symbol: "+"
    kind: infix
    precedence: ${PLUS_PREC:-10}
  - symbol: ["*", times]
    kind: infix
    precedence: 20
    op: mul
  - symbol: "**"
    kind: infix
    precedence: 30
    assoc: right
    op: pow
  - symbol: "-"
    kind: prefix
    precedence: 25
    op: neg

parser:
  max_depth: 64

logging:
  level: debug
  format: json
  output: stderr

repl:
  history: history.txt
  prompt: "calc> "
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, path, err := LoadWithPath(configPath, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if path != configPath {
		t.Errorf("expected path %q, got %q", configPath, path)
	}
	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}

	// A declared table replaces the defaults
	if len(cfg.Notations) != 4 {
		t.Fatalf("expected 4 notations, got %d", len(cfg.Notations))
	}
	if cfg.Notations[0].Precedence != 10 {
		t.Errorf("expected interpolated precedence 10, got %d", cfg.Notations[0].Precedence)
	}
	if !cfg.Notations[1].Symbol.Contains("times") {
		t.Errorf("expected times in %v", cfg.Notations[1].Symbol)
	}
	if cfg.Notations[2].Assoc != "right" {
		t.Errorf("expected right associativity, got %q", cfg.Notations[2].Assoc)
	}

	if cfg.Parser.MaxDepth != 64 {
		t.Errorf("expected max depth 64, got %d", cfg.Parser.MaxDepth)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected log format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.REPL.Prompt != "calc> " {
		t.Errorf("expected prompt 'calc> ', got %q", cfg.REPL.Prompt)
	}
	if want := filepath.Join(dir, "history.txt"); cfg.REPL.History != want {
		t.Errorf("expected history %q, got %q", want, cfg.REPL.History)
	}
}

func TestLoadKeepsDefaultNotations(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pratt.yaml")
	if err := os.WriteFile(configPath, []byte("parser:\n  max_depth: 100\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Notations) != len(DefaultNotations()) {
		t.Errorf("expected the default table, got %d notations", len(cfg.Notations))
	}
	if cfg.REPL.History != "~/.pratt_history" {
		t.Errorf("home-relative history should be left alone, got %q", cfg.REPL.History)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadWithPath("", func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadWithPath: %v", err)
	}
	if path != "" {
		t.Errorf("expected no path, got %q", path)
	}
	if cfg.Parser.MaxDepth != 512 {
		t.Errorf("expected defaults, got %+v", cfg.Parser)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		expectErr bool
		errSubstr string
	}{
		{
			name: "valid minimal config",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: 10
logging:
  level: info
  format: text
`,
			expectErr: false,
		},
		{
			name: "unknown kind",
			config: `
notations:
  - symbol: "+"
    kind: binary
    precedence: 10
`,
			expectErr: true,
			errSubstr: "kind must be infix",
		},
		{
			name: "precedence too high",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: 5000
`,
			expectErr: true,
			errSubstr: "precedence 5000 outside [0, 1024]",
		},
		{
			name: "negative precedence",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: -1
`,
			expectErr: true,
			errSubstr: "precedence -1 outside",
		},
		{
			name: "bad assoc",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: 10
    assoc: both
`,
			expectErr: true,
			errSubstr: "assoc must be",
		},
		{
			name: "assoc on prefix",
			config: `
notations:
  - symbol: "-"
    kind: prefix
    precedence: 10
    assoc: right
`,
			expectErr: true,
			errSubstr: "assoc only applies",
		},
		{
			name: "missing symbol",
			config: `
notations:
  - kind: infix
    precedence: 10
`,
			expectErr: true,
			errSubstr: "symbol is required",
		},
		{
			name: "duplicate trailing symbol",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: 10
  - symbol: ["-", "+"]
    kind: postfix
    precedence: 20
`,
			expectErr: true,
			errSubstr: `symbol "+" already declared by notations[0]`,
		},
		{
			name: "same symbol leading and trailing",
			config: `
notations:
  - symbol: "-"
    kind: infix
    precedence: 10
  - symbol: "-"
    kind: prefix
    precedence: 20
`,
			expectErr: false,
		},
		{
			name: "unlexable symbol",
			config: `
notations:
  - symbol: "x+"
    kind: infix
    precedence: 10
`,
			expectErr: true,
			errSubstr: "mixes letters and punctuation",
		},
		{
			name: "separator outside conditional",
			config: `
notations:
  - symbol: "+"
    kind: infix
    precedence: 10
    separator: ":"
`,
			expectErr: true,
			errSubstr: "separator only applies",
		},
		{
			name: "invalid max depth",
			config: `
parser:
  max_depth: 0
`,
			expectErr: true,
			errSubstr: "invalid parser.max_depth",
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: verbose
`,
			expectErr: true,
			errSubstr: "invalid log level",
		},
		{
			name: "invalid log format",
			config: `
logging:
  format: xml
`,
			expectErr: true,
			errSubstr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.config), func(string) string { return "" })
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidationAggregatesErrors(t *testing.T) {
	_, err := Parse([]byte(`
notations:
  - symbol: ""
    kind: nope
logging:
  level: loud
`), func(string) string { return "" })
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration errors:\n  - ") {
		t.Errorf("unexpected layout: %q", msg)
	}
	if n := strings.Count(msg, "\n  - "); n != 3 {
		t.Errorf("expected 3 errors, got %d:\n%s", n, msg)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("notations: [:"), func(string) string { return "" })
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	noenv := func(string) string { return "" }

	// Test explicit path not found
	_, err := resolveConfigPath("/nonexistent/path/pratt.yaml", noenv)
	if err == nil {
		t.Error("expected error for nonexistent path")
	}

	// Test explicit path found
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	resolved, err := resolveConfigPath(configPath, noenv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resolved != configPath {
		t.Errorf("expected %q, got %q", configPath, resolved)
	}

	// Test PRATT_CONFIG
	env := func(key string) string {
		if key == "PRATT_CONFIG" {
			return configPath
		}
		return ""
	}
	resolved, err = resolveConfigPath("", env)
	if err != nil || resolved != configPath {
		t.Errorf("PRATT_CONFIG: got %q, %v", resolved, err)
	}

	missing := func(key string) string {
		if key == "PRATT_CONFIG" {
			return filepath.Join(dir, "missing.yaml")
		}
		return ""
	}
	if _, err := resolveConfigPath("", missing); err == nil || !strings.Contains(err.Error(), "PRATT_CONFIG") {
		t.Errorf("expected a PRATT_CONFIG error, got %v", err)
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name     string
		notation Notation
		expected string
	}{
		{
			name:     "terminator with precedence",
			notation: Notation{Symbol: StringOrSlice{";"}, Kind: KindTerminator, Precedence: 3},
			expected: "terminator with precedence 3",
		},
		{
			name:     "ties with application",
			notation: Notation{Symbol: StringOrSlice{"."}, Kind: KindInfix, Precedence: 1024},
			expected: "ties with function application",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Notations = []Notation{tt.notation}
			warnings := Warnings(cfg)
			if len(warnings) != 1 || !strings.Contains(warnings[0], tt.expected) {
				t.Errorf("expected a warning containing %q, got %v", tt.expected, warnings)
			}
		})
	}
}

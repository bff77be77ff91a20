package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/pratt/pkg/pratt/registry"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations and falls back to
// Defaults when no file exists.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path. The path is empty when the defaults were used.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Defaults(), "", nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, getenv)
	if err != nil {
		return nil, "", err
	}
	cfg.BaseDir = filepath.Dir(absPath)

	// Resolve a relative history path against the config directory
	if h := cfg.REPL.History; h != "" && !strings.HasPrefix(h, "~") && !filepath.IsAbs(h) {
		cfg.REPL.History = filepath.Join(cfg.BaseDir, h)
	}

	return cfg, absPath, nil
}

// Parse decodes and validates configuration data. A file that declares
// notations replaces the default table rather than extending it.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	cfg.Notations = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Notations == nil {
		cfg.Notations = DefaultNotations()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	for i, n := range cfg.Notations {
		if n.Kind == KindTerminator && n.Precedence > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"notations[%d]: terminator with precedence %d stops only loops below that precedence", i, n.Precedence))
		}
		if n.Kind != KindTerminator && n.Precedence == registry.MaxPrec {
			warnings = append(warnings, fmt.Sprintf(
				"notations[%d]: precedence %d ties with function application", i, n.Precedence))
		}
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > PRATT_CONFIG env > ./pratt.yaml > ~/.config/pratt/pratt.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	// Try PRATT_CONFIG environment variable
	if envPath := getenv("PRATT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("PRATT_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	// Try ./pratt.yaml
	if _, err := os.Stat("pratt.yaml"); err == nil {
		return "pratt.yaml", nil
	}

	// Try ~/.config/pratt/pratt.yaml
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "pratt", "pratt.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	var errs []string

	// Notation validation
	seen := make(map[string]int) // role+symbol -> index
	for i, n := range cfg.Notations {
		switch n.Kind {
		case KindInfix, KindPrefix, KindPostfix, KindConditional, KindTerminator:
		default:
			errs = append(errs, fmt.Sprintf("notations[%d]: kind must be infix, prefix, postfix, conditional or terminator, got %q", i, n.Kind))
		}
		if n.Precedence < 0 || n.Precedence > registry.MaxPrec {
			errs = append(errs, fmt.Sprintf("notations[%d]: precedence %d outside [0, %d]", i, n.Precedence, registry.MaxPrec))
		}
		switch n.Assoc {
		case "", "left":
		case "right":
			if n.Kind != KindInfix && n.Kind != KindConditional {
				errs = append(errs, fmt.Sprintf("notations[%d]: assoc only applies to infix and conditional notations", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("notations[%d]: assoc must be 'left', 'right', or empty", i))
		}
		if n.Separator != "" && n.Kind != KindConditional {
			errs = append(errs, fmt.Sprintf("notations[%d]: separator only applies to conditional notations", i))
		}

		if len(n.Symbol) == 0 {
			errs = append(errs, fmt.Sprintf("notations[%d]: symbol is required", i))
		}
		for _, sym := range n.Symbol {
			if msg := checkSymbol(sym); msg != "" {
				errs = append(errs, fmt.Sprintf("notations[%d]: symbol %q %s", i, sym, msg))
				continue
			}
			role := "trailing "
			if n.Leading() {
				role = "leading "
			}
			if j, dup := seen[role+sym]; dup {
				errs = append(errs, fmt.Sprintf("notations[%d]: symbol %q already declared by notations[%d]", i, sym, j))
				continue
			}
			seen[role+sym] = i
		}
	}

	// Parser validation
	if cfg.Parser.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("invalid parser.max_depth: %d (must be at least 1)", cfg.Parser.MaxDepth))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// checkSymbol reports why a symbol could never come out of the lexer as a
// single token, or "" if it can. Word symbols must look like identifiers;
// punctuation symbols must not start with a letter, digit, quote or space.
func checkSymbol(sym string) string {
	if sym == "" {
		return "is empty"
	}
	first, _ := utf8.DecodeRuneInString(sym)
	if first == '_' || unicode.IsLetter(first) {
		for _, r := range sym {
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return "mixes letters and punctuation"
			}
		}
		return ""
	}
	switch {
	case unicode.IsDigit(first):
		return "starts with a digit"
	case first == '"':
		return "starts with a quote"
	case strings.ContainsFunc(sym, unicode.IsSpace):
		return "contains whitespace"
	}
	return ""
}

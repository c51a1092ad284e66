// Package config loads build settings for the sorrel CLI from a YAML file
// with environment-variable interpolation. The emission engine never reads
// configuration itself; the CLI resolves everything here and hands the engine
// a plain settings value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/sorrel/pkg/sorrel/errors"
)

// Config holds every tunable the build command reads.
type Config struct {
	// Output is the default template destination; empty means stdout.
	Output string `yaml:"output"`

	// Symbolic selects name-based references resolved by the target
	// engine's dependency graph instead of computed resource ids.
	Symbolic bool `yaml:"symbolic"`

	// Indent is the number of spaces per nesting level in the emitted
	// document; 0 produces compact output.
	Indent int `yaml:"indent"`

	// Compress gzips the emitted template.
	Compress bool `yaml:"compress"`

	// Watch holds file-watching behaviour for `build --watch`.
	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig tunes the rebuild-on-change loop.
type WatchConfig struct {
	// DebounceMs coalesces change events that arrive within this window.
	DebounceMs int `yaml:"debounce_ms"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() *Config {
	return &Config{
		Indent: 2,
		Watch:  WatchConfig{DebounceMs: 200},
	}
}

// Load reads configuration from a file with ENV interpolation. An empty
// configPath searches the default locations; if none exists the defaults are
// returned as-is, since the CLI works fine without a config file.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("CONFIG-0001", map[string]any{"Reason": err.Error()})
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("CONFIG-0002", map[string]any{"Reason": err.Error()})
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > SORREL_CONFIG env > ./sorrel.yaml >
// ~/.config/sorrel/sorrel.yaml. An empty result means "use defaults".
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.New("CONFIG-0001",
				map[string]any{"Reason": fmt.Sprintf("config file not found: %s", explicit)})
		}
		return explicit, nil
	}

	if envPath := getenv("SORREL_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", errors.New("CONFIG-0001",
				map[string]any{"Reason": fmt.Sprintf("SORREL_CONFIG file not found: %s", envPath)})
		}
		return envPath, nil
	}

	if _, err := os.Stat("sorrel.yaml"); err == nil {
		return "sorrel.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "sorrel", "sorrel.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with
// environment values.
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

func validate(cfg *Config) error {
	var errs []string

	if cfg.Indent < 0 || cfg.Indent > 8 {
		errs = append(errs, fmt.Sprintf("invalid indent: %d (must be 0-8)", cfg.Indent))
	}
	if cfg.Watch.DebounceMs < 0 {
		errs = append(errs, fmt.Sprintf("invalid watch.debounce_ms: %d", cfg.Watch.DebounceMs))
	}

	if len(errs) > 0 {
		return errors.New("CONFIG-0002",
			map[string]any{"Reason": strings.Join(errs, "; ")})
	}
	return nil
}

// IndentString renders the configured indent as the writer's literal prefix.
func (c *Config) IndentString() string {
	return strings.Repeat(" ", c.Indent)
}

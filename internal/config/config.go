// Package config loads this host's own configuration: queue/pool sizing,
// log level, and validator options. It is deliberately small compared to
// a full application config, but follows the same discovery/parse/merge/
// env-override shape as
// _examples/WaylonWalker-markata-go/pkg/config/loader.go and env.go,
// scaled down to this core's handful of settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// configFileNames mirrors markata-go's discovery order: a TOML file is
// preferred, with YAML as a fallback for editors that template YAML more
// comfortably.
var configFileNames = []string{
	"lsp-core.toml",
	"lsp-core.yaml",
	"lsp-core.yml",
}

// ErrNotFound is returned by Discover when no configuration file exists
// in any of the standard locations.
var ErrNotFound = errors.New("no configuration file found")

// Config is this host's own tunable configuration.
type Config struct {
	LogLevel       string `toml:"log_level" yaml:"log_level"`
	LogPath        string `toml:"log_path" yaml:"log_path"`
	QueueCapacity  int    `toml:"queue_capacity" yaml:"queue_capacity"`
	RequestWorkers int    `toml:"request_workers" yaml:"request_workers"`
	WorkerWorkers  int    `toml:"worker_workers" yaml:"worker_workers"`
	MaxLineLength  int    `toml:"max_line_length" yaml:"max_line_length"`
	Interactive    bool   `toml:"interactive" yaml:"interactive"`
}

// Default returns the configuration used when no file is found and no
// environment overrides are set.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		QueueCapacity:  64,
		RequestWorkers: 4,
		WorkerWorkers:  4,
		MaxLineLength:  120,
	}
}

// Load loads configuration from path, or discovers one of configFileNames
// in the current directory when path is empty. Environment overrides
// (prefixed LSPCORE_) are applied last, regardless of whether a file was
// found.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		discovered, err := Discover(".")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				applyEnvOverrides(cfg)
				return cfg, nil
			}
			return nil, err
		}
		path = discovered
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := parseInto(cfg, path, data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Discover searches dir for the first of configFileNames that exists.
func Discover(dir string) (string, error) {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

func parseInto(cfg *Config, path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

const envPrefix = "LSPCORE_"

// applyEnvOverrides applies LSPCORE_*-prefixed environment variables on
// top of cfg, matching markata-go's ApplyEnvOverrides pattern of a flat
// key->field switch rather than reflection-based binding.
func applyEnvOverrides(cfg *Config) {
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		switch field {
		case "log_level":
			cfg.LogLevel = value
		case "queue_capacity":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.QueueCapacity = n
			}
		case "request_workers":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.RequestWorkers = n
			}
		case "worker_workers":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.WorkerWorkers = n
			}
		case "max_line_length":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxLineLength = n
			}
		case "log_path":
			cfg.LogPath = value
		case "interactive":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.Interactive = b
			}
		}
	}
}

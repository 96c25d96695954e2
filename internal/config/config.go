// Package config loads webtrace configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"webtrace/internal/browser"
)

// Sink kinds selectable in the capture section.
const (
	SinkFile    = "file"
	SinkConsole = "console"
	SinkLog     = "log"
)

// Config holds all webtrace configuration.
type Config struct {
	Browser browser.Config `yaml:"browser"`
	Capture CaptureConfig  `yaml:"capture"`
	Logging LoggingConfig  `yaml:"logging"`
}

// CaptureConfig configures the flush sink.
type CaptureConfig struct {
	Sink   string `yaml:"sink"`    // file, console, log
	LogDir string `yaml:"log_dir"` // directory for file sink output
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Browser: browser.DefaultConfig(),
		Capture: CaptureConfig{
			Sink:   SinkFile,
			LogDir: "logs",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WEBTRACE_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("WEBTRACE_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("WEBTRACE_LOG_DIR"); v != "" {
		c.Capture.LogDir = v
	}
	if v := os.Getenv("WEBTRACE_SINK"); v != "" {
		c.Capture.Sink = v
	}
	if v := os.Getenv("WEBTRACE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c Config) validate() error {
	switch strings.ToLower(c.Capture.Sink) {
	case SinkFile, SinkConsole, SinkLog:
		return nil
	default:
		return fmt.Errorf("unknown capture sink %q (want %s, %s, or %s)", c.Capture.Sink, SinkFile, SinkConsole, SinkLog)
	}
}

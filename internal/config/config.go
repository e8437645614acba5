// Package config loads the pagebuilder tool configuration (pagebuilder.yaml).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name looked up when no path is given.
const DefaultFile = "pagebuilder.yaml"

// Config represents the tool configuration.
type Config struct {
	// Charset is the process default used for inputCharset/outputCharset
	// when a version record does not name one.
	Charset  string         `yaml:"charset"`
	Logging  LoggingConfig  `yaml:"logging"`
	Launcher LauncherConfig `yaml:"launcher"`
	Build    BuildConfig    `yaml:"build"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tools    ToolsConfig    `yaml:"tools"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// LauncherConfig controls the generated fb-build launcher scripts.
type LauncherConfig struct {
	Command string `yaml:"command"`
}

// BuildConfig holds build lifecycle switches.
type BuildConfig struct {
	// CleanupOnFailure removes the staging directories when a transform fails.
	CleanupOnFailure bool `yaml:"cleanup_on_failure"`
}

// HistoryConfig controls the SQLite build ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// ToolsConfig names the external programs used by transforms. Arguments may
// contain the {in} and {out} placeholders.
type ToolsConfig struct {
	Lessc          []string `yaml:"lessc,omitempty"`
	ModuleCompiler []string `yaml:"module_compiler,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Charset: "utf8",
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Launcher: LauncherConfig{Command: "pagebuilder"},
		History:  HistoryConfig{Enabled: true},
		Tools: ToolsConfig{
			Lessc: []string{"lessc", "{in}", "{out}"},
		},
	}
}

// Load reads configPath on top of Default. A missing file is not an error.
// .env and .env.local are loaded first and ${VAR} references expanded.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config %s: %w", configPath, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Charset = strings.TrimSpace(c.Charset)
	if c.Charset == "" {
		c.Charset = "utf8"
	}

	level, err := logLevelNormalizer.Parse(string(c.Logging.Level))
	if err != nil {
		return err
	}
	c.Logging.Level = level

	format, err := logFormatNormalizer.Parse(string(c.Logging.Format))
	if err != nil {
		return err
	}
	c.Logging.Format = format

	if strings.TrimSpace(c.Launcher.Command) == "" {
		c.Launcher.Command = "pagebuilder"
	}
	if len(c.Tools.Lessc) == 0 {
		c.Tools.Lessc = []string{"lessc", "{in}", "{out}"}
	}
	return nil
}

// HistoryPath returns the ledger location for an apps root.
func (c *Config) HistoryPath(root string) string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(root, ".pagebuilder", "history.db")
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

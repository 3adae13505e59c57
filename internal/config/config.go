// Package config provides configuration management for rustycheck.
// It handles loading, parsing, and validating configuration files, as well
// as providing default values for include paths, annotation side-files, and
// output formatting.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnalysisConfig contains everything the driver needs beyond the
// command-line source-file argument: include search paths and the side
// files carrying @external/@external_whitelist/@type_lifetime blocks
// (spec §6.4/§6.5), which the CLI's repeated `-I`/`--compile-commands`
// flags can't carry alone.
type AnalysisConfig struct {
	IncludePaths []string `yaml:"include_paths"`

	// AnnotationFiles lists side files parsed with
	// external.LoadAnnotationFile, in order; later files override earlier
	// ones for conflicting patterns (last-registration-wins within a
	// single Registry, same as the teacher's own "later source wins for
	// duplicate keys" merge posture elsewhere in this file).
	AnnotationFiles []string `yaml:"annotation_files"`

	// CompileCommands points at a compile_commands.json the CLI can draw
	// extra include paths from; rustycheck does not interpret its full
	// schema (compile-commands loading is explicitly out of scope, per
	// spec §1), only scans it for `-I`/`-isystem` tokens.
	CompileCommands string `yaml:"compile_commands"`

	// FailOnUndeclared is a tri-state boolean: nil means "use the
	// default" (true — an Undeclared callee from Safe code is always a
	// violation per spec §4.8) rather than merely "false", mirroring the
	// teacher's pointer-boolean pattern for settings that need three
	// states, not two. The value is only stored and defaulted here; the
	// driver and call-safety pass do not read it, so an Undeclared callee
	// from Safe code is reported whatever it is set to.
	FailOnUndeclared *bool `yaml:"fail_on_undeclared"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	Format string     `yaml:"format"` // "console" or "json"
	JSON   JSONConfig `yaml:"json"`
}

// JSONConfig contains JSON export settings
type JSONConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Verbose bool   `yaml:"verbose"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If no config file specified, try to find one
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			// If no config file found, return default config
			return GetDefaultConfig(), nil
		}
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge with defaults for any missing values
	mergeWithDefaults(&config)

	return &config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			IncludePaths:     []string{},
			AnnotationFiles:  []string{},
			CompileCommands:  "",
			FailOnUndeclared: boolPtr(true),
		},
		Output: OutputConfig{
			Format: "console",
			JSON: JSONConfig{
				Enabled:     false,
				Path:        "./reports/violations.json",
				PrettyPrint: true,
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Verbose: false,
		},
	}
}

// findConfigFile looks for config files in standard locations
func findConfigFile() (string, error) {
	configNames := []string{
		"rustycheck.yaml",
		"rustycheck.yml",
		".rustycheck.yaml",
		".rustycheck.yml",
	}

	// Check current directory first
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	// Check configs directory
	for _, name := range configNames {
		configPath := filepath.Join("configs", name)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", fmt.Errorf("no config file found")
}

// mergeWithDefaults fills in missing configuration values with defaults
func mergeWithDefaults(config *Config) {
	defaults := GetDefaultConfig()

	if len(config.Analysis.IncludePaths) == 0 {
		config.Analysis.IncludePaths = defaults.Analysis.IncludePaths
	}
	if len(config.Analysis.AnnotationFiles) == 0 {
		config.Analysis.AnnotationFiles = defaults.Analysis.AnnotationFiles
	}
	if config.Analysis.CompileCommands == "" {
		config.Analysis.CompileCommands = defaults.Analysis.CompileCommands
	}
	// Handle the tri-state boolean - only set the default when nil (not
	// explicitly set), never when the caller set it to false.
	if config.Analysis.FailOnUndeclared == nil {
		config.Analysis.FailOnUndeclared = defaults.Analysis.FailOnUndeclared
	}

	if config.Output.Format == "" {
		config.Output.Format = defaults.Output.Format
	}
	if config.Output.JSON.Path == "" {
		config.Output.JSON.Path = defaults.Output.JSON.Path
	}

	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Logging.Level
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for _, p := range c.Analysis.IncludePaths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("include path does not exist: %s", p)
		}
	}
	for _, f := range c.Analysis.AnnotationFiles {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return fmt.Errorf("annotation file does not exist: %s", f)
		}
	}

	validFormats := []string{"console", "json"}
	formatValid := false
	for _, f := range validFormats {
		if c.Output.Format == f {
			formatValid = true
			break
		}
	}
	if !formatValid {
		return fmt.Errorf("invalid output format: %s (must be one of: console, json)", c.Output.Format)
	}

	if c.Output.JSON.Path != "" {
		if err := validateOutputPath(c.Output.JSON.Path); err != nil {
			return fmt.Errorf("invalid JSON output path: %w", err)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid logging level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// validateOutputPath checks if the output path is valid
func validateOutputPath(path string) error {
	// Check if directory exists or can be created
	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			// Try to create directory
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("cannot create output directory: %w", err)
			}
		}
	}

	// Check if file is writable (try to create/touch it)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write to output file: %w", err)
	}
	file.Close()

	return nil
}

// boolPtr returns a pointer to the given boolean value
func boolPtr(b bool) *bool {
	return &b
}

// GetFailOnUndeclared safely returns the FailOnUndeclared value, falling
// back to true when it is unset. Nothing outside this package calls it:
// an Undeclared callee from Safe code is reported regardless (spec §4.8).
func (a *AnalysisConfig) GetFailOnUndeclared() bool {
	if a.FailOnUndeclared == nil {
		return true
	}
	return *a.FailOnUndeclared
}

// GetConfigPaths returns standard configuration file paths
func GetConfigPaths() []string {
	return []string{
		"rustycheck.yaml",
		"rustycheck.yml",
		".rustycheck.yaml",
		".rustycheck.yml",
		"configs/rustycheck.yaml",
		"configs/rustycheck.yml",
	}
}

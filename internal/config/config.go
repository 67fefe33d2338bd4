// Package config loads application configuration from TOML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Generator GeneratorConfig `toml:"generator"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	OutputBaseDir string `toml:"output_base_dir"`
	DatabasePath  string `toml:"database_path"`
}

// SandboxConfig holds test-execution settings
type SandboxConfig struct {
	PytestBin      string `toml:"pytest_bin"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// GeneratorConfig holds model API settings
type GeneratorConfig struct {
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// PipelineConfig holds repair-loop settings
type PipelineConfig struct {
	MaxRounds int `toml:"max_rounds"`
	Parallel  int `toml:"parallel"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			OutputBaseDir: ".",
			DatabasePath:  filepath.Join(home, ".tdd-orch", "runs.db"),
		},
		Sandbox: SandboxConfig{
			PytestBin:      "pytest",
			TimeoutSeconds: 30,
		},
		Generator: GeneratorConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
		},
		Pipeline: PipelineConfig{
			MaxRounds: 3,
			Parallel:  1,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.OutputBaseDir = ExpandPath(cfg.General.OutputBaseDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// Timeout returns the sandbox timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSeconds) * time.Second
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tdd-orch", "config.toml")
}

// Package experiment runs scheduled parameter sweeps: one experiment
// expands into a sequential pipeline invocation per temperature.
package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// ExperimentConfig represents one scheduled temperature sweep
type ExperimentConfig struct {
	Name         string    `toml:"name"`
	Cron         string    `toml:"cron"`
	ProblemFile  string    `toml:"problem_file"`
	NumTasks     int       `toml:"num_tasks"`
	StartTask    int       `toml:"start_task"`
	MaxRounds    int       `toml:"max_rounds"`
	Temperatures []float32 `toml:"temperatures"`
	Model        string    `toml:"model"`
}

// ScheduleConfig holds all experiment configurations
type ScheduleConfig struct {
	Experiments []ExperimentConfig `toml:"experiment"`
}

// Validate checks if the config is valid
func (c *ExperimentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if c.ProblemFile == "" {
		return fmt.Errorf("problem file is required")
	}
	if len(c.Temperatures) == 0 {
		c.Temperatures = []float32{0.1}
	}
	if c.NumTasks <= 0 {
		c.NumTasks = 10
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	return nil
}

// RunConfigs expands the experiment into one pipeline configuration per
// temperature, each with its own timestamped output directory
func (c *ExperimentConfig) RunConfigs(baseDir string, now time.Time) []domain.RunConfig {
	ts := now.Format("20060102_150405")
	cfgs := make([]domain.RunConfig, 0, len(c.Temperatures))
	for _, temp := range c.Temperatures {
		cfgs = append(cfgs, domain.RunConfig{
			RunID:       uuid.NewString(),
			ProblemFile: c.ProblemFile,
			NumTasks:    c.NumTasks,
			StartTask:   c.StartTask,
			MaxRounds:   c.MaxRounds,
			Temperature: temp,
			Model:       c.Model,
			OutputDir:   filepath.Join(baseDir, fmt.Sprintf("iterative_repair_T%g_%s", temp, ts)),
		})
	}
	return cfgs
}

// LoadScheduleConfig loads experiment configuration from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Validate all experiments
	for i := range cfg.Experiments {
		if err := cfg.Experiments[i].Validate(); err != nil {
			return nil, fmt.Errorf("experiment %d: %w", i, err)
		}
	}

	return &cfg, nil
}

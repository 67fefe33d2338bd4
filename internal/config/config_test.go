package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Sandbox.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Sandbox.TimeoutSeconds)
	}
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", cfg.Generator.Model)
	}
	if cfg.Pipeline.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", cfg.Pipeline.MaxRounds)
	}
	if cfg.Pipeline.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", cfg.Pipeline.Parallel)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[general]
output_base_dir = "/data/runs"

[sandbox]
timeout_seconds = 60

[pipeline]
max_rounds = 5
parallel = 4
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.OutputBaseDir != "/data/runs" {
		t.Errorf("OutputBaseDir = %q, want /data/runs", cfg.General.OutputBaseDir)
	}
	if cfg.Sandbox.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want 60", cfg.Sandbox.TimeoutSeconds)
	}
	if cfg.Pipeline.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d, want 5", cfg.Pipeline.MaxRounds)
	}
	// Unset sections keep defaults.
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want default", cfg.Generator.Model)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want default 3", cfg.Pipeline.MaxRounds)
	}
}

func TestTimeout(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.TimeoutSeconds = 45
	if cfg.Timeout() != 45*time.Second {
		t.Errorf("Timeout() = %v, want 45s", cfg.Timeout())
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

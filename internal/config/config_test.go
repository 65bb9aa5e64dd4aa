package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NarrativeScorer/internal/calibration"
	"NarrativeScorer/internal/report"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	var total float64
	for _, c := range cfg.Rubric.Categories {
		total += c.Weight
	}
	if total < 0.999 || total > 1.001 {
		t.Fatalf("default weights sum to %v", total)
	}
	if len(cfg.Calibration.Rules) != 0 {
		t.Fatalf("default calibration table should be empty")
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
gateway:
  callTimeout: 5s
  maxAttempts: 2
pipeline:
  workshopThreshold: 6.5
  profiles:
    quick:
      deadline: 12s
      maxWorkshopItems: 1
calibration:
  rules:
    - category: collaboration
      min: 4
      max: 7
      shift: 0.5
flags:
  - name: short_entry
    expr: scored_count < 3
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Gateway.CallTimeout != 5*time.Second || cfg.Gateway.MaxAttempts != 2 {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.BackoffCap != 4*time.Second {
		t.Errorf("unset fields should keep defaults, got cap %s", cfg.Gateway.BackoffCap)
	}
	if cfg.Pipeline.WorkshopThreshold != 6.5 {
		t.Errorf("threshold = %v", cfg.Pipeline.WorkshopThreshold)
	}
	if p := cfg.Pipeline.Profiles["quick"]; p.Deadline != 12*time.Second || p.MaxWorkshopItems != 1 {
		t.Errorf("quick profile = %+v", p)
	}
	if p := cfg.Pipeline.Profiles["comprehensive"]; p.Deadline != 60*time.Second {
		t.Errorf("comprehensive profile lost in merge: %+v", p)
	}
	if len(cfg.Rubric.Categories) != 9 {
		t.Errorf("rubric should fall back to defaults, got %d categories", len(cfg.Rubric.Categories))
	}
	want := calibration.Rule{Category: "collaboration", Min: 4, Max: 7, Shift: 0.5}
	if len(cfg.Calibration.Rules) != 1 || cfg.Calibration.Rules[0] != want {
		t.Errorf("calibration = %+v", cfg.Calibration.Rules)
	}
	if len(cfg.Flags) != 1 || cfg.Flags[0] != (report.FlagRule{Name: "short_entry", Expr: "scored_count < 3"}) {
		t.Errorf("flags = %+v", cfg.Flags)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("merged config invalid: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  provider: openai\n  model: from-file\n")
	t.Setenv(modelProviderEnv, "ollama")
	t.Setenv(modelNameEnv, "llama3")
	t.Setenv(modelAPIKeyEnv, "secret")
	t.Setenv(databaseDSNEnv, "postgres://localhost/scores")
	t.Setenv(logLevelEnv, "debug")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Model.Provider != ProviderOllama || cfg.Model.Model != "llama3" || cfg.Model.APIKey != "secret" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Database.DSN != "postgres://localhost/scores" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadFallsBackOnBrokenFile(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "gateway: [not, a, mapping"))

	cfg := Load()
	if cfg.Gateway.CallTimeout != defaultConfig().Gateway.CallTimeout {
		t.Fatalf("expected defaults, got %+v", cfg.Gateway)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no categories", func(c *Config) { c.Rubric.Categories = nil }, "at least one category"},
		{"duplicate id", func(c *Config) { c.Rubric.Categories[1].ID = c.Rubric.Categories[0].ID }, "duplicate category id"},
		{"negative weight", func(c *Config) { c.Rubric.Categories[0].Weight = -1 }, "negative weight"},
		{"bad shift", func(c *Config) {
			c.Calibration.Rules = []calibration.Rule{{Category: "collaboration", Min: 0, Max: 5, Shift: 0.3}}
		}, "calibration"},
		{"unknown calibration category", func(c *Config) {
			c.Calibration.Rules = []calibration.Rule{{Category: "chess", Min: 0, Max: 5, Shift: 0.5}}
		}, "unknown category"},
		{"bad flag expression", func(c *Config) {
			c.Flags = []report.FlagRule{{Name: "broken", Expr: "overall_index +"}}
		}, "broken"},
		{"unknown provider", func(c *Config) { c.Model.Provider = "carrier-pigeon" }, "unknown provider"},
		{"deadline below call timeout", func(c *Config) {
			c.Pipeline.Profiles["quick"] = ProfileConfig{Deadline: time.Second, MaxWorkshopItems: 1}
		}, "must exceed the call timeout"},
		{"unknown depth", func(c *Config) {
			c.Pipeline.Profiles["leisurely"] = ProfileConfig{Deadline: time.Minute}
		}, "unknown depth profile"},
		{"threshold off scale", func(c *Config) { c.Pipeline.WorkshopThreshold = 11 }, "workshopThreshold"},
		{"zero threshold", func(c *Config) { c.Pipeline.WorkshopThreshold = 0 }, "workshopThreshold 0 must be above"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

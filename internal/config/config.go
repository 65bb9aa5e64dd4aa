package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"NarrativeScorer/internal/calibration"
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/report"
)

const (
	configPathEnv    = "NARRATIVE_SCORER_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	logLevelEnv      = "LOG_LEVEL"
	modelProviderEnv = "MODEL_PROVIDER"
	modelEndpointEnv = "MODEL_ENDPOINT"
	modelNameEnv     = "MODEL_NAME"
	modelAPIKeyEnv   = "MODEL_API_KEY"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds every setting the process reads at start.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Model       ModelConfig       `yaml:"model"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Rubric      domain.Rubric     `yaml:"rubric"`
	Calibration calibration.Table `yaml:"calibration"`
	Flags       []report.FlagRule `yaml:"flags"`
	Database    DatabaseConfig    `yaml:"database"`
}

// LoggingConfig selects the log level (error, warn, info, debug).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ModelConfig defines how to contact the language model service.
type ModelConfig struct {
	Provider     string `yaml:"provider"`
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// GatewayConfig bounds every model call.
type GatewayConfig struct {
	CallTimeout   time.Duration `yaml:"callTimeout"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	BackoffBase   time.Duration `yaml:"backoffBase"`
	BackoffCap    time.Duration `yaml:"backoffCap"`
	MaxConcurrent int           `yaml:"maxConcurrent"`
	RetryBudget   int           `yaml:"retryBudget"`
}

// PipelineConfig tunes fan-out and output caps of one analysis.
type PipelineConfig struct {
	EntryConcurrency      int                      `yaml:"entryConcurrency"`
	BatchCount            int                      `yaml:"batchCount"`
	BatchConcurrency      int                      `yaml:"batchConcurrency"`
	SuggestionConcurrency int                      `yaml:"suggestionConcurrency"`
	WorkshopThreshold     float64                  `yaml:"workshopThreshold"`
	MaxEvidence           int                      `yaml:"maxEvidence"`
	MaxJustificationRunes int                      `yaml:"maxJustificationRunes"`
	Profiles              map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is the deadline and workshop cap of one depth.
type ProfileConfig struct {
	Deadline         time.Duration `yaml:"deadline"`
	MaxWorkshopItems int           `yaml:"maxWorkshopItems"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Path returns the config file path named by the environment, if any.
func Path() string {
	return os.Getenv(configPathEnv)
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	path := Path()
	if path == "" {
		cfg := defaultConfig()
		cfg.applyEnvOverrides()
		return cfg
	}

	cfg, err := LoadFile(path)
	if err != nil {
		log.Printf("config: %v (falling back to defaults)", err)
		cfg = defaultConfig()
		cfg.applyEnvOverrides()
	}
	return cfg
}

// LoadFile merges the file at path over the defaults and applies
// environment overrides. It is also used for reloads.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	cfg := mergeConfig(defaultConfig(), fileCfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(modelProviderEnv); v != "" {
		c.Model.Provider = v
	}

	if v := os.Getenv(modelEndpointEnv); v != "" {
		c.Model.Endpoint = v
	}

	if v := os.Getenv(modelNameEnv); v != "" {
		c.Model.Model = v
	}

	if v := os.Getenv(modelAPIKeyEnv); v != "" {
		c.Model.APIKey = v
	}
}

// Validate rejects configurations a run could not honour.
func (c Config) Validate() error {
	var errs []error

	if len(c.Rubric.Categories) == 0 {
		errs = append(errs, errors.New("rubric: at least one category is required"))
	}
	seen := make(map[string]bool, len(c.Rubric.Categories))
	for i, cat := range c.Rubric.Categories {
		switch {
		case cat.ID == "":
			errs = append(errs, fmt.Errorf("rubric: category %d has no id", i))
		case seen[cat.ID]:
			errs = append(errs, fmt.Errorf("rubric: duplicate category id %q", cat.ID))
		}
		seen[cat.ID] = true
		if cat.Weight < 0 {
			errs = append(errs, fmt.Errorf("rubric: category %q has negative weight", cat.ID))
		}
	}

	if err := c.Calibration.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, r := range c.Calibration.Rules {
		if r.Category != "" && !seen[r.Category] {
			errs = append(errs, fmt.Errorf("calibration: unknown category %q", r.Category))
		}
	}

	if err := report.ValidateRules(c.Flags); err != nil {
		errs = append(errs, err)
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("model: unknown provider %q", c.Model.Provider))
	}

	if c.Gateway.CallTimeout <= 0 {
		errs = append(errs, errors.New("gateway: callTimeout must be positive"))
	}
	for name, p := range c.Pipeline.Profiles {
		if domain.ParseDepth(name) != domain.Depth(name) {
			errs = append(errs, fmt.Errorf("pipeline: unknown depth profile %q", name))
		}
		if p.Deadline <= c.Gateway.CallTimeout {
			errs = append(errs, fmt.Errorf("pipeline: %s deadline %s must exceed the call timeout %s", name, p.Deadline, c.Gateway.CallTimeout))
		}
	}
	// zero means unset everywhere the threshold is read
	if c.Pipeline.WorkshopThreshold <= domain.MinScore || c.Pipeline.WorkshopThreshold > domain.MaxScore {
		errs = append(errs, fmt.Errorf("pipeline: workshopThreshold %g must be above %g and at most %g", c.Pipeline.WorkshopThreshold, domain.MinScore, domain.MaxScore))
	}

	return errors.Join(errs...)
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Model.Provider != "" {
		base.Model.Provider = override.Model.Provider
	}
	if override.Model.Endpoint != "" {
		base.Model.Endpoint = override.Model.Endpoint
	}
	if override.Model.Model != "" {
		base.Model.Model = override.Model.Model
	}
	if override.Model.APIKey != "" {
		base.Model.APIKey = override.Model.APIKey
	}
	if override.Model.SystemPrompt != "" {
		base.Model.SystemPrompt = override.Model.SystemPrompt
	}

	if override.Gateway.CallTimeout > 0 {
		base.Gateway.CallTimeout = override.Gateway.CallTimeout
	}
	if override.Gateway.MaxAttempts > 0 {
		base.Gateway.MaxAttempts = override.Gateway.MaxAttempts
	}
	if override.Gateway.BackoffBase > 0 {
		base.Gateway.BackoffBase = override.Gateway.BackoffBase
	}
	if override.Gateway.BackoffCap > 0 {
		base.Gateway.BackoffCap = override.Gateway.BackoffCap
	}
	if override.Gateway.MaxConcurrent > 0 {
		base.Gateway.MaxConcurrent = override.Gateway.MaxConcurrent
	}
	if override.Gateway.RetryBudget > 0 {
		base.Gateway.RetryBudget = override.Gateway.RetryBudget
	}

	if override.Pipeline.EntryConcurrency > 0 {
		base.Pipeline.EntryConcurrency = override.Pipeline.EntryConcurrency
	}
	if override.Pipeline.BatchCount > 0 {
		base.Pipeline.BatchCount = override.Pipeline.BatchCount
	}
	if override.Pipeline.BatchConcurrency > 0 {
		base.Pipeline.BatchConcurrency = override.Pipeline.BatchConcurrency
	}
	if override.Pipeline.SuggestionConcurrency > 0 {
		base.Pipeline.SuggestionConcurrency = override.Pipeline.SuggestionConcurrency
	}
	if override.Pipeline.WorkshopThreshold > 0 {
		base.Pipeline.WorkshopThreshold = override.Pipeline.WorkshopThreshold
	}
	if override.Pipeline.MaxEvidence > 0 {
		base.Pipeline.MaxEvidence = override.Pipeline.MaxEvidence
	}
	if override.Pipeline.MaxJustificationRunes > 0 {
		base.Pipeline.MaxJustificationRunes = override.Pipeline.MaxJustificationRunes
	}
	if len(override.Pipeline.Profiles) > 0 {
		profiles := make(map[string]ProfileConfig, len(base.Pipeline.Profiles))
		for name, p := range base.Pipeline.Profiles {
			profiles[name] = p
		}
		for name, p := range override.Pipeline.Profiles {
			profiles[name] = p
		}
		base.Pipeline.Profiles = profiles
	}

	if len(override.Rubric.Categories) > 0 {
		base.Rubric = override.Rubric
	}
	if len(override.Calibration.Rules) > 0 {
		base.Calibration = override.Calibration
	}
	if len(override.Flags) > 0 {
		base.Flags = override.Flags
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	return base
}

// Default returns the built-in configuration without file or env input.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Model: ModelConfig{
			Provider:     ProviderOpenAI,
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "You evaluate student self-descriptions for admissions readers. Quote the student exactly and never invent facts.",
		},
		Gateway: GatewayConfig{
			CallTimeout:   15 * time.Second,
			MaxAttempts:   3,
			BackoffBase:   250 * time.Millisecond,
			BackoffCap:    4 * time.Second,
			MaxConcurrent: 4,
			RetryBudget:   6,
		},
		Pipeline: PipelineConfig{
			EntryConcurrency:      2,
			BatchCount:            3,
			BatchConcurrency:      3,
			SuggestionConcurrency: 3,
			WorkshopThreshold:     7,
			MaxEvidence:           3,
			MaxJustificationRunes: 600,
			Profiles: map[string]ProfileConfig{
				string(domain.DepthQuick):         {Deadline: 20 * time.Second, MaxWorkshopItems: 2},
				string(domain.DepthStandard):      {Deadline: 30 * time.Second, MaxWorkshopItems: 4},
				string(domain.DepthComprehensive): {Deadline: 60 * time.Second, MaxWorkshopItems: 6},
			},
		},
		Rubric:      DefaultRubric(),
		Calibration: calibration.Table{},
		Flags:       DefaultFlags(),
		Database:    DatabaseConfig{DSN: ""},
	}
}

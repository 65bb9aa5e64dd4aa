package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"NarrativeScorer/internal/authenticity"
	"NarrativeScorer/internal/config"
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/features"
	"NarrativeScorer/internal/gateway"
	"NarrativeScorer/internal/infrastructure/llm"
	"NarrativeScorer/internal/infrastructure/parser"
	"NarrativeScorer/internal/infrastructure/storage"
	"NarrativeScorer/internal/infrastructure/watcher"
	"NarrativeScorer/internal/intake"
	"NarrativeScorer/internal/logging"
	"NarrativeScorer/internal/ports"
	"NarrativeScorer/internal/report"
	"NarrativeScorer/internal/scoring"
	"NarrativeScorer/internal/usecase"
	"NarrativeScorer/internal/workshop"
)

// Deps overrides adapters that New would otherwise build from config.
type Deps struct {
	Client     ports.ModelClient
	Repository ports.ReportRepository
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	settings atomic.Pointer[usecase.Settings]
	pipeline *usecase.Pipeline
	batch    *usecase.Batch
	source   *parser.EntrySource
	gateway  *gateway.Gateway
	db       *sql.DB
	logger   *slog.Logger
}

// New builds the application from configuration, connecting to the model
// service and, when a DSN is set, to Postgres.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	var deps Deps

	client, err := llm.NewClient(cfg.Model)
	if err != nil {
		return nil, err
	}
	deps.Client = client

	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.Repository = repo
	}

	a, err := NewWithDeps(cfg, baseLogger, deps)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	a.db = db
	return a, nil
}

// NewWithDeps builds the application around the given adapters.
func NewWithDeps(cfg config.Config, baseLogger *slog.Logger, deps Deps) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(os.Stderr, cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger.With("component", "app")}
	settings, err := buildSettings(cfg)
	if err != nil {
		return nil, err
	}
	a.settings.Store(&settings)

	a.gateway = gateway.New(deps.Client, gateway.Config{
		MaxAttempts:   cfg.Gateway.MaxAttempts,
		BackoffBase:   cfg.Gateway.BackoffBase,
		BackoffCap:    cfg.Gateway.BackoffCap,
		MaxConcurrent: cfg.Gateway.MaxConcurrent,
		SystemPrompt:  cfg.Model.SystemPrompt,
	}, baseLogger.With("component", "gateway"))

	scorer := scoring.New(a.gateway, scoring.Config{
		BatchCount:            cfg.Pipeline.BatchCount,
		BatchConcurrency:      cfg.Pipeline.BatchConcurrency,
		CallTimeout:           cfg.Gateway.CallTimeout,
		MaxEvidence:           cfg.Pipeline.MaxEvidence,
		MaxJustificationRunes: cfg.Pipeline.MaxJustificationRunes,
	}, baseLogger.With("component", "scorer"))

	detector := authenticity.New(a.gateway, authenticity.Config{
		CallTimeout: cfg.Gateway.CallTimeout,
	}, baseLogger.With("component", "authenticity"))

	generator := workshop.New(a.gateway, workshop.Config{
		Threshold:   cfg.Pipeline.WorkshopThreshold,
		Concurrency: cfg.Pipeline.SuggestionConcurrency,
		CallTimeout: cfg.Gateway.CallTimeout,
	}, baseLogger.With("component", "workshop"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Extractor:   features.NewExtractor(),
		Scorer:      scorer,
		Detector:    detector,
		Workshop:    generator,
		Settings:    a.Settings,
		Profiles:    profiles(cfg.Pipeline.Profiles),
		RetryBudget: cfg.Gateway.RetryBudget,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	a.batch = usecase.NewBatch(a.pipeline, deps.Repository, cfg.Pipeline.EntryConcurrency,
		baseLogger.With("component", "batch"))

	registry := intake.NewRegistry()
	parser.Register(registry)
	a.source = parser.NewEntrySource(registry, baseLogger.With("component", "intake"))

	return a, nil
}

// Settings returns the current rubric snapshot. A run reads it once.
func (a *Application) Settings() usecase.Settings {
	return *a.settings.Load()
}

// Rubric returns the categories of the current snapshot.
func (a *Application) Rubric() []domain.RubricCategory {
	return a.Settings().Rubric.Categories
}

// Analyze normalizes one entry document and runs it through the pipeline.
// The report is persisted when a repository is configured.
func (a *Application) Analyze(ctx context.Context, doc parser.EntryDocument, opts domain.AnalyzeOptions) (domain.AnalysisReport, error) {
	entry, err := a.source.Build(ctx, doc)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	res := a.batch.Run(ctx, []domain.Entry{entry}, opts)[0]
	return res.Report, res.Err
}

// AnalyzeFile runs every entry listed in an entries file.
func (a *Application) AnalyzeFile(ctx context.Context, path string, opts domain.AnalyzeOptions) ([]usecase.BatchResult, error) {
	entries, err := a.source.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.batch.Run(ctx, entries, opts), nil
}

// Reload re-reads the config file and swaps the rubric snapshot. Runs in
// flight keep the snapshot they started with. Only the rubric, calibration
// and flag sections take effect without a restart.
func (a *Application) Reload(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	settings, err := buildSettings(cfg)
	if err != nil {
		return err
	}
	a.settings.Store(&settings)
	a.logger.Info("rubric reloaded", "path", path, "categories", len(settings.Rubric.Categories),
		"calibration_rules", len(settings.Calibration.Rules))
	return nil
}

// WatchConfig reloads the snapshot whenever the file at path changes. It
// blocks until ctx is done.
func (a *Application) WatchConfig(ctx context.Context, path string) error {
	w, err := watcher.NewConfigWatcher(path, 0, a.logger.With("component", "watcher"))
	if err != nil {
		return err
	}
	defer w.Close()

	err = w.Watch(ctx, func(p string) {
		if err := a.Reload(p); err != nil {
			a.logger.Warn("rubric reload rejected", "path", p, "error", err)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close releases the database connection, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func buildSettings(cfg config.Config) (usecase.Settings, error) {
	agg, err := report.NewAggregator(cfg.Flags)
	if err != nil {
		return usecase.Settings{}, fmt.Errorf("compile flag rules: %w", err)
	}
	return usecase.Settings{
		Rubric:      cfg.Rubric,
		Calibration: cfg.Calibration,
		Aggregator:  agg,
	}, nil
}

func profiles(in map[string]config.ProfileConfig) map[domain.Depth]usecase.Profile {
	out := make(map[domain.Depth]usecase.Profile, len(in))
	for name, p := range in {
		out[domain.ParseDepth(name)] = usecase.Profile{
			Deadline:         p.Deadline,
			MaxWorkshopItems: p.MaxWorkshopItems,
		}
	}
	return out
}

// InFlight reports model calls currently holding a limiter slot.
func (a *Application) InFlight() int64 {
	return a.gateway.InFlight()
}

// DefaultTimeout is how long a CLI run may take before its context ends:
// the comprehensive deadline plus slack for persistence.
func (a *Application) DefaultTimeout() time.Duration {
	longest := time.Duration(0)
	for _, p := range a.cfg.Pipeline.Profiles {
		longest = max(longest, p.Deadline)
	}
	return longest + 10*time.Second
}

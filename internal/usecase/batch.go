package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/ports"
)

// Analyzer is the single-entry use case the batch runner drives.
type Analyzer interface {
	Analyze(ctx context.Context, entry domain.Entry, opts domain.AnalyzeOptions) (domain.AnalysisReport, error)
}

// BatchResult pairs one entry with its outcome.
type BatchResult struct {
	EntryID string
	Report  domain.AnalysisReport
	Err     error
}

// Batch analyses several entries with bounded concurrency and persists
// every report that was produced.
type Batch struct {
	analyzer    Analyzer
	repository  ports.ReportRepository
	concurrency int
	logger      *slog.Logger
}

// NewBatch returns a runner; repository may be nil.
func NewBatch(analyzer Analyzer, repository ports.ReportRepository, concurrency int, logger *slog.Logger) *Batch {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Batch{analyzer: analyzer, repository: repository, concurrency: concurrency, logger: logger}
}

// Run returns one result per entry, in input order.
func (b *Batch) Run(ctx context.Context, entries []domain.Entry, opts domain.AnalyzeOptions) []BatchResult {
	results := make([]BatchResult, len(entries))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			results[i] = b.one(ctx, entry, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *Batch) one(ctx context.Context, entry domain.Entry, opts domain.AnalyzeOptions) BatchResult {
	res := BatchResult{EntryID: entry.ID}
	res.Report, res.Err = b.analyzer.Analyze(ctx, entry, opts)
	if res.Err != nil {
		b.logger.Warn("entry analysis failed", "entry_id", entry.ID, "error", res.Err)
	}

	if b.repository == nil || res.Report.RunID == "" {
		return res
	}
	if err := b.repository.SaveReport(ctx, res.Report); err != nil {
		err = fmt.Errorf("persist report %s: %w", res.Report.RunID, err)
		b.logger.Error("report not saved", "entry_id", entry.ID, "error", err)
		if res.Err == nil {
			res.Err = err
		}
	}
	return res
}

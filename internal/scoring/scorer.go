package scoring

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/gateway"
)

const (
	defaultBatchCount       = 3
	defaultBatchConcurrency = 3
	defaultCallTimeout      = 20 * time.Second
	defaultMaxEvidence      = 3
	defaultJustification    = 600
)

type Config struct {
	BatchCount            int
	BatchConcurrency      int
	CallTimeout           time.Duration
	MaxEvidence           int
	MaxJustificationRunes int
}

// Input is everything one scoring pass reads. Authenticity carries the
// heuristic pre-signals when available.
type Input struct {
	Entry        domain.Entry
	Features     domain.ExtractedFeatures
	Authenticity *domain.AuthenticityAnalysis
	Categories   []domain.RubricCategory
}

// Scorer assigns per-category scores by batching categories into a few
// concurrent gateway calls.
type Scorer struct {
	invoker gateway.Invoker
	cfg     Config
	logger  *slog.Logger
}

func New(invoker gateway.Invoker, cfg Config, logger *slog.Logger) *Scorer {
	if cfg.BatchCount <= 0 {
		cfg.BatchCount = defaultBatchCount
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = defaultMaxEvidence
	}
	if cfg.MaxJustificationRunes <= 0 {
		cfg.MaxJustificationRunes = defaultJustification
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{invoker: invoker, cfg: cfg, logger: logger}
}

type batchResult struct {
	answer batchAnswer
	err    error
}

// Score returns exactly one value per category, in declaration order.
// Failed batches leave unavailable placeholders and a *PartialFailure.
func (s *Scorer) Score(ctx context.Context, in Input) ([]domain.CategoryScore, error) {
	batches := Partition(in.Categories, s.cfg.BatchCount)
	results := make([]batchResult, len(batches))

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			payload, err := s.invoker.Invoke(ctx, buildPrompt(in, batch), batchSchema, s.cfg.CallTimeout)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].err = payload.Decode(&results[i].answer)
			return nil
		})
	}
	_ = g.Wait()

	scores := make([]domain.CategoryScore, 0, len(in.Categories))
	var failure PartialFailure
	for i, batch := range batches {
		res := results[i]
		if res.err != nil {
			s.logger.Warn("category batch failed", "batch", i, "categories", len(batch), "error", res.err)
			failure.Errs = append(failure.Errs, res.err)
			for _, c := range batch {
				failure.Failed = append(failure.Failed, c.ID)
				scores = append(scores, domain.Placeholder(c.ID, domain.StatusUnavailable, domain.JustificationUnavailable))
			}
			continue
		}

		answers := indexAnswers(res.answer.Scores)
		for _, c := range batch {
			score, verr := s.validate(c.ID, answers[normalizeID(c.ID)], in.Entry.Text)
			if verr != nil {
				s.logger.Debug("discarded category output", "category", c.ID, "reason", verr.Reason)
			}
			scores = append(scores, score)
		}
	}

	if len(failure.Failed) > 0 {
		return scores, &failure
	}
	return scores, nil
}

// Partition splits categories into at most n contiguous, non-empty
// batches whose sizes differ by at most one.
func Partition(categories []domain.RubricCategory, n int) [][]domain.RubricCategory {
	if len(categories) == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if n > len(categories) {
		n = len(categories)
	}
	batches := make([][]domain.RubricCategory, 0, n)
	size, extra := len(categories)/n, len(categories)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		batches = append(batches, categories[start:end])
		start = end
	}
	return batches
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// indexAnswers keeps the first answer per category id.
func indexAnswers(answers []categoryAnswer) map[string]*categoryAnswer {
	out := make(map[string]*categoryAnswer, len(answers))
	for i := range answers {
		key := normalizeID(answers[i].ID)
		if _, seen := out[key]; !seen {
			out[key] = &answers[i]
		}
	}
	return out
}

package workshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/gateway"
)

const (
	stageName          = "workshop_suggestions"
	maxSuggestions     = 5
	defaultThreshold   = 7.0
	defaultConcurrency = 3
	defaultCallTimeout = 20 * time.Second
)

const coachRole = `You are a writing coach helping a student revise one weakness in their entry.
Propose concrete rewrites of the quoted passage that keep the student's own facts and voice. Never invent achievements.`

const suggestionFormat = `{"suggestions": [{"text": "<rewritten passage>", "rationale": "<why it is stronger>"}]}`

var suggestionSchema = gateway.Schema{
	Name: "workshop_suggestions",
	Definition: `
suggestions: [{text: string & =~"[^[:space:]]", rationale?: string}, ...{text: string & =~"[^[:space:]]", rationale?: string}]
`,
	ArrayKey: "suggestions",
}

type suggestionAnswer struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
}

type Config struct {
	Threshold   float64
	Concurrency int
	CallTimeout time.Duration
}

// Generator turns low-scoring categories into ranked workshop items and
// asks the model for rewrites.
type Generator struct {
	invoker gateway.Invoker
	cfg     Config
	logger  *slog.Logger
}

func New(invoker gateway.Invoker, cfg Config, logger *slog.Logger) *Generator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{invoker: invoker, cfg: cfg, logger: logger}
}

// Rank ranks candidates with the configured threshold and keeps at most
// maxItems of them. A non-positive maxItems keeps all.
func (g *Generator) Rank(report domain.AnalysisReport, entry domain.Entry, categories []domain.RubricCategory, maxItems int) []domain.WorkshopItem {
	items := Rank(report, entry, categories, g.cfg.Threshold)
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// Generate ranks, caps and then fills suggestions.
func (g *Generator) Generate(ctx context.Context, report domain.AnalysisReport, entry domain.Entry, categories []domain.RubricCategory, maxItems int) ([]domain.WorkshopItem, error) {
	return g.Suggest(ctx, entry, g.Rank(report, entry, categories, maxItems), categories)
}

// Suggest makes one gateway call per item. An item whose call fails keeps
// its place with a note instead of suggestions; the failures are joined
// into the returned error.
func (g *Generator) Suggest(ctx context.Context, entry domain.Entry, items []domain.WorkshopItem, categories []domain.RubricCategory) ([]domain.WorkshopItem, error) {
	out := make([]domain.WorkshopItem, len(items))
	copy(out, items)
	errs := make([]error, len(items))

	labels := make(map[string]domain.RubricCategory, len(categories))
	for _, c := range categories {
		labels[c.ID] = c
	}

	var eg errgroup.Group
	eg.SetLimit(g.cfg.Concurrency)
	for i := range out {
		eg.Go(func() error {
			suggestions, err := g.suggest(ctx, entry, out[i], labels[out[i].CategoryID])
			if err != nil {
				errs[i] = fmt.Errorf("workshop item %s: %w", out[i].CategoryID, err)
				out[i].Suggestions = []domain.Suggestion{}
				out[i].Note = domain.NoSuggestionNote
				return nil
			}
			out[i].Suggestions = suggestions
			out[i].Note = ""
			return nil
		})
	}
	_ = eg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		g.logger.Warn("workshop suggestions incomplete", "error", err)
	}
	return out, err
}

func (g *Generator) suggest(ctx context.Context, entry domain.Entry, item domain.WorkshopItem, category domain.RubricCategory) ([]domain.Suggestion, error) {
	payload, err := g.invoker.Invoke(ctx, buildPrompt(entry, item, category), suggestionSchema, g.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	var ans suggestionAnswer
	if err := payload.Decode(&ans); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	suggestions := make([]domain.Suggestion, 0, len(ans.Suggestions))
	for _, s := range ans.Suggestions {
		s.Text = strings.TrimSpace(s.Text)
		s.Rationale = strings.TrimSpace(s.Rationale)
		suggestions = append(suggestions, s)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

func buildPrompt(entry domain.Entry, item domain.WorkshopItem, category domain.RubricCategory) gateway.PromptSpec {
	var b strings.Builder
	b.WriteString(entry.Header())
	b.WriteString("\nEntry text:\n<<<\n")
	b.WriteString(entry.Text)
	b.WriteString("\n>>>\n\n")
	fmt.Fprintf(&b, "Weak category: %s (%s)\n", category.Label, item.CategoryID)
	if category.Anchors.High != "" {
		fmt.Fprintf(&b, "A 10 looks like: %s\n", category.Anchors.High)
	}
	fmt.Fprintf(&b, "Severity: %s\n", item.Severity)
	fmt.Fprintf(&b, "Passage to improve: %q\n", item.Problem.Text)
	b.WriteString("Offer between one and five suggestions.\n")

	return gateway.PromptSpec{
		Stage:   stageName,
		Role:    coachRole,
		Context: b.String(),
		Format:  suggestionFormat,
	}
}

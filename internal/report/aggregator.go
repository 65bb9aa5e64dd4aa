package report

import (
	"math"
	"slices"

	"NarrativeScorer/internal/domain"
)

// Impression tiers over the overall index.
const (
	ImpressionCompelling           = "compelling"
	ImpressionStrong               = "strong"
	ImpressionSolid                = "solid"
	ImpressionDeveloping           = "developing"
	ImpressionUnderdeveloped       = "underdeveloped"
	ImpressionInsufficientEvidence = "insufficient_evidence"
)

// Aggregator folds category scores and the authenticity analysis into a
// report. It holds only compiled flag rules and is safe for concurrent use.
type Aggregator struct {
	rules []compiledRule
}

func NewAggregator(rules []FlagRule) (*Aggregator, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Aggregator{rules: compiled}, nil
}

// Aggregate is pure and total. Categories come out in configuration
// order; ids with no score become unavailable placeholders and ids that
// are not configured are dropped.
func (a *Aggregator) Aggregate(scores []domain.CategoryScore, auth domain.AuthenticityAnalysis, categories []domain.RubricCategory) domain.AnalysisReport {
	byID := make(map[string]domain.CategoryScore, len(scores))
	for _, s := range scores {
		if _, seen := byID[s.CategoryID]; !seen {
			byID[s.CategoryID] = s
		}
	}

	ordered := make([]domain.CategoryScore, 0, len(categories))
	unavailable := []string{}
	for _, c := range categories {
		s, ok := byID[c.ID]
		if !ok {
			s = domain.Placeholder(c.ID, domain.StatusUnavailable, domain.JustificationUnavailable)
		}
		if s.Status == domain.StatusUnavailable {
			unavailable = append(unavailable, c.ID)
		}
		ordered = append(ordered, s)
	}

	index, scored := OverallIndex(ordered, categories)
	if auth.RedFlags == nil {
		auth.RedFlags = []string{}
	}
	if auth.GreenFlags == nil {
		auth.GreenFlags = []string{}
	}

	report := domain.AnalysisReport{
		Status:        domain.RunDone,
		OverallIndex:  index,
		ScoredCount:   scored,
		Categories:    ordered,
		Authenticity:  auth,
		Unavailable:   unavailable,
		Degraded:      len(unavailable) > 0,
		WorkshopItems: []domain.WorkshopItem{},
		Stages:        []domain.StageRecord{},
	}

	var flags []string
	switch {
	case scored == 0:
		flags = append(flags, FlagNoScoredCategories)
	case scored < len(categories):
		flags = append(flags, FlagIncompleteScoring)
	}
	if !auth.Available() {
		flags = append(flags, FlagAuthenticityUnavailable)
	}
	flags = append(flags, evaluate(a.rules, report)...)
	report.Flags = NormalizeFlags(flags)
	report.Impression = Impression(index, scored, report.Flags)
	return report
}

// NormalizeFlags sorts and de-duplicates flags. It never returns nil.
func NormalizeFlags(flags []string) []string {
	out := slices.Clone(flags)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// OverallIndex is the weighted mean of scored categories on a 0–100
// scale, rounded to one decimal. Weights are renormalized over the scored
// categories; when those all weigh zero they count equally. With nothing
// scored the index is 0.
func OverallIndex(scores []domain.CategoryScore, categories []domain.RubricCategory) (float64, int) {
	weights := make(map[string]float64, len(categories))
	for _, c := range categories {
		if _, seen := weights[c.ID]; !seen {
			weights[c.ID] = math.Max(c.Weight, 0)
		}
	}

	var (
		sum, total, plain float64
		scored            int
		counted           = make(map[string]bool, len(scores))
	)
	for _, s := range scores {
		w, configured := weights[s.CategoryID]
		if !configured || !s.HasScore() || counted[s.CategoryID] {
			continue
		}
		counted[s.CategoryID] = true
		v := domain.ClampScore(s.Value())
		scored++
		sum += w * v
		total += w
		plain += v
	}
	if scored == 0 {
		return 0, 0
	}

	mean := plain / float64(scored)
	if total > 0 {
		mean = sum / total
	}
	index := math.Round(mean*10*10) / 10
	return math.Min(math.Max(index, 0), 100), scored
}

// Impression maps the index onto a reader impression label. A voice
// concern caps the label at solid.
func Impression(index float64, scored int, flags []string) string {
	if scored == 0 {
		return ImpressionInsufficientEvidence
	}
	var label string
	switch {
	case index >= 85:
		label = ImpressionCompelling
	case index >= 70:
		label = ImpressionStrong
	case index >= 55:
		label = ImpressionSolid
	case index >= 40:
		label = ImpressionDeveloping
	default:
		label = ImpressionUnderdeveloped
	}
	if slices.Contains(flags, FlagVoiceConcern) && (label == ImpressionCompelling || label == ImpressionStrong) {
		label = ImpressionSolid
	}
	return label
}

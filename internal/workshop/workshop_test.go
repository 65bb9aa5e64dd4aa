package workshop

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/gateway"
)

const entryText = "  I organized a food drive. It was great! We collected 1,200 lbs of food."

var cats = []domain.RubricCategory{
	{ID: "narrative_arc", Label: "Narrative arc", Weight: 0.4},
	{ID: "impact_outcomes", Label: "Impact", Weight: 0.3},
	{ID: "voice_style", Label: "Voice", Weight: 0.2},
	{ID: "reflection_insight", Label: "Reflection", Weight: 0.1},
}

func scoreOf(id string, v float64, evidence ...string) domain.CategoryScore {
	if evidence == nil {
		evidence = []string{}
	}
	return domain.CategoryScore{CategoryID: id, Score: domain.Float(v), Evidence: evidence, Status: domain.StatusScored}
}

func sampleReport() domain.AnalysisReport {
	return domain.AnalysisReport{Categories: []domain.CategoryScore{
		scoreOf("narrative_arc", 4),
		scoreOf("impact_outcomes", 9, "1,200 lbs"),
		domain.Placeholder("voice_style", domain.StatusUnverified, domain.JustificationUnverifiable),
		scoreOf("reflection_insight", 6.5, "It was great!"),
	}}
}

func TestRank(t *testing.T) {
	t.Parallel()

	entry := domain.Entry{ID: "entry-1", Text: entryText}
	items := Rank(sampleReport(), entry, cats, 7)
	require.Len(t, items, 3)

	assert.Equal(t, "narrative_arc", items[0].CategoryID)
	assert.Equal(t, domain.SeverityHigh, items[0].Severity)
	assert.InDelta(t, 2.4, items[0].Impact, 1e-9)
	assert.Equal(t, 1, items[0].Rank)

	assert.Equal(t, "voice_style", items[1].CategoryID)
	assert.Equal(t, domain.SeverityMedium, items[1].Severity)
	assert.InDelta(t, 1.0, items[1].Impact, 1e-9)

	assert.Equal(t, "reflection_insight", items[2].CategoryID)
	assert.Equal(t, domain.SeverityMedium, items[2].Severity)
	assert.InDelta(t, 0.35, items[2].Impact, 1e-9)
	assert.Equal(t, 3, items[2].Rank)

	assert.Equal(t, "It was great!", items[2].Problem.Text)
	runes := []rune(entryText)
	assert.Equal(t, "It was great!", string(runes[items[2].Problem.Start:items[2].Problem.End]))

	assert.Equal(t, "I organized a food drive.", items[0].Problem.Text)
	assert.Equal(t, 2, items[0].Problem.Start)
	assert.Equal(t, "I organized a food drive.", string(runes[items[0].Problem.Start:items[0].Problem.End]))

	again := Rank(sampleReport(), entry, cats, 7)
	assert.Equal(t, items, again)
	assert.Equal(t, ItemID("entry-1", "narrative_arc"), items[0].ID)
	assert.NotEqual(t, ItemID("entry-2", "narrative_arc"), items[0].ID)
}

func TestRankTieBreaksBySeverityThenOrder(t *testing.T) {
	t.Parallel()

	equal := []domain.RubricCategory{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}, {ID: "c", Weight: 1}, {ID: "d", Weight: 1}}
	report := domain.AnalysisReport{Categories: []domain.CategoryScore{
		domain.Placeholder("a", domain.StatusUnverified, domain.JustificationUnverifiable),
		scoreOf("b", 5),
		scoreOf("c", 6),
		scoreOf("d", 6),
	}}
	items := Rank(report, domain.Entry{ID: "e", Text: "Short text."}, equal, 7)
	require.Len(t, items, 4)

	var order []string
	for _, it := range items {
		order = append(order, it.CategoryID)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, order)
	assert.Equal(t, domain.SeverityHigh, items[0].Severity)
	assert.Equal(t, domain.SeverityMedium, items[1].Severity)
	assert.Equal(t, items[0].Impact, items[1].Impact)
}

func TestFirstSentence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.Quote{Text: "No punctuation here", Start: 0, End: 19}, firstSentence("No punctuation here"))
	assert.Equal(t, domain.Quote{Text: "Version 2.5 shipped.", Start: 1, End: 21}, firstSentence(" Version 2.5 shipped. Then more."))
	assert.Equal(t, domain.Quote{}, firstSentence("   "))
}

type suggestionInvoker struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (s *suggestionInvoker) Invoke(_ context.Context, spec gateway.PromptSpec, schema gateway.Schema, _ time.Duration) (gateway.Payload, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	for id := range s.fail {
		if strings.Contains(spec.Context, "("+id+")") {
			return nil, &gateway.Error{Kind: gateway.KindTimeout, Stage: spec.Stage, Attempts: 3}
		}
	}
	raw := []byte(`{"suggestions": [{"text": " Rewrite one ", "rationale": "more specific"}, {"text": "b"}, {"text": "c"}, {"text": "d"}, {"text": "e"}, {"text": "f"}]}`)
	if err := schema.Validate(raw); err != nil {
		return nil, err
	}
	return gateway.Payload(raw), nil
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	inv := &suggestionInvoker{fail: map[string]bool{"voice_style": true}}
	g := New(inv, Config{Threshold: 7, Concurrency: 2}, nil)
	entry := domain.Entry{ID: "entry-1", Text: entryText}

	items, err := g.Generate(context.Background(), sampleReport(), entry, cats, 2)
	require.Error(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, inv.calls)

	assert.Equal(t, "narrative_arc", items[0].CategoryID)
	require.Len(t, items[0].Suggestions, 5)
	assert.Equal(t, "Rewrite one", items[0].Suggestions[0].Text)
	assert.Empty(t, items[0].Note)

	assert.Equal(t, "voice_style", items[1].CategoryID)
	assert.Empty(t, items[1].Suggestions)
	assert.Equal(t, domain.NoSuggestionNote, items[1].Note)
}

func TestSuggestionSchemaRejectsEmpty(t *testing.T) {
	t.Parallel()

	require.Error(t, suggestionSchema.Validate([]byte(`{"suggestions": []}`)))
	require.Error(t, suggestionSchema.Validate([]byte(`{"suggestions": [{"text": "   "}]}`)))
	require.NoError(t, suggestionSchema.Validate([]byte(`{"suggestions": [{"text": "ok", "rationale": "why"}]}`)))
}

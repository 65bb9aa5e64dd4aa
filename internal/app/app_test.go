package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NarrativeScorer/internal/config"
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/infrastructure/parser"
	"NarrativeScorer/internal/ports"
	"NarrativeScorer/pkg/logger"
)

var categoryLine = regexp.MustCompile(`(?m)^- id: (\S+)$`)

// modelStub answers each stage by recognising its system prompt.
type modelStub struct{}

func (modelStub) Complete(_ context.Context, messages []ports.ChatMessage) (string, error) {
	system, user := messages[0].Content, messages[len(messages)-1].Content
	switch {
	case strings.Contains(system, "scoring a student's self-description"):
		var parts []string
		for _, m := range categoryLine.FindAllStringSubmatch(user, -1) {
			parts = append(parts, fmt.Sprintf(
				`{"id": %q, "score": 6, "evidence": ["organized a food drive"], "justification": "Clear but thin."}`, m[1]))
		}
		return "```json\n{\"scores\": [" + strings.Join(parts, ",") + "]}\n```", nil
	case strings.Contains(system, "authentic or manufactured"):
		return `{"score": 7, "voice_type": "authentic", "red_flags": [], "green_flags": ["Specific moments"]}`, nil
	case strings.Contains(system, "writing coach"):
		return `{"suggestions": [{"text": "Describe the first morning at the pantry.", "rationale": "A scene beats a summary."}]}`, nil
	}
	return "", fmt.Errorf("unexpected prompt: %w", ports.ErrModelBadRequest)
}

type memoryRepository struct {
	mu      sync.Mutex
	reports map[string]domain.AnalysisReport
}

func (m *memoryRepository) SaveReport(_ context.Context, r domain.AnalysisReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = map[string]domain.AnalysisReport{}
	}
	m.reports[r.RunID] = r
	return nil
}

func (m *memoryRepository) LoadReport(_ context.Context, runID string) (domain.AnalysisReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[runID]
	if !ok {
		return domain.AnalysisReport{}, fmt.Errorf("run %s not found", runID)
	}
	return r, nil
}

func newTestApp(t *testing.T) (*Application, *memoryRepository, *logger.Recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Gateway.BackoffBase = time.Millisecond
	cfg.Gateway.BackoffCap = 5 * time.Millisecond

	log, rec := logger.New()
	repo := &memoryRepository{}
	a, err := NewWithDeps(cfg, log, Deps{Client: modelStub{}, Repository: repo})
	require.NoError(t, err)
	return a, repo, rec
}

func TestAnalyzeHTMLEntry(t *testing.T) {
	a, repo, rec := newTestApp(t)

	rep, err := a.Analyze(context.Background(), parser.EntryDocument{
		ID:     "food-drive",
		Kind:   "volunteer",
		Format: "html",
		Text:   "<p>I organized a food drive with three friends.</p><p>We collected 500 cans for 80 families.</p>",
	}, domain.AnalyzeOptions{Depth: domain.DepthQuick})
	require.NoError(t, err)

	assert.Equal(t, domain.RunDone, rep.Status)
	assert.Equal(t, "food-drive", rep.EntryID)
	assert.Len(t, rep.Categories, 9)
	assert.Equal(t, 9, rep.ScoredCount)
	assert.InDelta(t, 60.0, rep.OverallIndex, 0.01)
	assert.Equal(t, domain.SourceModel, rep.Authenticity.Source)
	assert.Contains(t, rep.Authenticity.GreenFlags, "specific_moments")
	assert.Len(t, rep.WorkshopItems, 2)
	for _, it := range rep.WorkshopItems {
		require.Len(t, it.Suggestions, 1)
	}

	saved, err := repo.LoadReport(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.OverallIndex, saved.OverallIndex)

	assert.NotEmpty(t, rec.Find("pipeline stage", map[string]any{"run_id": rep.RunID, "stage": string(domain.StageDone)}))
}

func TestAnalyzeFile(t *testing.T) {
	a, repo, _ := newTestApp(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "entries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - id: one
    kind: volunteer
    text: I organized a food drive at school.
  - id: two
    kind: project
    text: "   "
`), 0o600))

	results, err := a.AnalyzeFile(context.Background(), path, domain.AnalyzeOptions{SkipCoaching: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 9, results[0].Report.ScoredCount)
	assert.Empty(t, results[0].Report.WorkshopItems)

	assert.NoError(t, results[1].Err)
	assert.True(t, results[1].Report.HasFlag("empty_entry"))
	assert.Len(t, repo.reports, 2)
}

func TestReloadSwapsRubric(t *testing.T) {
	a, _, _ := newTestApp(t)
	require.Len(t, a.Rubric(), 9)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rubric:
  categories:
    - id: narrative_arc
      label: Narrative arc
      weight: 0.5
    - id: voice_style
      label: Voice and style
      weight: 0.5
calibration:
  rules:
    - category: voice_style
      min: 0
      max: 10
      shift: -0.5
`), 0o600))

	require.NoError(t, a.Reload(path))
	require.Len(t, a.Rubric(), 2)
	assert.Len(t, a.Settings().Calibration.Rules, 1)

	rep, err := a.Analyze(context.Background(), parser.EntryDocument{
		ID: "e", Text: "I organized a food drive.",
	}, domain.AnalyzeOptions{SkipCoaching: true})
	require.NoError(t, err)
	require.Len(t, rep.Categories, 2)
	voice, ok := rep.Category("voice_style")
	require.True(t, ok)
	assert.Equal(t, 5.5, voice.Value())

	require.NoError(t, os.WriteFile(path, []byte("rubric:\n  categories:\n    - id: a\n      weight: -1\n"), 0o600))
	assert.Error(t, a.Reload(path))
	assert.Len(t, a.Rubric(), 2, "rejected reload must keep the previous snapshot")
}

func TestNewWithDepsRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Rubric.Categories = nil

	_, err := NewWithDeps(cfg, nil, Deps{Client: modelStub{}})
	assert.ErrorContains(t, err, "invalid config")
}

func TestDefaultTimeout(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Equal(t, 70*time.Second, a.DefaultTimeout())
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NarrativeScorer/internal/domain"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, entry domain.Entry, _ domain.AnalyzeOptions) (domain.AnalysisReport, error) {
	if entry.ID == "broken" {
		return domain.AnalysisReport{RunID: "run-broken", EntryID: entry.ID, Status: domain.RunFailed}, domain.ErrNoUsableScores
	}
	if entry.ID == "nothing" {
		return domain.AnalysisReport{}, errors.New("settings missing")
	}
	return domain.AnalysisReport{RunID: "run-" + entry.ID, EntryID: entry.ID, Status: domain.RunDone}, nil
}

type memoryRepository struct {
	mu    sync.Mutex
	saved map[string]domain.AnalysisReport
	fail  bool
}

func (m *memoryRepository) SaveReport(_ context.Context, rep domain.AnalysisReport) error {
	if m.fail {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[rep.RunID] = rep
	return nil
}

func (m *memoryRepository) LoadReport(_ context.Context, runID string) (domain.AnalysisReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[runID], nil
}

func TestBatchRun(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{saved: map[string]domain.AnalysisReport{}}
	b := NewBatch(stubAnalyzer{}, repo, 2, nil)

	entries := []domain.Entry{{ID: "a"}, {ID: "broken"}, {ID: "nothing"}, {ID: "c"}}
	results := b.Run(context.Background(), entries, domain.AnalyzeOptions{})
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, entries[i].ID, r.EntryID)
	}
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrNoUsableScores)
	assert.Error(t, results[2].Err)
	assert.NoError(t, results[3].Err)

	assert.Len(t, repo.saved, 3)
	assert.Contains(t, repo.saved, "run-broken")
}

func TestBatchReportsPersistenceFailure(t *testing.T) {
	t.Parallel()

	b := NewBatch(stubAnalyzer{}, &memoryRepository{fail: true}, 1, nil)
	results := b.Run(context.Background(), []domain.Entry{{ID: "a"}}, domain.AnalyzeOptions{})
	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Err, "persist report run-a")
}

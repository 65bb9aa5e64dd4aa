package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"NarrativeScorer/internal/domain"
)

const (
	stageStarted   = "started"
	stageCompleted = "completed"
	stageDegraded  = "degraded"
	stageSkipped   = "skipped"
	stageFailed    = "failed"
)

// run is the state one Analyze call owns. Stage records may be appended
// from the concurrent scoring goroutines.
type run struct {
	id      string
	entryID string
	started time.Time
	logger  *slog.Logger

	mu          sync.Mutex
	stages      []domain.StageRecord
	unavailable []string
	degraded    bool
	deadline    bool
}

func newRun(entryID string, logger *slog.Logger) *run {
	id := uuid.NewString()
	return &run{
		id:      id,
		entryID: entryID,
		started: time.Now(),
		logger:  logger.With("run_id", id, "entry_id", entryID),
	}
}

// record closes a stage begun at since and emits a stage event.
func (r *run) record(stage domain.Stage, status string, since time.Time, detail string) {
	elapsed := time.Since(since)

	r.mu.Lock()
	r.stages = append(r.stages, domain.StageRecord{Stage: stage, Status: status, Elapsed: elapsed, Detail: detail})
	r.mu.Unlock()

	attrs := []any{"stage", string(stage), "status", status, "elapsed", elapsed}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}
	level := slog.LevelInfo
	if status == stageFailed || status == stageDegraded {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "pipeline stage", attrs...)
}

func (r *run) begin(stage domain.Stage) time.Time {
	r.logger.Debug("pipeline stage", "stage", string(stage), "status", stageStarted)
	return time.Now()
}

func (r *run) markDegraded() {
	r.mu.Lock()
	r.degraded = true
	r.mu.Unlock()
}

func (r *run) markDeadline() {
	r.mu.Lock()
	r.deadline = true
	r.mu.Unlock()
}

func (r *run) deadlineHit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

func (r *run) markUnavailable(part string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = true
	if slices.Contains(r.unavailable, part) {
		return
	}
	r.unavailable = append(r.unavailable, part)
}

// finish stamps run-owned fields onto the report.
func (r *run) finish(rep domain.AnalysisReport, status domain.RunStatus) domain.AnalysisReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep.RunID = r.id
	rep.EntryID = r.entryID
	rep.Status = status
	rep.DeadlineExceeded = r.deadline
	rep.Degraded = rep.Degraded || r.degraded || r.deadline
	for _, part := range r.unavailable {
		if !slices.Contains(rep.Unavailable, part) {
			rep.Unavailable = append(rep.Unavailable, part)
		}
	}
	if rep.Unavailable == nil {
		rep.Unavailable = []string{}
	}
	if rep.WorkshopItems == nil {
		rep.WorkshopItems = []domain.WorkshopItem{}
	}
	rep.Stages = append([]domain.StageRecord(nil), r.stages...)
	return rep
}

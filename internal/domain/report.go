package domain

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunDone   RunStatus = "done"
	RunFailed RunStatus = "failed"
)

// Stage names one step of the pipeline state machine.
type Stage string

const (
	StageExtracting     Stage = "extracting"
	StageScoring        Stage = "scoring"
	StageCalibrating    Stage = "calibrating"
	StageAggregating    Stage = "aggregating"
	StageWorkshop       Stage = "generating_workshop_items"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
	StageAuthenticity   Stage = "authenticity"
	StageCategoryScores Stage = "category_scores"
)

// StageRecord is one entry of a run's stage log.
type StageRecord struct {
	Stage   Stage         `json:"stage"`
	Status  string        `json:"status"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Detail  string        `json:"detail,omitempty"`
}

// AnalysisReport is the terminal artifact of one pipeline run.
type AnalysisReport struct {
	RunID            string               `json:"run_id"`
	EntryID          string               `json:"entry_id"`
	Status           RunStatus            `json:"status"`
	OverallIndex     float64              `json:"overall_index"`
	ScoredCount      int                  `json:"scored_count"`
	Categories       []CategoryScore      `json:"categories"`
	Authenticity     AuthenticityAnalysis `json:"authenticity"`
	Flags            []string             `json:"flags"`
	Impression       string               `json:"impression"`
	Degraded         bool                 `json:"degraded"`
	Unavailable      []string             `json:"unavailable"`
	DeadlineExceeded bool                 `json:"deadline_exceeded"`
	WorkshopItems    []WorkshopItem       `json:"workshop_items"`
	Stages           []StageRecord        `json:"stages"`
}

// Category returns the score of a category id.
func (r AnalysisReport) Category(id string) (CategoryScore, bool) {
	for _, c := range r.Categories {
		if c.CategoryID == id {
			return c, true
		}
	}
	return CategoryScore{}, false
}

// HasFlag reports whether the report carries a flag.
func (r AnalysisReport) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

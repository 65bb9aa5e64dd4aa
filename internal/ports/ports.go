package ports

import (
	"context"
	"errors"

	"NarrativeScorer/internal/domain"
)

// Classification sentinels wrapped by model clients so the gateway can
// tell transient failures from permanent ones without knowing the vendor.
var (
	ErrModelRateLimited  = errors.New("model service rate limited")
	ErrModelUnavailable  = errors.New("model service unavailable")
	ErrModelUnauthorized = errors.New("model service rejected credentials")
	ErrModelBadRequest   = errors.New("model service rejected request")
)

// ChatMessage is one role-tagged message sent to a model.
type ChatMessage struct {
	Role    string
	Content string
}

// ModelClient sends one prompt to a language model and returns its raw text.
type ModelClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ReportRepository persists finished reports for the surrounding application.
type ReportRepository interface {
	SaveReport(ctx context.Context, report domain.AnalysisReport) error
	LoadReport(ctx context.Context, runID string) (domain.AnalysisReport, error)
}

// EntryNormalizer turns raw submitted content into plain entry text.
type EntryNormalizer interface {
	Name() string
	Normalize(ctx context.Context, raw []byte) (string, error)
}

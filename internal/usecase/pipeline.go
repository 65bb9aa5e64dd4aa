package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"NarrativeScorer/internal/authenticity"
	"NarrativeScorer/internal/calibration"
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/gateway"
	"NarrativeScorer/internal/report"
	"NarrativeScorer/internal/scoring"
)

const (
	FlagEmptyEntry       = "empty_entry"
	FlagDeadlineExceeded = "deadline_exceeded"

	partAuthenticity = "authenticity"
	partSuggestions  = "workshop_suggestions"

	defaultRetryBudget = 6
)

// FeatureExtractor derives deterministic markers from entry text.
type FeatureExtractor interface {
	Extract(text string) (domain.ExtractedFeatures, error)
}

// CategoryScorer scores every rubric category of an entry.
type CategoryScorer interface {
	Score(ctx context.Context, in scoring.Input) ([]domain.CategoryScore, error)
}

// AuthenticityDetector estimates manufactured versus authentic voice.
type AuthenticityDetector interface {
	Detect(ctx context.Context, entry domain.Entry, f domain.ExtractedFeatures) (domain.AuthenticityAnalysis, error)
}

// WorkshopGenerator ranks revision candidates and fills their suggestions.
type WorkshopGenerator interface {
	Rank(rep domain.AnalysisReport, entry domain.Entry, categories []domain.RubricCategory, maxItems int) []domain.WorkshopItem
	Suggest(ctx context.Context, entry domain.Entry, items []domain.WorkshopItem, categories []domain.RubricCategory) ([]domain.WorkshopItem, error)
}

// Profile is the time and size budget of one analysis depth.
type Profile struct {
	Deadline         time.Duration
	MaxWorkshopItems int
}

// DefaultProfiles are used for depths missing from PipelineDeps.Profiles.
func DefaultProfiles() map[domain.Depth]Profile {
	return map[domain.Depth]Profile{
		domain.DepthQuick:         {Deadline: 20 * time.Second, MaxWorkshopItems: 2},
		domain.DepthStandard:      {Deadline: 30 * time.Second, MaxWorkshopItems: 4},
		domain.DepthComprehensive: {Deadline: 60 * time.Second, MaxWorkshopItems: 6},
	}
}

// Settings is the configuration a run reads once when it starts, so a
// reload never changes the rubric in the middle of a run.
type Settings struct {
	Rubric      domain.Rubric
	Calibration calibration.Table
	Aggregator  *report.Aggregator
}

// PipelineDeps wires the analysis stages into the orchestrator.
type PipelineDeps struct {
	Extractor   FeatureExtractor
	Scorer      CategoryScorer
	Detector    AuthenticityDetector
	Workshop    WorkshopGenerator
	Settings    func() Settings
	Profiles    map[domain.Depth]Profile
	RetryBudget int
	Logger      *slog.Logger
}

// Pipeline runs one entry through extraction, scoring, calibration,
// aggregation and workshop generation under a single deadline.
type Pipeline struct {
	extractor   FeatureExtractor
	scorer      CategoryScorer
	detector    AuthenticityDetector
	workshop    WorkshopGenerator
	settings    func() Settings
	profiles    map[domain.Depth]Profile
	retryBudget int
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	profiles := DefaultProfiles()
	for depth, p := range deps.Profiles {
		profiles[depth] = p
	}
	budget := deps.RetryBudget
	if budget <= 0 {
		budget = defaultRetryBudget
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		extractor:   deps.Extractor,
		scorer:      deps.Scorer,
		detector:    deps.Detector,
		workshop:    deps.Workshop,
		settings:    deps.Settings,
		profiles:    profiles,
		retryBudget: budget,
		logger:      logger,
	}
}

func (p *Pipeline) profile(depth domain.Depth) Profile {
	if prof, ok := p.profiles[depth]; ok {
		return prof
	}
	return p.profiles[domain.DepthStandard]
}

func (p *Pipeline) snapshot() (Settings, error) {
	if p.settings == nil {
		return Settings{}, errors.New("pipeline settings are not configured")
	}
	s := p.settings()
	if s.Aggregator == nil {
		agg, err := report.NewAggregator(nil)
		if err != nil {
			return Settings{}, err
		}
		s.Aggregator = agg
	}
	return s, nil
}

// Analyze evaluates one entry. It returns a report whenever one can be
// built; the error is non-nil only when extraction failed, when a
// permanent model error aborted the run, when every category batch failed
// before the deadline, or when the finished report is inconsistent.
// Deadline expiry alone yields a degraded report and no error.
func (p *Pipeline) Analyze(ctx context.Context, entry domain.Entry, opts domain.AnalyzeOptions) (domain.AnalysisReport, error) {
	settings, err := p.snapshot()
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	categories := settings.Rubric.Categories
	profile := p.profile(opts.Depth)

	r := newRun(entry.ID, p.logger)
	r.logger.Info("analysis started", "depth", string(opts.Depth), "deadline", profile.Deadline, "categories", len(categories))

	if profile.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, profile.Deadline)
		defer cancel()
	}
	ctx = gateway.WithRetryBudget(ctx, gateway.NewRetryBudget(p.retryBudget))

	since := r.begin(domain.StageExtracting)
	feats, err := p.extractor.Extract(entry.Text)
	if err != nil {
		r.record(domain.StageExtracting, stageFailed, since, err.Error())
		return p.fail(r, settings, nil, domain.NeutralAuthenticity(), fmt.Errorf("extract features: %w", err))
	}
	r.record(domain.StageExtracting, stageCompleted, since, "")

	if entry.IsBlank() {
		return p.finishBlank(r, settings)
	}

	since = r.begin(domain.StageScoring)
	scores, auth, err := p.score(ctx, r, entry, feats, categories)
	if deadlineExpired(ctx) {
		r.markDeadline()
	}
	if err != nil {
		r.record(domain.StageScoring, stageFailed, since, err.Error())
		return p.fail(r, settings, scores, auth, err)
	}
	r.record(domain.StageScoring, statusFor(r), since, "")

	since = r.begin(domain.StageCalibrating)
	scores = calibration.Calibrate(scores, settings.Calibration)
	r.record(domain.StageCalibrating, stageCompleted, since, "")

	since = r.begin(domain.StageAggregating)
	rep := settings.Aggregator.Aggregate(scores, auth, categories)
	r.record(domain.StageAggregating, stageCompleted, since, "")

	if !opts.SkipCoaching && p.workshop != nil {
		since = r.begin(domain.StageWorkshop)
		items, err := p.generateItems(ctx, r, rep, entry, categories, profile)
		rep.WorkshopItems = items
		if err != nil {
			r.record(domain.StageWorkshop, stageFailed, since, err.Error())
			return p.fail(r, settings, scores, auth, err)
		}
		r.record(domain.StageWorkshop, statusFor(r), since, "")
	} else {
		r.record(domain.StageWorkshop, stageSkipped, time.Now(), "coaching disabled")
	}

	if r.deadlineHit() {
		r.logger.Warn("analysis cut short", "error", domain.ErrDeadlineExceeded)
		rep.Flags = report.NormalizeFlags(append(rep.Flags, FlagDeadlineExceeded))
	}
	return p.complete(r, rep, categories)
}

// score runs the category scorer and the authenticity detector
// concurrently. Only a permanent gateway failure or the loss of every
// category before the deadline is returned as an error.
func (p *Pipeline) score(ctx context.Context, r *run, entry domain.Entry, feats domain.ExtractedFeatures, categories []domain.RubricCategory) ([]domain.CategoryScore, domain.AuthenticityAnalysis, error) {
	pre := authenticity.Heuristic(feats)

	var (
		scores   []domain.CategoryScore
		scoreErr error
		auth     = domain.NeutralAuthenticity()
		authErr  error
		g        errgroup.Group
	)
	g.Go(func() error {
		since := time.Now()
		scores, scoreErr = p.scorer.Score(ctx, scoring.Input{
			Entry:        entry,
			Features:     feats,
			Authenticity: &pre,
			Categories:   categories,
		})
		status := stageCompleted
		if scoreErr != nil {
			status = stageDegraded
		}
		r.record(domain.StageCategoryScores, status, since, errDetail(scoreErr))
		return nil
	})
	if p.detector != nil {
		g.Go(func() error {
			since := time.Now()
			auth, authErr = p.detector.Detect(ctx, entry, feats)
			status := stageCompleted
			if authErr != nil {
				status = stageDegraded
			}
			r.record(domain.StageAuthenticity, status, since, errDetail(authErr))
			return nil
		})
	} else {
		authErr = errors.New("authenticity detector is not configured")
	}
	_ = g.Wait()

	if authErr != nil {
		auth = domain.NeutralAuthenticity()
	}
	for _, err := range []error{scoreErr, authErr} {
		if gateway.IsPermanent(err) {
			return scores, auth, fmt.Errorf("model service rejected the run: %w", err)
		}
	}
	if authErr != nil {
		r.markUnavailable(partAuthenticity)
	}

	if scoreErr != nil {
		var partial *scoring.PartialFailure
		if errors.As(scoreErr, &partial) && len(partial.Failed) >= len(categories) && !deadlineExpired(ctx) {
			return scores, auth, fmt.Errorf("%w: %w", domain.ErrNoUsableScores, scoreErr)
		}
		if !errors.As(scoreErr, &partial) {
			return scores, auth, fmt.Errorf("score categories: %w", scoreErr)
		}
		r.markDegraded()
	}
	return scores, auth, nil
}

// generateItems always ranks; the suggestion wave runs only while the
// deadline allows.
func (p *Pipeline) generateItems(ctx context.Context, r *run, rep domain.AnalysisReport, entry domain.Entry, categories []domain.RubricCategory, profile Profile) ([]domain.WorkshopItem, error) {
	items := p.workshop.Rank(rep, entry, categories, profile.MaxWorkshopItems)
	if len(items) == 0 {
		return items, nil
	}

	if r.deadlineHit() || ctx.Err() != nil {
		if deadlineExpired(ctx) {
			r.markDeadline()
		}
		r.markUnavailable(partSuggestions)
		for i := range items {
			items[i].Note = domain.NoSuggestionNote
		}
		return items, nil
	}

	items, err := p.workshop.Suggest(ctx, entry, items, categories)
	if deadlineExpired(ctx) {
		r.markDeadline()
	}
	if err != nil {
		if gateway.IsPermanent(err) {
			return items, fmt.Errorf("model service rejected the run: %w", err)
		}
		r.markUnavailable(partSuggestions)
	}
	return items, nil
}

func (p *Pipeline) finishBlank(r *run, settings Settings) (domain.AnalysisReport, error) {
	categories := settings.Rubric.Categories
	scores := make([]domain.CategoryScore, 0, len(categories))
	for _, c := range categories {
		scores = append(scores, domain.Placeholder(c.ID, domain.StatusInsufficient, domain.JustificationNoContent))
	}

	now := time.Now()
	r.record(domain.StageScoring, stageSkipped, now, "empty entry")
	r.record(domain.StageCalibrating, stageSkipped, now, "empty entry")

	since := r.begin(domain.StageAggregating)
	rep := settings.Aggregator.Aggregate(scores, domain.NeutralAuthenticity(), categories)
	rep.Flags = report.NormalizeFlags(append(rep.Flags, FlagEmptyEntry))
	r.record(domain.StageAggregating, stageCompleted, since, "")
	r.record(domain.StageWorkshop, stageSkipped, time.Now(), "empty entry")

	return p.complete(r, rep, categories)
}

// fail keeps whatever authenticity result the run already has.
func (p *Pipeline) fail(r *run, settings Settings, scores []domain.CategoryScore, auth domain.AuthenticityAnalysis, cause error) (domain.AnalysisReport, error) {
	categories := settings.Rubric.Categories
	if scores == nil {
		scores = []domain.CategoryScore{}
	}
	rep := settings.Aggregator.Aggregate(scores, auth, categories)
	r.record(domain.StageFailed, stageFailed, r.started, cause.Error())
	r.logger.Error("analysis failed", "error", cause)
	return r.finish(rep, domain.RunFailed), cause
}

// deadlineExpired is true only when the run deadline fired, not when the
// caller cancelled.
func deadlineExpired(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (p *Pipeline) complete(r *run, rep domain.AnalysisReport, categories []domain.RubricCategory) (domain.AnalysisReport, error) {
	r.record(domain.StageDone, stageCompleted, r.started, "")
	rep = r.finish(rep, domain.RunDone)
	if err := CheckIntegrity(rep, categories); err != nil {
		r.logger.Error("report integrity check failed", "error", err)
		rep.Status = domain.RunFailed
		return rep, err
	}
	r.logger.Info("analysis finished",
		"overall_index", rep.OverallIndex,
		"scored", rep.ScoredCount,
		"degraded", rep.Degraded,
		"elapsed", time.Since(r.started),
	)
	return rep, nil
}

// CheckIntegrity verifies the structural guarantees every report makes.
func CheckIntegrity(rep domain.AnalysisReport, categories []domain.RubricCategory) error {
	if rep.RunID == "" {
		return &domain.IntegrityError{Field: "run_id", Reason: "missing"}
	}
	if len(rep.Categories) != len(categories) {
		return &domain.IntegrityError{
			Field:  "categories",
			Reason: fmt.Sprintf("expected %d categories, got %d", len(categories), len(rep.Categories)),
		}
	}
	scored := 0
	for i, c := range rep.Categories {
		if c.CategoryID != categories[i].ID {
			return &domain.IntegrityError{Field: "categories", Reason: fmt.Sprintf("position %d holds %q, want %q", i, c.CategoryID, categories[i].ID)}
		}
		if c.HasScore() {
			scored++
			if v := c.Value(); math.IsNaN(v) || v < domain.MinScore || v > domain.MaxScore {
				return &domain.IntegrityError{Field: "categories." + c.CategoryID, Reason: fmt.Sprintf("score %g out of range", v)}
			}
		} else if c.Status == domain.StatusScored {
			return &domain.IntegrityError{Field: "categories." + c.CategoryID, Reason: "scored without a value"}
		}
	}
	if scored != rep.ScoredCount {
		return &domain.IntegrityError{Field: "scored_count", Reason: fmt.Sprintf("report says %d, found %d", rep.ScoredCount, scored)}
	}
	if math.IsNaN(rep.OverallIndex) || rep.OverallIndex < 0 || rep.OverallIndex > 100 {
		return &domain.IntegrityError{Field: "overall_index", Reason: fmt.Sprintf("%g out of range", rep.OverallIndex)}
	}
	return nil
}

func statusFor(r *run) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded || r.deadline {
		return stageDegraded
	}
	return stageCompleted
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

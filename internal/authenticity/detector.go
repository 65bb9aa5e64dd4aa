package authenticity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/features"
	"NarrativeScorer/internal/gateway"
)

const (
	stageName          = "authenticity"
	defaultCallTimeout = 20 * time.Second
)

const detectorRole = `You judge whether a student's writing sounds authentic or manufactured.
Manufactured writing leans on buzzwords, generic claims and résumé phrasing; authentic writing has specific moments, a personal voice and honest reflection.
Give an authenticity score from 0 (fully manufactured) to 10 (clearly authentic) and short snake_case flags.`

const detectorFormat = `{"score": <0-10>, "voice_type": "manufactured" | "mixed" | "authentic", "red_flags": ["..."], "green_flags": ["..."]}`

var detectorSchema = gateway.Schema{
	Name: "authenticity",
	Definition: `
score:        number & >=0 & <=10
voice_type:   "manufactured" | "mixed" | "authentic"
red_flags?:   [...string]
green_flags?: [...string]
`,
}

type answer struct {
	Score      float64  `json:"score"`
	VoiceType  string   `json:"voice_type"`
	RedFlags   []string `json:"red_flags"`
	GreenFlags []string `json:"green_flags"`
}

type Config struct {
	CallTimeout time.Duration
}

// Detector estimates how manufactured an entry sounds.
type Detector struct {
	invoker gateway.Invoker
	cfg     Config
	logger  *slog.Logger
}

func New(invoker gateway.Invoker, cfg Config, logger *slog.Logger) *Detector {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{invoker: invoker, cfg: cfg, logger: logger}
}

// Detect performs one gateway call. On failure it returns the neutral
// analysis together with the error so callers can keep going.
func (d *Detector) Detect(ctx context.Context, entry domain.Entry, f domain.ExtractedFeatures) (domain.AuthenticityAnalysis, error) {
	payload, err := d.invoker.Invoke(ctx, buildPrompt(entry, f), detectorSchema, d.cfg.CallTimeout)
	if err != nil {
		d.logger.Warn("authenticity detection failed", "error", err)
		return domain.NeutralAuthenticity(), err
	}

	var a answer
	if err := payload.Decode(&a); err != nil {
		return domain.NeutralAuthenticity(), fmt.Errorf("decode authenticity payload: %w", err)
	}
	voice, _ := domain.ParseVoiceType(a.VoiceType)

	return domain.AuthenticityAnalysis{
		Score:      domain.Float(domain.ClampScore(a.Score)),
		VoiceType:  voice,
		RedFlags:   NormalizeFlags(a.RedFlags),
		GreenFlags: NormalizeFlags(a.GreenFlags),
		Source:     domain.SourceModel,
	}, nil
}

func buildPrompt(entry domain.Entry, f domain.ExtractedFeatures) gateway.PromptSpec {
	pre := Heuristic(f)

	var b strings.Builder
	b.WriteString(entry.Header())
	b.WriteString("\nEntry text:\n<<<\n")
	b.WriteString(entry.Text)
	b.WriteString("\n>>>\n\nExtracted features:\n")
	b.WriteString(features.Describe(f))
	fmt.Fprintf(&b, "\nHeuristic pre-signals (may be wrong): voice_type=%s red_flags=%s green_flags=%s\n",
		pre.VoiceType, strings.Join(pre.RedFlags, ","), strings.Join(pre.GreenFlags, ","))

	return gateway.PromptSpec{
		Stage:   stageName,
		Role:    detectorRole,
		Context: b.String(),
		Format:  detectorFormat,
	}
}

// NormalizeFlags turns free-text flags into unique snake_case tags.
func NormalizeFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	seen := make(map[string]bool, len(flags))
	for _, flag := range flags {
		tag := snakeCase(flag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

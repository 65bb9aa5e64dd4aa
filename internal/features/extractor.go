// Package features derives structural and linguistic signals from entry
// text without calling any external service.
package features

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"NarrativeScorer/internal/domain"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s|$)`)

// Extractor runs the marker tables over entry text. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	rules []markerRule
}

// NewExtractor returns an extractor with the built-in marker tables.
func NewExtractor() *Extractor {
	return &Extractor{rules: defaultRules}
}

// Extract returns the located markers of every family. Empty text yields
// empty feature sets. The only failure is text that is not valid UTF-8,
// since offsets could not be codepoint aligned.
func (e *Extractor) Extract(text string) (domain.ExtractedFeatures, error) {
	if !utf8.ValidString(text) {
		return domain.ExtractedFeatures{}, fmt.Errorf("extract features: %w: text is not valid UTF-8", domain.ErrInvalidEntry)
	}

	out := domain.ExtractedFeatures{
		Voice:         []domain.Marker{},
		Evidence:      []domain.Marker{},
		Arc:           []domain.Marker{},
		Collaboration: []domain.Marker{},
		Reflection:    []domain.Marker{},
	}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}

	offsets := runeOffsets(text)
	byFamily := map[domain.MarkerFamily][]domain.Marker{}
	for _, r := range e.rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			byFamily[r.family] = append(byFamily[r.family], domain.Marker{
				Family: r.family,
				Label:  r.label,
				Text:   text[loc[0]:loc[1]],
				Start:  offsets[loc[0]],
				End:    offsets[loc[1]],
			})
		}
	}
	for family, markers := range byFamily {
		sortMarkers(markers)
		byFamily[family] = markers
	}

	out.Voice = orEmpty(byFamily[domain.FamilyVoice])
	out.Evidence = orEmpty(byFamily[domain.FamilyEvidence])
	out.Arc = orEmpty(byFamily[domain.FamilyArc])
	out.Collaboration = orEmpty(byFamily[domain.FamilyCollaboration])
	out.Reflection = orEmpty(byFamily[domain.FamilyReflection])

	out.WordCount = len(strings.Fields(text))
	out.SentenceCount = countSentences(text)
	out.FirstPersonCount = out.CountLabel(domain.FamilyVoice, labelFirstPerson)
	out.BuzzwordCount = out.CountLabel(domain.FamilyVoice, labelBuzzword)
	if out.WordCount > 0 {
		density := float64(out.BuzzwordCount) / float64(out.WordCount) * 100
		out.BuzzwordDensity = math.Round(density*100) / 100
	}
	return out, nil
}

// runeOffsets maps every byte position of text (and len(text)) to the
// index of the rune it belongs to.
func runeOffsets(text string) []int {
	idx := make([]int, len(text)+1)
	r := 0
	for b := 0; b < len(text); {
		_, size := utf8.DecodeRuneInString(text[b:])
		for k := 0; k < size; k++ {
			idx[b+k] = r
		}
		b += size
		r++
	}
	idx[len(text)] = r
	return idx
}

func sortMarkers(markers []domain.Marker) {
	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].Start != markers[j].Start {
			return markers[i].Start < markers[j].Start
		}
		if markers[i].End != markers[j].End {
			return markers[i].End < markers[j].End
		}
		return markers[i].Label < markers[j].Label
	})
}

func countSentences(text string) int {
	n := 0
	for _, part := range sentenceEnd.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func orEmpty(markers []domain.Marker) []domain.Marker {
	if markers == nil {
		return []domain.Marker{}
	}
	return markers
}

// Describe renders a compact, deterministic summary for prompts.
func Describe(f domain.ExtractedFeatures) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "words=%d sentences=%d first_person=%d buzzwords=%d buzzword_density=%.2f/100w\n",
		f.WordCount, f.SentenceCount, f.FirstPersonCount, f.BuzzwordCount, f.BuzzwordDensity)
	for _, family := range domain.Families {
		markers := f.Family(family)
		fmt.Fprintf(&sb, "%s (%d):", family, len(markers))
		limit := len(markers)
		if limit > 8 {
			limit = 8
		}
		for _, m := range markers[:limit] {
			fmt.Fprintf(&sb, " [%s %q]", m.Label, m.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

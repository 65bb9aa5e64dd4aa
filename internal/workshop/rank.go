package workshop

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"NarrativeScorer/internal/domain"
)

// evidenceGapScore stands in for the missing score of an unverified
// category when computing its impact.
const evidenceGapScore = 5.0

var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("narrativescorer/workshop-item"))

// ItemID derives a stable id from the entry and category.
func ItemID(entryID, categoryID string) string {
	return uuid.NewSHA1(itemNamespace, []byte(entryID+"/"+categoryID)).String()
}

func severityFor(distance float64) domain.Severity {
	switch {
	case distance >= 5:
		return domain.SeverityHigh
	case distance >= 3:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// Rank lists revision candidates deterministically: scored categories
// below threshold and categories whose evidence could not be verified.
// Items are ordered by impact, then severity, then declaration order.
func Rank(report domain.AnalysisReport, entry domain.Entry, categories []domain.RubricCategory, threshold float64) []domain.WorkshopItem {
	weights := domain.NormalizedWeights(categories)

	type candidate struct {
		item  domain.WorkshopItem
		order int
	}
	var candidates []candidate

	for i, c := range categories {
		s, ok := report.Category(c.ID)
		if !ok {
			continue
		}

		var distance float64
		var severity domain.Severity
		switch {
		case s.Status == domain.StatusScored && s.HasScore() && s.Value() < threshold:
			distance = domain.MaxScore - s.Value()
			severity = severityFor(distance)
		case s.Status == domain.StatusUnverified:
			distance = domain.MaxScore - evidenceGapScore
			severity = domain.SeverityMedium
		default:
			continue
		}

		candidates = append(candidates, candidate{
			order: i,
			item: domain.WorkshopItem{
				ID:          ItemID(entry.ID, c.ID),
				Severity:    severity,
				CategoryID:  c.ID,
				Impact:      math.Round(weights[c.ID]*distance*1000) / 1000,
				Problem:     problemQuote(entry.Text, s.Evidence),
				Suggestions: []domain.Suggestion{},
			},
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		x, y := candidates[a], candidates[b]
		if x.item.Impact != y.item.Impact {
			return x.item.Impact > y.item.Impact
		}
		if x.item.Severity.Rank() != y.item.Severity.Rank() {
			return x.item.Severity.Rank() > y.item.Severity.Rank()
		}
		return x.order < y.order
	})

	items := make([]domain.WorkshopItem, len(candidates))
	for i, c := range candidates {
		items[i] = c.item
		items[i].Rank = i + 1
	}
	return items
}

// problemQuote locates the first evidence quote in text, or falls back to
// the first sentence.
func problemQuote(text string, evidence []string) domain.Quote {
	for _, q := range evidence {
		if q == "" {
			continue
		}
		if idx := strings.Index(text, q); idx >= 0 {
			start := utf8.RuneCountInString(text[:idx])
			return domain.Quote{Text: q, Start: start, End: start + utf8.RuneCountInString(q)}
		}
	}
	return firstSentence(text)
}

func firstSentence(text string) domain.Quote {
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	body := text[lead:]
	if body == "" {
		return domain.Quote{}
	}

	end := len(body)
	for i, r := range body {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(body) {
			break
		}
		if nr, _ := utf8.DecodeRuneInString(body[next:]); unicode.IsSpace(nr) {
			end = next
			break
		}
	}

	sentence := strings.TrimRightFunc(body[:end], unicode.IsSpace)
	start := utf8.RuneCountInString(text[:lead])
	return domain.Quote{Text: sentence, Start: start, End: start + utf8.RuneCountInString(sentence)}
}

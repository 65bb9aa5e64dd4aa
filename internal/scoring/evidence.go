package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"NarrativeScorer/internal/domain"
)

const quoteMarks = "\"'“”‘’"

// cleanQuote trims whitespace and wrapping quote marks a model tends to add.
func cleanQuote(q string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(q), quoteMarks))
}

// isNull reports whether a raw field was absent or JSON null.
func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// validate turns one model answer into a category score. Any violation
// yields an unverified placeholder and the reason it was discarded.
func (s *Scorer) validate(categoryID string, answer *categoryAnswer, text string) (domain.CategoryScore, *domain.ValidationError) {
	reject := func(reason string) (domain.CategoryScore, *domain.ValidationError) {
		return domain.Placeholder(categoryID, domain.StatusUnverified, domain.JustificationUnverifiable),
			&domain.ValidationError{CategoryID: categoryID, Reason: reason}
	}

	if answer == nil {
		return reject("category missing from model output")
	}
	if isNull(answer.Score) {
		return reject("score missing")
	}
	var score float64
	if err := json.Unmarshal(answer.Score, &score); err != nil {
		return reject(fmt.Sprintf("score %s is not a number", answer.Score))
	}
	var quotes []string
	if !isNull(answer.Evidence) {
		if err := json.Unmarshal(answer.Evidence, &quotes); err != nil {
			return reject("evidence is not a list of strings")
		}
	}
	var justification string
	if !isNull(answer.Justification) {
		if err := json.Unmarshal(answer.Justification, &justification); err != nil {
			return reject("justification is not a string")
		}
	}

	if math.IsNaN(score) || score < domain.MinScore || score > domain.MaxScore {
		return reject(fmt.Sprintf("score %g outside [%g, %g]", score, domain.MinScore, domain.MaxScore))
	}

	evidence := make([]string, 0, len(quotes))
	for _, raw := range quotes {
		q := cleanQuote(raw)
		if q == "" {
			continue
		}
		if !strings.Contains(text, q) {
			return reject(fmt.Sprintf("evidence %q is not a verbatim quote", q))
		}
		evidence = append(evidence, q)
	}
	if len(evidence) == 0 && strings.TrimSpace(text) != "" {
		return reject("no evidence quoted")
	}
	if s.cfg.MaxEvidence > 0 && len(evidence) > s.cfg.MaxEvidence {
		evidence = evidence[:s.cfg.MaxEvidence]
	}

	return domain.CategoryScore{
		CategoryID:    categoryID,
		Score:         domain.Float(score),
		Evidence:      evidence,
		Justification: truncateRunes(strings.TrimSpace(justification), s.cfg.MaxJustificationRunes),
		Status:        domain.StatusScored,
	}, nil
}

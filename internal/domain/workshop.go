package domain

// Severity ranks how much a workshop item matters.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

const NoSuggestionNote = "problem identified, no machine-generated suggestion"

// Quote is a located excerpt of the entry text (rune offsets, End exclusive).
type Quote struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Suggestion is one proposed rewrite.
type Suggestion struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
}

// WorkshopItem is a ranked, evidence-linked revision suggestion.
type WorkshopItem struct {
	ID          string       `json:"id"`
	Rank        int          `json:"rank"`
	Severity    Severity     `json:"severity"`
	CategoryID  string       `json:"category_id"`
	Impact      float64      `json:"impact"`
	Problem     Quote        `json:"problem"`
	Suggestions []Suggestion `json:"suggestions"`
	Note        string       `json:"note,omitempty"`
}

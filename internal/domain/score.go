package domain

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// ScoreStatus says how much a category score can be trusted.
type ScoreStatus string

const (
	// StatusScored carries a validated score with verbatim evidence.
	StatusScored ScoreStatus = "scored"
	// StatusUnverified means the model answered but the answer failed validation.
	StatusUnverified ScoreStatus = "unverified"
	// StatusUnavailable means no answer arrived (batch failure or deadline).
	StatusUnavailable ScoreStatus = "unavailable"
	// StatusInsufficient means there was no text to score.
	StatusInsufficient ScoreStatus = "insufficient"
)

const (
	JustificationUnverifiable = "insufficient verifiable evidence"
	JustificationUnavailable  = "score unavailable: model output could not be used"
	JustificationNoContent    = "no text to evaluate"
)

// CategoryScore is the score of one rubric category. Score is nil when the
// category could not be scored. Values are never edited in place; the
// calibrator produces new ones.
type CategoryScore struct {
	CategoryID       string      `json:"category_id"`
	Score            *float64    `json:"score"`
	RawScore         *float64    `json:"raw_score,omitempty"`
	Evidence         []string    `json:"evidence"`
	Justification    string      `json:"justification"`
	Status           ScoreStatus `json:"status"`
	Calibrated       bool        `json:"calibrated"`
	CalibrationShift float64     `json:"calibration_shift,omitempty"`
}

// HasScore reports whether a numeric score is present.
func (s CategoryScore) HasScore() bool {
	return s.Score != nil
}

// Value returns the score or zero when unset.
func (s CategoryScore) Value() float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// Placeholder builds an unscored category value.
func Placeholder(categoryID string, status ScoreStatus, justification string) CategoryScore {
	return CategoryScore{
		CategoryID:    categoryID,
		Evidence:      []string{},
		Justification: justification,
		Status:        status,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ClampScore keeps v inside [MinScore, MaxScore].
func ClampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

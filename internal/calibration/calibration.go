package calibration

import (
	"fmt"
	"math"
	"slices"

	"NarrativeScorer/internal/domain"
)

// ShiftStep is the granularity every calibration shift must respect.
const ShiftStep = 0.5

// Rule shifts raw scores of one category (or every category when Category
// is empty) that fall in [Min, Max). A Max of 10 includes 10.
type Rule struct {
	Category string  `yaml:"category" json:"category"`
	Min      float64 `yaml:"min" json:"min"`
	Max      float64 `yaml:"max" json:"max"`
	Shift    float64 `yaml:"shift" json:"shift"`
}

func (r Rule) matches(categoryID string, raw float64) bool {
	if r.Category != "" && r.Category != categoryID {
		return false
	}
	if raw < r.Min {
		return false
	}
	return raw < r.Max || (r.Max >= domain.MaxScore && raw <= r.Max)
}

// Table is an ordered rule list; the first matching rule wins.
type Table struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Validate rejects ranges outside the score scale and shifts that are
// not half-point multiples.
func (t Table) Validate() error {
	for i, r := range t.Rules {
		if r.Min < domain.MinScore || r.Max > domain.MaxScore || r.Min >= r.Max {
			return fmt.Errorf("calibration rule %d: range [%g, %g) is invalid", i, r.Min, r.Max)
		}
		if steps := r.Shift / ShiftStep; steps != math.Trunc(steps) {
			return fmt.Errorf("calibration rule %d: shift %g is not a multiple of %g", i, r.Shift, ShiftStep)
		}
	}
	return nil
}

func (t Table) lookup(categoryID string, raw float64) (float64, bool) {
	for _, r := range t.Rules {
		if r.matches(categoryID, raw) {
			return r.Shift, true
		}
	}
	return 0, false
}

// Calibrate returns a new slice with every scored, not yet calibrated
// value shifted by the table and clamped to the score scale. Values that
// are unscored or already calibrated pass through untouched, so applying
// it twice equals applying it once.
func Calibrate(scores []domain.CategoryScore, table Table) []domain.CategoryScore {
	out := make([]domain.CategoryScore, len(scores))
	for i, s := range scores {
		out[i] = s
		out[i].Evidence = slices.Clone(s.Evidence)
		if !s.HasScore() || s.Calibrated {
			continue
		}

		raw := *s.Score
		shift, _ := table.lookup(s.CategoryID, raw)
		calibrated := domain.ClampScore(raw + shift)

		out[i].RawScore = domain.Float(raw)
		out[i].Score = domain.Float(calibrated)
		out[i].CalibrationShift = calibrated - raw
		out[i].Calibrated = true
	}
	return out
}

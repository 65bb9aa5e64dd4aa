package domain

// Anchors describe what a 0, a 5 and a 10 look like for one category.
type Anchors struct {
	Low  string `yaml:"low" json:"low"`
	Mid  string `yaml:"mid" json:"mid"`
	High string `yaml:"high" json:"high"`
}

// RubricCategory is read-only configuration for one scored dimension.
type RubricCategory struct {
	ID      string  `yaml:"id" json:"id"`
	Label   string  `yaml:"label" json:"label"`
	Anchors Anchors `yaml:"anchors" json:"anchors"`
	Weight  float64 `yaml:"weight" json:"weight"`
}

// Rubric is the ordered set of categories. Declaration order is the
// output order of every report.
type Rubric struct {
	Categories []RubricCategory `yaml:"categories" json:"categories"`
}

// Index returns the declaration position of a category id, or -1.
func (r Rubric) Index(id string) int {
	for i, c := range r.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// NormalizedWeights returns weights scaled to sum to 1. When every weight
// is zero the categories share equally.
func NormalizedWeights(categories []RubricCategory) map[string]float64 {
	out := make(map[string]float64, len(categories))
	if len(categories) == 0 {
		return out
	}
	var total float64
	for _, c := range categories {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	for _, c := range categories {
		switch {
		case total == 0:
			out[c.ID] = 1 / float64(len(categories))
		case c.Weight > 0:
			out[c.ID] = c.Weight / total
		default:
			out[c.ID] = 0
		}
	}
	return out
}

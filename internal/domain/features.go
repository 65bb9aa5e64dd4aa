package domain

// MarkerFamily groups related textual signals.
type MarkerFamily string

const (
	FamilyVoice         MarkerFamily = "voice"
	FamilyEvidence      MarkerFamily = "evidence"
	FamilyArc           MarkerFamily = "arc"
	FamilyCollaboration MarkerFamily = "collaboration"
	FamilyReflection    MarkerFamily = "reflection"
)

// Families lists every marker family in a fixed order.
var Families = []MarkerFamily{
	FamilyVoice,
	FamilyEvidence,
	FamilyArc,
	FamilyCollaboration,
	FamilyReflection,
}

// Marker is one located occurrence of a signal. Start and End are rune
// offsets into the entry text, End exclusive.
type Marker struct {
	Family MarkerFamily `json:"family"`
	Label  string       `json:"label"`
	Text   string       `json:"text"`
	Start  int          `json:"start"`
	End    int          `json:"end"`
}

// ExtractedFeatures is the pure, model-free signal record of one entry.
type ExtractedFeatures struct {
	Voice         []Marker `json:"voice"`
	Evidence      []Marker `json:"evidence"`
	Arc           []Marker `json:"arc"`
	Collaboration []Marker `json:"collaboration"`
	Reflection    []Marker `json:"reflection"`

	WordCount        int     `json:"word_count"`
	SentenceCount    int     `json:"sentence_count"`
	FirstPersonCount int     `json:"first_person_count"`
	BuzzwordCount    int     `json:"buzzword_count"`
	BuzzwordDensity  float64 `json:"buzzword_density"`
}

// Family returns the markers of one family.
func (f ExtractedFeatures) Family(family MarkerFamily) []Marker {
	switch family {
	case FamilyVoice:
		return f.Voice
	case FamilyEvidence:
		return f.Evidence
	case FamilyArc:
		return f.Arc
	case FamilyCollaboration:
		return f.Collaboration
	case FamilyReflection:
		return f.Reflection
	}
	return nil
}

// Count returns how many markers of the family were found.
func (f ExtractedFeatures) Count(family MarkerFamily) int {
	return len(f.Family(family))
}

// CountLabel returns how many markers of the family carry the label.
func (f ExtractedFeatures) CountLabel(family MarkerFamily, label string) int {
	n := 0
	for _, m := range f.Family(family) {
		if m.Label == label {
			n++
		}
	}
	return n
}

// Empty reports whether no marker of any family was found.
func (f ExtractedFeatures) Empty() bool {
	for _, family := range Families {
		if f.Count(family) > 0 {
			return false
		}
	}
	return true
}

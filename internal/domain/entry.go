package domain

import (
	"fmt"
	"strings"
)

// EntryKind tags what sort of self-description an entry is.
type EntryKind string

const (
	KindWork              EntryKind = "work"
	KindVolunteer         EntryKind = "volunteer"
	KindSchoolActivity    EntryKind = "school_activity"
	KindProject           EntryKind = "project"
	KindPersonalEssay     EntryKind = "personal_essay"
	KindSupplementalEssay EntryKind = "supplemental_essay"
)

// Entry is one unit of student-authored text submitted for analysis.
// The pipeline never mutates it.
type Entry struct {
	ID           string
	Kind         EntryKind
	Title        string
	Text         string
	Duration     string
	HoursPerWeek *float64
	Achievements []string
}

// IsBlank reports whether the entry carries no analysable text.
func (e Entry) IsBlank() bool {
	return strings.TrimSpace(e.Text) == ""
}

// Header renders the entry metadata as prompt lines.
func (e Entry) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entry kind: %s\n", e.Kind)
	if e.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", e.Title)
	}
	if e.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", e.Duration)
	}
	if e.HoursPerWeek != nil {
		fmt.Fprintf(&b, "Hours per week: %g\n", *e.HoursPerWeek)
	}
	for _, a := range e.Achievements {
		fmt.Fprintf(&b, "Achievement: %s\n", a)
	}
	return b.String()
}

// Depth selects the time and cost profile of one analysis.
type Depth string

const (
	DepthQuick         Depth = "quick"
	DepthStandard      Depth = "standard"
	DepthComprehensive Depth = "comprehensive"
)

// ParseDepth maps free text onto a Depth, defaulting to standard.
func ParseDepth(value string) Depth {
	switch Depth(strings.ToLower(strings.TrimSpace(value))) {
	case DepthQuick:
		return DepthQuick
	case DepthComprehensive:
		return DepthComprehensive
	default:
		return DepthStandard
	}
}

// AnalyzeOptions are the caller-facing knobs of one analysis.
type AnalyzeOptions struct {
	Depth        Depth
	SkipCoaching bool
}

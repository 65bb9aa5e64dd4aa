package authenticity

import (
	"math"

	"NarrativeScorer/internal/domain"
)

const (
	buzzwordDensityLimit = 3.0
	minWordsForAbsence   = 40
)

// Heuristic derives cheap voice pre-signals from extracted features. They
// are prompt context for the model stages and never the reported result.
func Heuristic(f domain.ExtractedFeatures) domain.AuthenticityAnalysis {
	if f.WordCount == 0 {
		a := domain.NeutralAuthenticity()
		a.Source = domain.SourceHeuristic
		return a
	}

	red := []string{}
	green := []string{}

	if f.BuzzwordDensity > buzzwordDensityLimit {
		red = append(red, "buzzword_heavy")
	}
	if f.Count(domain.FamilyEvidence) == 0 && f.WordCount >= minWordsForAbsence {
		red = append(red, "no_concrete_detail")
	}
	if f.FirstPersonCount == 0 && f.WordCount >= minWordsForAbsence/2 {
		red = append(red, "detached_voice")
	}
	if f.Count(domain.FamilyReflection) == 0 && f.WordCount >= 2*minWordsForAbsence {
		red = append(red, "no_reflection")
	}

	if f.Count(domain.FamilyEvidence) >= 2 {
		green = append(green, "concrete_detail")
	}
	if f.CountLabel(domain.FamilyVoice, "dialogue") > 0 || f.CountLabel(domain.FamilyVoice, "sensory_detail") > 0 {
		green = append(green, "specific_moments")
	}
	if f.Count(domain.FamilyReflection) > 0 {
		green = append(green, "reflective")
	}
	if f.Count(domain.FamilyCollaboration) > 0 {
		green = append(green, "names_collaborators")
	}

	score := domain.ClampScore(math.Round((5+float64(len(green))-1.5*float64(len(red)))*2) / 2)

	voice := domain.VoiceMixed
	switch {
	case score >= 7:
		voice = domain.VoiceAuthentic
	case score <= 4:
		voice = domain.VoiceManufactured
	}

	return domain.AuthenticityAnalysis{
		Score:      domain.Float(score),
		VoiceType:  voice,
		RedFlags:   red,
		GreenFlags: green,
		Source:     domain.SourceHeuristic,
	}
}

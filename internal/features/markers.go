package features

import (
	"regexp"

	"NarrativeScorer/internal/domain"
)

const (
	labelFirstPerson = "first_person"
	labelBuzzword    = "buzzword"
)

// markerRule maps one pattern to a labelled marker of a family.
type markerRule struct {
	family  domain.MarkerFamily
	label   string
	pattern *regexp.Regexp
}

func rule(family domain.MarkerFamily, label, pattern string) markerRule {
	return markerRule{family: family, label: label, pattern: regexp.MustCompile(pattern)}
}

// defaultRules is evaluated in order; every rule contributes all of its matches.
var defaultRules = []markerRule{
	rule(domain.FamilyVoice, labelFirstPerson, `\b(?:I[’']m|I[’']ve|I[’']d|I[’']ll|I|[Mm]e|[Mm]y|[Mm]ine|[Mm]yself)\b`),
	rule(domain.FamilyVoice, "dialogue", `"[^"\n]{3,}"|“[^”\n]{3,}”`),
	rule(domain.FamilyVoice, "sensory_detail", `(?i)\b(?:smell(?:ed)?|tast(?:e|ed)|heard|loud|quiet|cold|warm|bright|dim|sticky|rough|smooth|sweat(?:ing|y)?|shaking|trembl(?:ed|ing))\b`),
	rule(domain.FamilyVoice, labelBuzzword, `(?i)\b(?:passionate|passion|synergy|leverag(?:e|ed|ing)|impactful|spearhead(?:ed|ing)?|game[- ]changer|made a difference|make a difference|changed my life|life[- ]changing|outside (?:of )?my comfort zone|hardworking|go-getter|think outside the box)\b`),
	rule(domain.FamilyVoice, "question", `[A-Z][^.!?\n]{2,}\?`),

	rule(domain.FamilyEvidence, "quantity", `(?i)\b\d[\d,]*(?:\.\d+)?\s*(?:lbs?|pounds|kg|hours?|hrs|people|students|volunteers|members|participants|dollars|miles|kids|children|families|meals|books|events|sessions|times|donors|attendees|customers|followers|signatures|trees|teams|games|articles|lines)\b`),
	rule(domain.FamilyEvidence, "duration", `(?i)\b\d+[- ](?:day|week|month|year|hour|semester)s?\b`),
	rule(domain.FamilyEvidence, "currency", `\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:k|K|million|thousand)\b)?`),
	rule(domain.FamilyEvidence, "percentage", `\b\d+(?:\.\d+)?\s?(?:%|percent\b)`),
	rule(domain.FamilyEvidence, "outcome_verb", `(?i)\b(?:raised|collected|increased|reduced|grew|doubled|tripled|won|earned|published|launched|built|founded|created|served|delivered|completed|placed)\b`),
	rule(domain.FamilyEvidence, "ranking", `(?i)\b(?:\d+(?:st|nd|rd|th) place|first place|finalist|semifinalist|champion|award(?:ed)?)\b`),

	rule(domain.FamilyArc, "challenge", `(?i)\b(?:struggl(?:e|ed|ing)|challeng(?:e|es|ed|ing)|obstacles?|fail(?:ed|ure)?|setbacks?|difficult(?:y|ies)?|hard time)\b`),
	rule(domain.FamilyArc, "turning_point", `(?i)\b(?:realized|suddenly|that[’']s when|that was when|decided|turning point|until one day|everything changed)\b`),
	rule(domain.FamilyArc, "resolution", `(?i)\b(?:eventually|finally|in the end|as a result|by the end|ultimately)\b`),
	rule(domain.FamilyArc, "temporal", `(?i)\b(?:at first|initially|at the beginning|later|afterwards?|the next (?:day|week|year)|over time|since then)\b`),

	rule(domain.FamilyCollaboration, "coordination", `(?i)\b(?:coordinat(?:e|ed|ing|ion)|organiz(?:e|ed|ing)|schedul(?:e|ed|ing)|recruit(?:ed|ing)?|delegat(?:e|ed|ing))\b`),
	rule(domain.FamilyCollaboration, "teamwork", `(?i)\b(?:team(?:mates?|work)?|together|collaborat(?:e|ed|ing|ion)|partner(?:ed|ing)?|with (?:my|our) (?:peers|classmates|friends|coworkers))\b`),
	rule(domain.FamilyCollaboration, "leadership", `(?i)\b(?:led|lead(?:ing)?|captain|president|directed|managed|chair(?:ed)?)\b`),
	rule(domain.FamilyCollaboration, "mentorship", `(?i)\b(?:mentor(?:ed|ing)?|tutor(?:ed|ing)?|coach(?:ed|ing)?|taught|trained)\b`),

	rule(domain.FamilyReflection, "learning", `(?i)\b(?:I learned|I[’']ve learned|taught me|I discovered|showed me|I came to understand)\b`),
	rule(domain.FamilyReflection, "realization", `(?i)\b(?:I realized|I understood|it dawned on me|I recognized|I noticed)\b`),
	rule(domain.FamilyReflection, "hindsight", `(?i)\b(?:looking back|in hindsight|in retrospect|now I (?:see|understand|know))\b`),
	rule(domain.FamilyReflection, "change", `(?i)\b(?:changed (?:how|the way|my)|I (?:now|no longer)|made me (?:more|less|a better))\b`),
	rule(domain.FamilyReflection, "future", `(?i)\b(?:I (?:hope|plan|want) to|in the future|going forward|I will continue)\b`),
}

package config

import (
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/report"
)

// DefaultRubric is used when the config file brings no rubric of its own.
func DefaultRubric() domain.Rubric {
	return domain.Rubric{Categories: []domain.RubricCategory{
		{
			ID:     "narrative_arc",
			Label:  "Narrative arc",
			Weight: 0.15,
			Anchors: domain.Anchors{
				Low:  "A list of facts with no sense of before, during or after.",
				Mid:  "A recognisable sequence, but the stakes or turning point stay vague.",
				High: "A clear arc: a situation, a tension or turning point, and a resolution the reader can follow.",
			},
		},
		{
			ID:     "specificity_evidence",
			Label:  "Specificity and evidence",
			Weight: 0.15,
			Anchors: domain.Anchors{
				Low:  "Generic claims with no names, numbers or concrete moments.",
				Mid:  "Some concrete details, but key claims are unsupported.",
				High: "Claims are backed by numbers, named actions and specific moments.",
			},
		},
		{
			ID:     "reflection_insight",
			Label:  "Reflection and insight",
			Weight: 0.12,
			Anchors: domain.Anchors{
				Low:  "No reflection, or only clichés about learning.",
				Mid:  "States a lesson without showing how the thinking changed.",
				High: "Shows a change in thinking tied to specific experiences.",
			},
		},
		{
			ID:     "leadership_initiative",
			Label:  "Leadership and initiative",
			Weight: 0.12,
			Anchors: domain.Anchors{
				Low:  "Participation only; no decisions or ownership shown.",
				Mid:  "Holds a role but the actions taken in it are unclear.",
				High: "Starts or steers something and describes the decisions made.",
			},
		},
		{
			ID:     "collaboration",
			Label:  "Collaboration",
			Weight: 0.10,
			Anchors: domain.Anchors{
				Low:  "Other people are absent from the story.",
				Mid:  "Mentions a team without showing how the work was shared.",
				High: "Shows how the student worked with, relied on or supported others.",
			},
		},
		{
			ID:     "impact_outcomes",
			Label:  "Impact and outcomes",
			Weight: 0.12,
			Anchors: domain.Anchors{
				Low:  "No result is described.",
				Mid:  "A result is claimed but not measured or observed.",
				High: "Concrete, credible outcomes for people or the project.",
			},
		},
		{
			ID:     "voice_style",
			Label:  "Voice and style",
			Weight: 0.10,
			Anchors: domain.Anchors{
				Low:  "Résumé phrasing and buzzwords; could be anyone.",
				Mid:  "Readable but generic in places.",
				High: "A distinct, natural voice that sounds like one particular student.",
			},
		},
		{
			ID:     "community_context",
			Label:  "Community and context",
			Weight: 0.07,
			Anchors: domain.Anchors{
				Low:  "No sense of who was served or the setting.",
				Mid:  "The setting is named but not explained.",
				High: "The community, its needs and the student's place in it are clear.",
			},
		},
		{
			ID:     "growth_trajectory",
			Label:  "Growth trajectory",
			Weight: 0.07,
			Anchors: domain.Anchors{
				Low:  "No change over time.",
				Mid:  "Growth is asserted rather than shown.",
				High: "Shows progression in responsibility or skill with a look ahead.",
			},
		},
	}}
}

// DefaultFlags are the CEL flag rules shipped with the default config.
func DefaultFlags() []report.FlagRule {
	return []report.FlagRule{
		{Name: report.FlagVoiceConcern, Expr: `has_authenticity && (authenticity_score < 4.0 || voice_type == "manufactured")`},
		{Name: "thin_evidence", Expr: `unverified_count >= 3`},
		{Name: "uneven_profile", Expr: `scores.exists(k, scores[k] >= 8.0) && scores.exists(k, scores[k] <= 3.0)`},
		{Name: "standout", Expr: `overall_index >= 85.0 && red_flag_count == 0`},
	}
}

package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/features"
	"NarrativeScorer/internal/gateway"
)

const stageName = "category_scores"

const scorerRole = `You are an experienced admissions reader scoring a student's self-description against a rubric.
Score each listed category from 0 to 10 using its anchors. Every evidence item must be copied verbatim from the entry text.
If the entry offers no support for a category, give a low score and say so instead of inventing evidence.`

const batchFormat = `{"scores": [{"id": "<category id>", "score": <0-10>, "evidence": ["<verbatim quote>", ...], "justification": "<two or three sentences>"}]}`

// batchSchema checks only that every element names its category. Types,
// nulls, ranges and evidence are checked per category so one bad category
// does not discard the whole batch.
var batchSchema = gateway.Schema{
	Name: "category_scores",
	Definition: `
scores: [...{
	id: string
	...
}]
`,
	ArrayKey: "scores",
}

type batchAnswer struct {
	Scores []categoryAnswer `json:"scores"`
}

// categoryAnswer keeps the scored fields raw; validate decodes them.
type categoryAnswer struct {
	ID            string          `json:"id"`
	Score         json.RawMessage `json:"score"`
	Evidence      json.RawMessage `json:"evidence"`
	Justification json.RawMessage `json:"justification"`
}

func buildPrompt(in Input, batch []domain.RubricCategory) gateway.PromptSpec {
	var b strings.Builder
	b.WriteString(in.Entry.Header())
	b.WriteString("\nEntry text:\n<<<\n")
	b.WriteString(in.Entry.Text)
	b.WriteString("\n>>>\n\nExtracted features:\n")
	b.WriteString(features.Describe(in.Features))

	if in.Authenticity != nil {
		a := in.Authenticity
		fmt.Fprintf(&b, "\nVoice pre-signals: voice_type=%s", a.VoiceType)
		if len(a.RedFlags) > 0 {
			fmt.Fprintf(&b, " red_flags=%s", strings.Join(a.RedFlags, ","))
		}
		if len(a.GreenFlags) > 0 {
			fmt.Fprintf(&b, " green_flags=%s", strings.Join(a.GreenFlags, ","))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nCategories to score:\n")
	for _, c := range batch {
		fmt.Fprintf(&b, "- id: %s\n  label: %s\n  0: %s\n  5: %s\n  10: %s\n",
			c.ID, c.Label, c.Anchors.Low, c.Anchors.Mid, c.Anchors.High)
	}

	return gateway.PromptSpec{
		Stage:   stageName,
		Role:    scorerRole,
		Context: b.String(),
		Format:  batchFormat,
	}
}

package gateway

import (
	"strings"

	"NarrativeScorer/internal/ports"
)

const formatInstruction = "Respond with exactly one JSON object that follows the output format. Do not add commentary."

// PromptSpec bundles what one model call needs: role instructions, the
// rubric/feature context and the expected output format.
type PromptSpec struct {
	Stage   string
	Role    string
	Context string
	Format  string
}

// Messages renders the prompt as a system and a user message.
func (p PromptSpec) Messages(systemPrefix string) []ports.ChatMessage {
	var system strings.Builder
	if prefix := strings.TrimSpace(systemPrefix); prefix != "" {
		system.WriteString(prefix)
		system.WriteString("\n\n")
	}
	system.WriteString(strings.TrimSpace(p.Role))
	system.WriteString("\n\n")
	system.WriteString(formatInstruction)

	var user strings.Builder
	user.WriteString(strings.TrimSpace(p.Context))
	if format := strings.TrimSpace(p.Format); format != "" {
		user.WriteString("\n\nOutput format:\n")
		user.WriteString(format)
	}

	return []ports.ChatMessage{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user.String()},
	}
}

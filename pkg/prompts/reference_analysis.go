// Package prompts builds the collaborator prompts used across the engine.
// Each builder pairs with a system message and specifies a JSON-only
// response format the llm parse helpers can recover from.
package prompts

import (
	"fmt"
	"strings"

	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// MaxTranscriptChars caps how much of each prior message is quoted into a
// prompt. Long answers carry little referential signal past the first lines.
const MaxTranscriptChars = 400

// BuildReferenceAnalysisPrompt creates the prompt for detecting and resolving
// references to prior conversation turns ("that document", "the second one").
func BuildReferenceAnalysisPrompt(question string, transcript []*models.Message, lastShown []models.RelevantItem) string {
	var prompt strings.Builder

	prompt.WriteString("# Conversational Reference Analysis\n\n")
	prompt.WriteString("Determine whether the new question refers back to earlier turns, and if so rewrite it as a standalone question.\n\n")

	prompt.WriteString("## Recent Conversation\n\n")
	for _, msg := range transcript {
		prompt.WriteString(fmt.Sprintf("[%s] %s\n", msg.Role, truncateForPrompt(msg.Content, MaxTranscriptChars)))
	}
	prompt.WriteString("\n")

	if len(lastShown) > 0 {
		prompt.WriteString("## Items Shown in the Latest Answer\n\n")
		prompt.WriteString("Ordinal references (\"the second one\") index into this list, 1-based:\n\n")
		for i, item := range lastShown {
			prompt.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, item.Type, item.Title))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## New Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Guidelines\n\n")
	prompt.WriteString("- `direct` references use an explicit marker: \"that document\", \"this policy\", \"the second one\", \"it\".\n")
	prompt.WriteString("- `indirect` references are elliptical follow-ups that only make sense given the prior turn: \"and the salary?\", \"what about marketing?\".\n")
	prompt.WriteString("- `none` means the question stands alone. Do NOT invent a reference for a self-contained question.\n")
	prompt.WriteString("- When resolving, substitute the referenced item's title into the question. \"who wrote it?\" after showing \"Travel Policy\" becomes \"who wrote the Travel Policy?\".\n")
	prompt.WriteString("- If a reference marker is present but no shown item plausibly matches, keep has_reference true and leave resolved_question empty.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `has_reference`: boolean\n")
	prompt.WriteString("- `reference_type`: one of \"direct\", \"indirect\", \"none\"\n")
	prompt.WriteString("- `confidence`: 0-100\n")
	prompt.WriteString("- `resolved_question`: the standalone rewrite (empty when has_reference is false or unresolvable)\n")
	prompt.WriteString("- `explanation`: brief reasoning (1 sentence)\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "has_reference": true,
  "reference_type": "direct",
  "confidence": 90,
  "resolved_question": "Who approved the Travel Policy?",
  "explanation": "\"that policy\" points at the only policy in the latest answer."
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildReferenceAnalysisSystemMessage returns the system message for reference resolution.
func BuildReferenceAnalysisSystemMessage() string {
	return `You are a conversation analyst. You decide whether a follow-up question refers to earlier turns and rewrite it so it can be answered without the conversation history.`
}

func truncateForPrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package prompts

import (
	"fmt"
	"strings"

	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// BuildIntentClassificationPrompt creates the prompt for mapping a resolved
// question onto the closed intent vocabulary plus routing hints.
func BuildIntentClassificationPrompt(question string, sessionCtx models.SessionContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Question Intent Classification\n\n")
	prompt.WriteString("Classify the question into exactly one intent and extract routing hints.\n\n")

	prompt.WriteString("## Intents\n\n")
	prompt.WriteString("- `enumerate_documents`: list or count stored documents (\"what documents do you have about HR?\")\n")
	prompt.WriteString("- `enumerate_organizations`: list known organizations or business units\n")
	prompt.WriteString("- `recall_fact`: retrieve a specific stored fact (\"who is the CEO of PDH?\")\n")
	prompt.WriteString("- `combined_lookup`: needs both document search and fact recall in one answer\n")
	prompt.WriteString("- `open_ended`: everything else that is still a legitimate question\n\n")
	prompt.WriteString("Never invent an intent outside this list.\n\n")

	prompt.WriteString("## Routing Targets\n\n")
	prompt.WriteString("- `documents`: document store search\n")
	prompt.WriteString("- `knowledge`: curated knowledge and entity profiles\n")
	prompt.WriteString("- `both`: query both families\n\n")

	if sessionCtx.LastIntent != "" || sessionCtx.Organization != "" {
		prompt.WriteString("## Conversation Hints\n\n")
		if sessionCtx.LastIntent != "" {
			prompt.WriteString(fmt.Sprintf("- Previous intent: %s\n", sessionCtx.LastIntent))
		}
		if sessionCtx.Organization != "" {
			prompt.WriteString(fmt.Sprintf("- Organization under discussion: %s\n", sessionCtx.Organization))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `intent`: one of the five intents above\n")
	prompt.WriteString("- `target`: \"documents\", \"knowledge\", or \"both\"\n")
	prompt.WriteString("- `company`: organization code or name if the question names one, else empty\n")
	prompt.WriteString("- `category`: document category hint if present (e.g. \"policy\", \"report\"), else empty\n")
	prompt.WriteString("- `department`: department hint if present, else empty\n")
	prompt.WriteString("- `confidence`: 0-100\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "intent": "recall_fact",
  "target": "knowledge",
  "company": "PDH",
  "category": "",
  "department": "",
  "confidence": 85
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildIntentClassificationSystemMessage returns the system message for intent classification.
func BuildIntentClassificationSystemMessage() string {
	return `You are a query router for an enterprise document assistant. You classify questions into a fixed intent vocabulary and extract routing hints. You never answer the question itself.`
}

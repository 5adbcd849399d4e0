package prompts

import (
	"fmt"
	"strings"

	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// MaxPriorDocumentChars caps how much of each prior document is quoted into
// the extraction prompt as corroborating context.
const MaxPriorDocumentChars = 1500

// BuildEntityExtractionPrompt creates the prompt for extracting structured
// entities and text corrections from a newly ingested document. Prior
// documents from the same organization provide corroborating evidence for
// suspected scan or OCR errors.
func BuildEntityExtractionPrompt(doc *models.Document, priorDocs []*models.Document) string {
	var prompt strings.Builder

	prompt.WriteString("# Document Entity Extraction\n\n")
	prompt.WriteString("Extract structured entities from the new document and flag likely text corruption.\n\n")

	prompt.WriteString("## New Document\n\n")
	prompt.WriteString(fmt.Sprintf("Title: %s\n", doc.Title))
	if doc.Category != "" {
		prompt.WriteString(fmt.Sprintf("Category: %s\n", doc.Category))
	}
	if doc.Department != "" {
		prompt.WriteString(fmt.Sprintf("Department: %s\n", doc.Department))
	}
	prompt.WriteString("\nContent:\n")
	prompt.WriteString(doc.Content)
	prompt.WriteString("\n\n")

	if len(priorDocs) > 0 {
		prompt.WriteString("## Prior Documents (same organization)\n\n")
		prompt.WriteString("Use these to corroborate spellings, names, and figures:\n\n")
		for i, prior := range priorDocs {
			prompt.WriteString(fmt.Sprintf("### Prior %d: %s\n", i+1, prior.Title))
			prompt.WriteString(truncateForPrompt(prior.EffectiveContent(), MaxPriorDocumentChars))
			prompt.WriteString("\n\n")
		}
	}

	prompt.WriteString("## Entity Types\n\n")
	for _, t := range models.ValidEntityTypes {
		prompt.WriteString(fmt.Sprintf("- `%s`\n", t))
	}
	prompt.WriteString("\nEvery entity must use one of these types. Use a short snake_case `field` key naming the fact (e.g. \"ceo\", \"founded_date\", \"employee_count\").\n\n")

	prompt.WriteString("## Corrections\n\n")
	prompt.WriteString("Report text spans that look like scan or OCR corruption: digit/letter swaps in names (\"J0hn\"), broken words, garbled figures.\n")
	prompt.WriteString("`original_text` must be the EXACT corrupted substring as it appears in the new document.\n")
	prompt.WriteString("Only suggest a correction when prior documents or unambiguous context support it. Do not rewrite stylistic choices.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `entities`: array of\n")
	prompt.WriteString("  - `type`: entity type from the list above\n")
	prompt.WriteString("  - `field`: snake_case fact key\n")
	prompt.WriteString("  - `normalized_value`: canonical value (corrected spelling, ISO dates, plain numbers)\n")
	prompt.WriteString("  - `attributes`: optional string map of qualifiers\n")
	prompt.WriteString("  - `confidence`: 0.0-1.0\n")
	prompt.WriteString("- `corrections`: array of\n")
	prompt.WriteString("  - `original_text`: exact corrupted substring\n")
	prompt.WriteString("  - `corrected_text`: the fix\n")
	prompt.WriteString("  - `confidence`: 0.0-1.0\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "entities": [
    {
      "type": "person",
      "field": "ceo",
      "normalized_value": "John Smith",
      "attributes": {"title": "Chief Executive Officer"},
      "confidence": 0.95
    },
    {
      "type": "date",
      "field": "founded_date",
      "normalized_value": "2009-03-01",
      "confidence": 0.8
    }
  ],
  "corrections": [
    {
      "original_text": "J0hn Sm1th",
      "corrected_text": "John Smith",
      "confidence": 0.9
    }
  ]
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildEntityExtractionSystemMessage returns the system message for entity extraction.
func BuildEntityExtractionSystemMessage() string {
	return `You are a meticulous information extraction system for enterprise documents. You extract only facts the text actually states, normalize their values, and flag probable scan corruption with evidence.`
}

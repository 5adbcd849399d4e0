package prompts

import (
	"fmt"
	"strings"

	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// BuildEntityComparisonPrompt creates the prompt for reconciling newly
// extracted entities against an organization's consolidated profile.
func BuildEntityComparisonPrompt(newEntities []models.Entity, profile *models.EntityProfile) string {
	var prompt strings.Builder

	prompt.WriteString("# Entity Conflict Analysis\n\n")
	prompt.WriteString("Compare newly extracted entities against the existing consolidated profile and recommend how to resolve each disagreement.\n\n")

	prompt.WriteString("## Existing Profile\n\n")
	if profile == nil || len(profile.Entities) == 0 {
		prompt.WriteString("(empty, first document for this organization)\n\n")
	} else {
		for _, entityType := range models.ValidEntityTypes {
			entities := profile.Entities[entityType]
			if len(entities) == 0 {
				continue
			}
			prompt.WriteString(fmt.Sprintf("### %s\n", entityType))
			for _, e := range entities {
				prompt.WriteString(fmt.Sprintf("- %s = %q (confidence %.2f)\n", e.Field, e.NormalizedValue, e.Confidence))
			}
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("## New Entities\n\n")
	for _, e := range newEntities {
		prompt.WriteString(fmt.Sprintf("- [%s] %s = %q (confidence %.2f)\n", e.Type, e.Field, e.NormalizedValue, e.Confidence))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Guidelines\n\n")
	prompt.WriteString("- A conflict exists only when the same type and field carry materially different values. Formatting differences (\"Jan 2009\" vs \"2009-01\") are the same value.\n")
	prompt.WriteString("- `use_new`: the new value supersedes (newer document, corrected spelling, more precise figure).\n")
	prompt.WriteString("- `use_existing`: the existing value stands (new value looks corrupted or less specific).\n")
	prompt.WriteString("- `merge`: both values are true facets and should coexist (e.g. two office locations).\n")
	prompt.WriteString("- Set low confidence when the evidence does not clearly favor either side.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `conflicts`: array of\n")
	prompt.WriteString("  - `type`: entity type\n")
	prompt.WriteString("  - `field`: the disputed field key\n")
	prompt.WriteString("  - `new_value`, `existing_value`: the disagreeing values\n")
	prompt.WriteString("  - `recommendation`: one of \"use_new\", \"use_existing\", \"merge\"\n")
	prompt.WriteString("  - `confidence`: 0.0-1.0\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "conflicts": [
    {
      "type": "person",
      "field": "ceo",
      "new_value": "Jane Doe",
      "existing_value": "John Smith",
      "recommendation": "use_new",
      "confidence": 0.85
    }
  ]
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("If there are no conflicts, return `{\"conflicts\": []}`.\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildEntityComparisonSystemMessage returns the system message for conflict analysis.
func BuildEntityComparisonSystemMessage() string {
	return `You are a data reconciliation expert. You compare extracted facts against a consolidated profile, surface real disagreements, and recommend deterministic resolutions.`
}

package models

// Intent enumerates what a question is asking for.
type Intent string

const (
	IntentEnumerateDocuments     Intent = "enumerate_documents"
	IntentEnumerateOrganizations Intent = "enumerate_organizations"
	IntentRecallFact             Intent = "recall_fact"
	IntentCombinedLookup         Intent = "combined_lookup"
	IntentOpenEnded              Intent = "open_ended"
	IntentBlocked                Intent = "blocked"
)

// ValidIntents contains all intents the classifier may emit.
var ValidIntents = []Intent{
	IntentEnumerateDocuments,
	IntentEnumerateOrganizations,
	IntentRecallFact,
	IntentCombinedLookup,
	IntentOpenEnded,
	IntentBlocked,
}

// IsValidIntent checks if the given intent is in the closed vocabulary.
func IsValidIntent(i Intent) bool {
	for _, v := range ValidIntents {
		if v == i {
			return true
		}
	}
	return false
}

// Target enumerates which source families a question should be routed to.
type Target string

const (
	TargetDocuments Target = "documents"
	TargetKnowledge Target = "knowledge"
	TargetBoth      Target = "both"
)

// IsValidTarget checks if the given target is valid.
func IsValidTarget(t Target) bool {
	return t == TargetDocuments || t == TargetKnowledge || t == TargetBoth
}

// DefaultTargetForIntent maps each intent to its routing target.
func DefaultTargetForIntent(i Intent) Target {
	switch i {
	case IntentEnumerateDocuments:
		return TargetDocuments
	case IntentEnumerateOrganizations, IntentRecallFact:
		return TargetKnowledge
	case IntentCombinedLookup, IntentOpenEnded:
		return TargetBoth
	default:
		return TargetBoth
	}
}

// ReferenceType classifies how a question refers to prior turns.
type ReferenceType string

const (
	ReferenceDirect   ReferenceType = "direct"   // explicit marker ("that document")
	ReferenceIndirect ReferenceType = "indirect" // elliptical follow-up ("and the salary?")
	ReferenceNone     ReferenceType = "none"
)

// ReferenceAnalysis is the transient result of reference resolution.
// Confidence uses the 0-100 conversation-analysis scale.
type ReferenceAnalysis struct {
	HasReference     bool           `json:"has_reference"`
	ReferenceType    ReferenceType  `json:"reference_type"`
	Confidence       int            `json:"confidence"`
	ResolvedQuestion string         `json:"resolved_question"`
	ReferencedItems  []RelevantItem `json:"referenced_items,omitempty"`
	Explanation      string         `json:"explanation,omitempty"`
}

// IntentAnalysis is the transient result of intent classification.
// Confidence uses the 0-100 conversation-analysis scale.
type IntentAnalysis struct {
	Intent     Intent `json:"intent"`
	Target     Target `json:"target"`
	Company    string `json:"company,omitempty"`  // normalized organization code hint
	Category   string `json:"category,omitempty"` // document category hint
	Department string `json:"department,omitempty"`
	Confidence int    `json:"confidence"`
	// Degraded is true when the collaborator response could not be parsed and
	// the deterministic default was applied.
	Degraded bool `json:"degraded,omitempty"`
}

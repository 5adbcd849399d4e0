package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType enumerates the schema-constrained entity kinds extracted from documents.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityDepartment   EntityType = "department"
	EntityPolicy       EntityType = "policy"
	EntityDate         EntityType = "date"
	EntityNumber       EntityType = "number"
	EntityOrganization EntityType = "organization"
)

// ValidEntityTypes contains all extractable entity types.
var ValidEntityTypes = []EntityType{
	EntityPerson,
	EntityDepartment,
	EntityPolicy,
	EntityDate,
	EntityNumber,
	EntityOrganization,
}

// IsValidEntityType checks if the given type is extractable.
func IsValidEntityType(t EntityType) bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Entity is one structured fact extracted from a document.
// Confidence uses the 0-1 entity scale.
type Entity struct {
	Type             EntityType        `json:"type"`
	Field            string            `json:"field"` // normalized field key, e.g. "ceo", "founded_date"
	NormalizedValue  string            `json:"normalized_value"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	Confidence       float64           `json:"confidence"`
	SourceDocumentID uuid.UUID         `json:"source_document_id"`
}

// EntityProfile is the consolidated, versioned entity set for one organization.
// At most one profile exists per organization; every update is a deterministic
// full replace of previous profile + newly reconciled entities.
type EntityProfile struct {
	OrganizationID  uuid.UUID               `json:"organization_id"`
	Entities        map[EntityType][]Entity `json:"entities"`
	DataQuality     DataQuality             `json:"data_quality"`
	CrossReferences []CrossReference        `json:"cross_references,omitempty"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// DataQuality summarizes the state of an organization's consolidated profile.
type DataQuality struct {
	TotalDocuments    int       `json:"total_documents"`
	EntitiesExtracted int       `json:"entities_extracted"`
	ConflictsResolved int       `json:"conflicts_resolved"`
	ConfidenceScore   float64   `json:"confidence_score"` // 0-1 scale
	LastUpdated       time.Time `json:"last_updated"`
}

// CrossReference links a consolidated value to every document that states it.
type CrossReference struct {
	Field       string      `json:"field"`
	Value       string      `json:"value"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
}

// Correction is a suggested text fix for an OCR-corrupted span.
// Confidence uses the 0-1 entity scale; corrections are applied to stored text
// only at or above the apply threshold, and every attempt is logged.
type Correction struct {
	OriginalText        string      `json:"original_text"`
	CorrectedText       string      `json:"corrected_text"`
	Confidence          float64     `json:"confidence"`
	EvidenceDocumentIDs []uuid.UUID `json:"evidence_document_ids,omitempty"`
}

// ConflictRecommendation enumerates how a conflict should be resolved.
type ConflictRecommendation string

const (
	ResolveUseNew      ConflictRecommendation = "use_new"
	ResolveUseExisting ConflictRecommendation = "use_existing"
	ResolveMerge       ConflictRecommendation = "merge"
)

// IsValidRecommendation checks if the recommendation is one of the closed set.
func IsValidRecommendation(r ConflictRecommendation) bool {
	return r == ResolveUseNew || r == ResolveUseExisting || r == ResolveMerge
}

// EntityConflict records a same-field disagreement between a newly extracted
// entity and the prior consolidated view. Sub-threshold conflicts are retained
// unresolved with both values kept.
type EntityConflict struct {
	Type           EntityType             `json:"type"`
	Field          string                 `json:"field"`
	NewValue       string                 `json:"new_value"`
	ExistingValue  string                 `json:"existing_value"`
	Recommendation ConflictRecommendation `json:"recommendation"`
	Confidence     float64                `json:"confidence"` // 0-1 scale
	Resolved       bool                   `json:"resolved"`
}

// ConsolidationResult is the outcome of consolidating one document.
type ConsolidationResult struct {
	DocumentID         uuid.UUID        `json:"document_id"`
	OrganizationID     uuid.UUID        `json:"organization_id"`
	CorrectedText      string           `json:"corrected_text"`
	Entities           []Entity         `json:"entities"`
	Corrections        []Correction     `json:"corrections"`
	CorrectionsApplied int              `json:"corrections_applied"`
	Conflicts          []EntityConflict `json:"conflicts"`
	Confidence         float64          `json:"confidence"` // 0-1 scale
	// Degraded is true when a collaborator failure forced the fallback path:
	// prior/empty entity set, original text, confidence 0.5.
	Degraded bool `json:"degraded,omitempty"`
}

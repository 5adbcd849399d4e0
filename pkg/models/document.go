package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is one ingested corpus document. Content holds the raw extracted
// text; CorrectedContent holds the text after high-confidence corrections.
type Document struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	Title            string     `json:"title"`
	Category         string     `json:"category,omitempty"`
	Department       string     `json:"department,omitempty"`
	Content          string     `json:"content"`
	CorrectedContent string     `json:"corrected_content,omitempty"`
	SizeBytes        int64      `json:"size_bytes"`
	ConsolidatedAt   *time.Time `json:"consolidated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// EffectiveContent returns the corrected text when present, else the raw text.
func (d *Document) EffectiveContent() string {
	if d.CorrectedContent != "" {
		return d.CorrectedContent
	}
	return d.Content
}

// KnowledgeEntry is one curated knowledge-base row.
type KnowledgeEntry struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"` // nil = global knowledge
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Category       string     `json:"category,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Organization is one business unit the corpus describes.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"` // short code, e.g. "PDH"
	Name      string    `json:"name"`
	Aliases   []string  `json:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Department is one unit inside an organization.
type Department struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Aliases        []string  `json:"aliases,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchFilters narrow a document search. Zero values mean "no filter".
type SearchFilters struct {
	OrganizationCode string     `json:"organization_code,omitempty"`
	Category         string     `json:"category,omitempty"`
	Department       string     `json:"department,omitempty"`
	CreatedAfter     *time.Time `json:"created_after,omitempty"`
	CreatedBefore    *time.Time `json:"created_before,omitempty"`
	MinSizeBytes     int64      `json:"min_size_bytes,omitempty"`
	MaxSizeBytes     int64      `json:"max_size_bytes,omitempty"`
	Limit            int        `json:"limit,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ValidationLog is one immutable audit row recording a correction attempt.
// Every attempt is logged whether or not the correction was applied.
type ValidationLog struct {
	ID             uuid.UUID `json:"id"`
	DocumentID     uuid.UUID `json:"document_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	OriginalText   string    `json:"original_text"`
	CorrectedText  string    `json:"corrected_text"`
	Confidence     float64   `json:"confidence"` // 0-1 scale
	Applied        bool      `json:"applied"`
	CreatedAt      time.Time `json:"created_at"`
}

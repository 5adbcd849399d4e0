package models

import (
	"time"

	"github.com/google/uuid"
)

// SafetyRule is one named, persisted regex rule consulted before intent
// classification. Rules load into an immutable in-memory snapshot at startup
// and are swapped atomically on explicit reload, never mutated mid-request.
type SafetyRule struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Pattern   string    `json:"pattern"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

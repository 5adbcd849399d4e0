// Package models contains domain types for veridoc-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a transcript message.
type MessageRole string

const (
	RoleQuestion MessageRole = "question"
	RoleAnswer   MessageRole = "answer"
)

// IsValidMessageRole checks if the given role is valid.
func IsValidMessageRole(r MessageRole) bool {
	return r == RoleQuestion || r == RoleAnswer
}

// Session represents one conversation. A session is active until it idles past
// the configured timeout or is explicitly ended; an expired session is
// immutable history and is never reactivated - a fresh id is issued instead.
type Session struct {
	ID             uuid.UUID      `json:"id"`
	UserID         *string        `json:"user_id,omitempty"`
	Context        SessionContext `json:"context"`
	StartedAt      time.Time      `json:"started_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Active         bool           `json:"active"`
}

// SessionContext carries the last-known conversational values used by
// reference resolution. Persisted as JSONB alongside the session row.
type SessionContext struct {
	// LastShownItems are the provenance-tagged items the latest answer surfaced.
	LastShownItems []RelevantItem `json:"last_shown_items,omitempty"`
	// LastIntent is the most recent classified intent.
	LastIntent Intent `json:"last_intent,omitempty"`
	// LastQuestion is the most recent raw (unresolved) question.
	LastQuestion string `json:"last_question,omitempty"`
	// Organization is the most recent organization hint.
	Organization string `json:"organization,omitempty"`
}

// Merge overlays non-empty fields of other onto the context.
func (c *SessionContext) Merge(other SessionContext) {
	if len(other.LastShownItems) > 0 {
		c.LastShownItems = other.LastShownItems
	}
	if other.LastIntent != "" {
		c.LastIntent = other.LastIntent
	}
	if other.LastQuestion != "" {
		c.LastQuestion = other.LastQuestion
	}
	if other.Organization != "" {
		c.Organization = other.Organization
	}
}

// RelevantItem is a provenance tag: which source/document backed a shown fact.
type RelevantItem struct {
	Type   string    `json:"type"`             // "document", "knowledge", "organization", "department"
	ID     uuid.UUID `json:"id"`               // id of the backing row
	Title  string    `json:"title"`            // display title, used for reference injection
	Source string    `json:"source,omitempty"` // source tag (see bundle.go)
}

// Message is one transcript entry. Messages are immutable once created; the
// back-reference to the session carries no ownership.
type Message struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     uuid.UUID       `json:"session_id"`
	Role          MessageRole     `json:"role"`
	Content       string          `json:"content"`
	RelevantItems []RelevantItem  `json:"relevant_items,omitempty"`
	Metadata      MessageMetadata `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MessageMetadata records how an answer was produced. Explicit fields instead
// of a loose map so downstream readers never optional-chain through JSON.
type MessageMetadata struct {
	ResolvedQuestion    string   `json:"resolved_question,omitempty"`
	Intent              Intent   `json:"intent,omitempty"`
	ReferenceConfidence int      `json:"reference_confidence,omitempty"` // 0-100 scale
	IntentConfidence    int      `json:"intent_confidence,omitempty"`    // 0-100 scale
	Sources             []string `json:"sources,omitempty"`
	PartialSources      bool     `json:"partial_sources,omitempty"`
	Blocked             bool     `json:"blocked,omitempty"`
	Degraded            bool     `json:"degraded,omitempty"`
}

// Package repositories provides pgx-backed data access for veridoc-engine.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// SessionRepository provides data access for conversation sessions and transcripts.
//
// Idle-timeout decisions are made against the database server clock (now() in
// SQL), never a caller's local clock, so they stay correct across machines.
// Append serializes per session with a row lock so concurrent turns on one
// session cannot interleave transcript order.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// ExpireIfIdle atomically flips the session inactive when its idle gap
	// measured on the database clock meets or exceeds timeout. Returns true
	// when this call performed the expiry.
	ExpireIfIdle(ctx context.Context, id uuid.UUID, timeout time.Duration) (bool, error)
	Expire(ctx context.Context, id uuid.UUID) error
	UpdateContext(ctx context.Context, id uuid.UUID, sessionCtx models.SessionContext) error
	// AppendMessage inserts a message with a server-side timestamp and bumps
	// the session's last activity, holding the session row lock throughout.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// GetTranscript returns the trailing limit messages in chronological order.
	// limit <= 0 means the full transcript.
	GetTranscript(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error)
	CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error)
}

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

var _ SessionRepository = (*sessionRepository)(nil)

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	query := `
		INSERT INTO engine_sessions (id, user_id, context, started_at, last_activity_at, active)
		VALUES ($1, $2, $3, now(), now(), true)
		RETURNING started_at, last_activity_at`

	err = r.db.QueryRow(ctx, query, session.ID, session.UserID, contextJSON).
		Scan(&session.StartedAt, &session.LastActivityAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("session id %s: %w", session.ID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	session.Active = true

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, context, started_at, last_activity_at, active
		FROM engine_sessions
		WHERE id = $1`

	var s models.Session
	var contextJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &contextJSON, &s.StartedAt, &s.LastActivityAt, &s.Active,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}

	return &s, nil
}

func (r *sessionRepository) ExpireIfIdle(ctx context.Context, id uuid.UUID, timeout time.Duration) (bool, error) {
	// Single statement so the idle check and the flip share one now().
	query := `
		UPDATE engine_sessions
		SET active = false
		WHERE id = $1
		  AND active
		  AND last_activity_at <= now() - make_interval(secs => $2)`

	result, err := r.db.Exec(ctx, query, id, timeout.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to expire idle session: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *sessionRepository) Expire(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE engine_sessions SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) UpdateContext(ctx context.Context, id uuid.UUID, sessionCtx models.SessionContext) error {
	contextJSON, err := json.Marshal(sessionCtx)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	result, err := r.db.Exec(ctx,
		`UPDATE engine_sessions SET context = $2 WHERE id = $1 AND active`, id, contextJSON)
	if err != nil {
		return fmt.Errorf("failed to update session context: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	itemsJSON, err := json.Marshal(msg.RelevantItems)
	if err != nil {
		return fmt.Errorf("marshal relevant items: %w", err)
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal message metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes concurrent appends on the same session.
	var active bool
	err = tx.QueryRow(ctx,
		`SELECT active FROM engine_sessions WHERE id = $1 FOR UPDATE`, msg.SessionID).
		Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrSessionNotFound
		}
		return fmt.Errorf("lock session row: %w", err)
	}
	if !active {
		return apperrors.ErrSessionNotFound
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO engine_messages (id, session_id, role, content, relevant_items, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, itemsJSON, metadataJSON,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE engine_sessions SET last_activity_at = now() WHERE id = $1`, msg.SessionID)
	if err != nil {
		return fmt.Errorf("bump session activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append transaction: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetTranscript(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error) {
	// Trailing window, returned chronologically.
	query := `
		SELECT id, session_id, role, content, relevant_items, metadata, created_at
		FROM (
			SELECT id, session_id, role, content, relevant_items, metadata, created_at
			FROM engine_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) tail
		ORDER BY created_at ASC, id ASC`

	effectiveLimit := limit
	if effectiveLimit <= 0 {
		effectiveLimit = 1000
	}

	rows, err := r.db.Query(ctx, query, sessionID, effectiveLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func (r *sessionRepository) CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM engine_messages WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func scanMessageRows(rows pgx.Rows) (*models.Message, error) {
	var m models.Message
	var itemsJSON, metadataJSON []byte

	err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &itemsJSON, &metadataJSON, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &m.RelevantItems); err != nil {
		return nil, fmt.Errorf("unmarshal relevant items: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal message metadata: %w", err)
	}

	return &m, nil
}

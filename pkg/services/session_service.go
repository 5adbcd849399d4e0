// Package services contains the conversation pipeline and ingestion services.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/config"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// maxIDCollisionRetries bounds fresh-id attempts when a generated session id
// collides with an existing row.
const maxIDCollisionRetries = 3

// SessionService manages conversation sessions and their transcripts.
type SessionService interface {
	// Resolve returns the active session for id, creating a fresh session with
	// a new id when id is nil, unknown, already ended, or idle past the
	// configured timeout. The returned bool reports whether a fresh session
	// was issued.
	Resolve(ctx context.Context, id *uuid.UUID, userID *string) (*models.Session, bool, error)

	// Append appends one message to the session transcript. Assigns the
	// message id when unset.
	Append(ctx context.Context, msg *models.Message) error

	// Window returns the trailing transcript window used for reference
	// analysis.
	Window(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)

	// History returns the session's full transcript in chronological order.
	History(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)

	// MergeContext folds delta into the session's rolling context and
	// persists the result. The session struct is updated in place.
	MergeContext(ctx context.Context, session *models.Session, delta models.SessionContext) error

	// End explicitly ends a session.
	End(ctx context.Context, id uuid.UUID) error
}

type sessionService struct {
	repo   repositories.SessionRepository
	cfg    config.SessionConfig
	logger *zap.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo repositories.SessionRepository, cfg config.SessionConfig, logger *zap.Logger) SessionService {
	return &sessionService{
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

var _ SessionService = (*sessionService)(nil)

func (s *sessionService) Resolve(ctx context.Context, id *uuid.UUID, userID *string) (*models.Session, bool, error) {
	if id == nil {
		session, err := s.create(ctx, userID)
		return session, true, err
	}

	// Expire-then-read keeps the idle decision on the database clock and
	// atomic against concurrent turns on the same session.
	expired, err := s.repo.ExpireIfIdle(ctx, *id, s.cfg.IdleTimeout())
	if err != nil {
		return nil, false, fmt.Errorf("idle check for session %s: %w", *id, err)
	}
	if expired {
		s.logger.Info("Session expired after idle timeout, issuing fresh session",
			zap.String("expired_session_id", id.String()),
			zap.Int("idle_timeout_minutes", s.cfg.IdleTimeoutMinutes))
		session, err := s.create(ctx, userID)
		return session, true, err
	}

	existing, err := s.repo.GetByID(ctx, *id)
	if err != nil {
		return nil, false, fmt.Errorf("get session %s: %w", *id, err)
	}
	if existing == nil || !existing.Active {
		session, err := s.create(ctx, userID)
		return session, true, err
	}

	return existing, false, nil
}

// create inserts a session with a generated id, retrying on id collision.
func (s *sessionService) create(ctx context.Context, userID *string) (*models.Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxIDCollisionRetries; attempt++ {
		session := &models.Session{
			ID:     uuid.New(),
			UserID: userID,
		}
		err := s.repo.Create(ctx, session)
		if err == nil {
			s.logger.Info("Created session", zap.String("session_id", session.ID.String()))
			return session, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		s.logger.Warn("Session id collision, regenerating",
			zap.String("session_id", session.ID.String()),
			zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return nil, fmt.Errorf("session id collision persisted after %d attempts: %w", maxIDCollisionRetries, lastErr)
}

func (s *sessionService) Append(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if !models.IsValidMessageRole(msg.Role) {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	return s.repo.AppendMessage(ctx, msg)
}

func (s *sessionService) Window(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	return s.repo.GetTranscript(ctx, sessionID, s.cfg.TranscriptWindow)
}

func (s *sessionService) History(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return s.repo.GetTranscript(ctx, sessionID, 0)
}

func (s *sessionService) MergeContext(ctx context.Context, session *models.Session, delta models.SessionContext) error {
	session.Context.Merge(delta)
	if err := s.repo.UpdateContext(ctx, session.ID, session.Context); err != nil {
		return fmt.Errorf("persist session context: %w", err)
	}
	return nil
}

func (s *sessionService) End(ctx context.Context, id uuid.UUID) error {
	return s.repo.Expire(ctx, id)
}

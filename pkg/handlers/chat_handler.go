package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

// ChatRequest for POST /api/chat
type ChatRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	UserID    *string    `json:"user_id,omitempty"`
	Question  string     `json:"question"`
}

// ChatHistoryResponse for GET /api/chat/{sid}/history
type ChatHistoryResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Messages  []*models.Message `json:"messages"`
	Total     int               `json:"total"`
}

// ChatHandler handles conversational question-answering HTTP requests.
type ChatHandler struct {
	chat     services.ChatService
	sessions services.SessionService
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat services.ChatService, sessions services.SessionService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Ask)
	mux.HandleFunc("GET /api/chat/{sid}/history", h.History)
	mux.HandleFunc("DELETE /api/chat/{sid}", h.End)
}

// Ask handles POST /api/chat
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.chat.Ask(r.Context(), req.SessionID, req.UserID, req.Question)
	if err != nil {
		h.logger.Error("Chat turn failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "chat_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/chat/{sid}/history
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.sessions.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "session_not_found", "Session not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to load session history",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "history_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ChatHistoryResponse{
		SessionID: sessionID,
		Messages:  messages,
		Total:     len(messages),
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// End handles DELETE /api/chat/{sid}
func (h *ChatHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.End(r.Context(), sessionID); err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "session_not_found", "Session not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to end session",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "end_session_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "ended"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

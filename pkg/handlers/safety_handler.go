package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

// SafetyReloadResponse for POST /api/safety/reload
type SafetyReloadResponse struct {
	Rules int `json:"rules"`
}

// SafetyHandler exposes safety-rule administration endpoints.
type SafetyHandler struct {
	safety services.SafetyScreen
	logger *zap.Logger
}

// NewSafetyHandler creates a new safety handler.
func NewSafetyHandler(safety services.SafetyScreen, logger *zap.Logger) *SafetyHandler {
	return &SafetyHandler{
		safety: safety,
		logger: logger,
	}
}

// RegisterRoutes registers the safety handler's routes on the given mux.
func (h *SafetyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/safety/reload", h.Reload)
}

// Reload handles POST /api/safety/reload
// Reloads the active safety rules from storage and swaps them in atomically.
func (h *SafetyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	count, err := h.safety.Reload(r.Context())
	if err != nil {
		h.logger.Error("Failed to reload safety rules", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "safety_reload_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.logger.Info("Safety rules reloaded", zap.Int("rules", count))
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: SafetyReloadResponse{Rules: count}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

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
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// CreateOrganizationRequest for POST /api/organizations
type CreateOrganizationRequest struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// OrganizationListResponse for GET /api/organizations
type OrganizationListResponse struct {
	Organizations []models.Organization `json:"organizations"`
	Total         int                   `json:"total"`
}

// OrganizationHandler handles organization HTTP requests.
type OrganizationHandler struct {
	orgs   repositories.OrganizationRepository
	logger *zap.Logger
}

// NewOrganizationHandler creates a new organization handler.
func NewOrganizationHandler(orgs repositories.OrganizationRepository, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:   orgs,
		logger: logger,
	}
}

// RegisterRoutes registers the organization handler's routes on the given mux.
func (h *OrganizationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/organizations", h.List)
	mux.HandleFunc("POST /api/organizations", h.Create)
	mux.HandleFunc("DELETE /api/organizations/{oid}", h.Delete)
}

// List handles GET /api/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list organizations", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_organizations_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := OrganizationListResponse{
		Organizations: orgs,
		Total:         len(orgs),
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "code and name are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	org := &models.Organization{
		ID:      uuid.New(),
		Code:    req.Code,
		Name:    req.Name,
		Aliases: req.Aliases,
	}
	if err := h.orgs.Create(r.Context(), org); err != nil {
		h.logger.Error("Failed to create organization",
			zap.String("code", req.Code),
			zap.Error(err))

		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, http.StatusConflict, "organization_exists", "An organization with this code already exists"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		if err := ErrorResponse(w, http.StatusInternalServerError, "create_organization_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: org}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/organizations/{oid}
// Deleting an organization cascades to its documents, entities and profile.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.orgs.Delete(r.Context(), organizationID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "organization_not_found", "Organization not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete organization",
			zap.String("organization_id", organizationID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "delete_organization_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "deleted"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

// IngestDocumentRequest for POST /api/documents. Either the single-document
// fields or Documents must be set; Documents takes precedence.
type IngestDocumentRequest struct {
	services.IngestRequest
	Documents []services.IngestRequest `json:"documents,omitempty"`
}

// IngestDocumentResponse for a single-document ingest.
type IngestDocumentResponse struct {
	Document *models.Document            `json:"document"`
	Result   *models.ConsolidationResult `json:"result"`
}

// IngestBatchResponse for a batch ingest.
type IngestBatchResponse struct {
	Outcomes  []services.IngestOutcome `json:"outcomes"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
}

// DocumentHandler handles document ingestion HTTP requests.
type DocumentHandler struct {
	documents services.DocumentService
	logger    *zap.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger,
	}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.Ingest)
	mux.HandleFunc("GET /api/documents/{did}", h.Get)
}

// Ingest handles POST /api/documents
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if len(req.Documents) > 0 {
		h.ingestBatch(w, r, req.Documents)
		return
	}

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "title and content are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	doc, result, err := h.documents.Ingest(r.Context(), req.IngestRequest)
	if err != nil {
		h.logger.Error("Failed to ingest document",
			zap.String("organization_code", req.OrganizationCode),
			zap.Error(err))

		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "organization_not_found", "Unknown organization code"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		if err := ErrorResponse(w, http.StatusInternalServerError, "ingest_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := IngestDocumentResponse{Document: doc, Result: result}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DocumentHandler) ingestBatch(w http.ResponseWriter, r *http.Request, reqs []services.IngestRequest) {
	outcomes := h.documents.IngestBatch(r.Context(), reqs)

	response := IngestBatchResponse{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Error != "" {
			response.Failed++
		} else {
			response.Succeeded++
		}
	}

	status := http.StatusCreated
	if response.Succeeded == 0 {
		status = http.StatusBadRequest
	}
	if err := WriteJSON(w, status, ApiResponse{Success: response.Succeeded > 0, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/documents/{did}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), documentID)
	if err != nil {
		h.logger.Error("Failed to load document",
			zap.String("document_id", documentID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_document_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if doc == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "document_not_found", "Document not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: doc}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

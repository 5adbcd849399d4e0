package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseSessionID extracts and validates the session ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: sid
func ParseSessionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_session_id", "Invalid session ID format", logger)
}

// ParseOrganizationID extracts and validates the organization ID from the
// request path. Returns the parsed UUID and true on success, or uuid.Nil and
// false on error (after writing an error response).
// Expects path parameter: oid
func ParseOrganizationID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_organization_id", "Invalid organization ID format", logger)
}

// ParseDocumentID extracts and validates the document ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: did
func ParseDocumentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_document_id", "Invalid document ID format", logger)
}

func parseUUID(w http.ResponseWriter, r *http.Request, param, errorCode, message string, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

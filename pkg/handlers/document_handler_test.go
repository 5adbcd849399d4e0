package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

func newDocumentMux(docs services.DocumentService) *http.ServeMux {
	mux := http.NewServeMux()
	NewDocumentHandler(docs, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestDocumentHandler_Ingest_Single(t *testing.T) {
	docID := uuid.New()
	docs := &mockDocumentService{
		IngestFunc: func(ctx context.Context, req services.IngestRequest) (*models.Document, *models.ConsolidationResult, error) {
			assert.Equal(t, "PDH", req.OrganizationCode)
			assert.Equal(t, "Annual Report", req.Title)
			return &models.Document{ID: docID, Title: req.Title},
				&models.ConsolidationResult{DocumentID: docID, Confidence: 0.9},
				nil
		},
	}
	mux := newDocumentMux(docs)

	body := bytes.NewBufferString(`{"organization_code": "PDH", "title": "Annual Report", "content": "text"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data IngestDocumentResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, docID, envelope.Data.Document.ID)
	require.NotNil(t, envelope.Data.Result)
	assert.InDelta(t, 0.9, envelope.Data.Result.Confidence, 0.001)
}

func TestDocumentHandler_Ingest_Batch(t *testing.T) {
	docs := &mockDocumentService{
		IngestBatchFunc: func(ctx context.Context, reqs []services.IngestRequest) []services.IngestOutcome {
			require.Len(t, reqs, 2)
			return []services.IngestOutcome{
				{Document: &models.Document{ID: uuid.New()}, Result: &models.ConsolidationResult{}},
				{Error: "unknown organization"},
			}
		},
	}
	mux := newDocumentMux(docs)

	body := bytes.NewBufferString(`{"documents": [
		{"organization_code": "PDH", "title": "One", "content": "a"},
		{"organization_code": "BAD", "title": "Two", "content": "b"}
	]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Success bool                `json:"success"`
		Data    IngestBatchResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, 1, envelope.Data.Succeeded)
	assert.Equal(t, 1, envelope.Data.Failed)
}

func TestDocumentHandler_Ingest_BatchAllFailed(t *testing.T) {
	docs := &mockDocumentService{
		IngestBatchFunc: func(ctx context.Context, reqs []services.IngestRequest) []services.IngestOutcome {
			return []services.IngestOutcome{{Error: "unknown organization"}}
		},
	}
	mux := newDocumentMux(docs)

	body := bytes.NewBufferString(`{"documents": [{"organization_code": "BAD", "title": "One", "content": "a"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandler_Ingest_MissingFields(t *testing.T) {
	mux := newDocumentMux(&mockDocumentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		bytes.NewBufferString(`{"organization_code": "PDH", "title": "", "content": "x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandler_Ingest_UnknownOrganization(t *testing.T) {
	docs := &mockDocumentService{
		IngestFunc: func(ctx context.Context, req services.IngestRequest) (*models.Document, *models.ConsolidationResult, error) {
			return nil, nil, fmt.Errorf("unknown organization %q: %w", req.OrganizationCode, apperrors.ErrNotFound)
		},
	}
	mux := newDocumentMux(docs)

	body := bytes.NewBufferString(`{"organization_code": "NOPE", "title": "Doc", "content": "x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentHandler_Get(t *testing.T) {
	docID := uuid.New()
	docs := &mockDocumentService{
		GetFunc: func(ctx context.Context, id uuid.UUID) (*models.Document, error) {
			assert.Equal(t, docID, id)
			return &models.Document{ID: docID, Title: "Travel Policy"}, nil
		},
	}
	mux := newDocumentMux(docs)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID.String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.Document `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "Travel Policy", envelope.Data.Title)
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	docs := &mockDocumentService{
		GetFunc: func(ctx context.Context, id uuid.UUID) (*models.Document, error) {
			return nil, nil
		},
	}
	mux := newDocumentMux(docs)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

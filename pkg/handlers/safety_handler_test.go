package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSafetyHandler_Reload(t *testing.T) {
	safety := &mockSafetyScreen{
		ReloadFunc: func(ctx context.Context) (int, error) {
			return 7, nil
		},
	}
	mux := http.NewServeMux()
	NewSafetyHandler(safety, zap.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/safety/reload", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data SafetyReloadResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, 7, envelope.Data.Rules)
}

func TestSafetyHandler_Reload_Error(t *testing.T) {
	safety := &mockSafetyScreen{
		ReloadFunc: func(ctx context.Context) (int, error) {
			return 0, errors.New("database unavailable")
		},
	}
	mux := http.NewServeMux()
	NewSafetyHandler(safety, zap.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/safety/reload", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

type mockConsolidationService struct {
	ConsolidateFunc func(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error)
}

func (m *mockConsolidationService) Consolidate(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error) {
	if m.ConsolidateFunc != nil {
		return m.ConsolidateFunc(ctx, documentID)
	}
	return &models.ConsolidationResult{DocumentID: documentID}, nil
}

func newTestDocumentService(docs *mockDocumentRepository, orgs *mockOrganizationRepository, consolidation *mockConsolidationService) DocumentService {
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 4}, zap.NewNop())
	return NewDocumentService(docs, orgs, consolidation, pool, zap.NewNop())
}

func TestDocumentService_Ingest(t *testing.T) {
	orgID := uuid.New()
	var created *models.Document
	docs := &mockDocumentRepository{
		CreateFunc: func(ctx context.Context, doc *models.Document) error {
			created = doc
			return nil
		},
	}
	orgs := &mockOrganizationRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Organization, error) {
			assert.Equal(t, "PDH", code)
			return &models.Organization{ID: orgID, Code: "PDH", Name: "Pacific Data Holdings"}, nil
		},
	}
	consolidation := &mockConsolidationService{
		ConsolidateFunc: func(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error) {
			return &models.ConsolidationResult{
				DocumentID:     documentID,
				OrganizationID: orgID,
				Entities:       []models.Entity{{Type: models.EntityPerson, Field: "ceo", NormalizedValue: "Dana Reyes"}},
				Confidence:     0.9,
			}, nil
		},
	}

	doc, result, err := newTestDocumentService(docs, orgs, consolidation).Ingest(context.Background(), IngestRequest{
		OrganizationCode: "PDH",
		Title:            "  Annual Report  ",
		Content:          "Dana Reyes is CEO.",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Annual Report", doc.Title)
	assert.Equal(t, orgID, doc.OrganizationID)
	assert.Equal(t, int64(len("Dana Reyes is CEO.")), doc.SizeBytes)
	require.NotNil(t, result)
	assert.Len(t, result.Entities, 1)
}

func TestDocumentService_Ingest_UnknownOrganization(t *testing.T) {
	docs := &mockDocumentRepository{
		CreateFunc: func(ctx context.Context, doc *models.Document) error {
			t.Fatal("document must not be stored for an unknown organization")
			return nil
		},
	}
	orgs := &mockOrganizationRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Organization, error) {
			return nil, nil
		},
	}

	_, _, err := newTestDocumentService(docs, orgs, &mockConsolidationService{}).Ingest(context.Background(), IngestRequest{
		OrganizationCode: "NOPE",
		Title:            "Doc",
		Content:          "text",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentService_Ingest_ValidatesFields(t *testing.T) {
	svc := newTestDocumentService(&mockDocumentRepository{}, &mockOrganizationRepository{}, &mockConsolidationService{})

	_, _, err := svc.Ingest(context.Background(), IngestRequest{OrganizationCode: "PDH", Content: "text"})
	assert.Error(t, err)

	_, _, err = svc.Ingest(context.Background(), IngestRequest{OrganizationCode: "PDH", Title: "Doc", Content: "  "})
	assert.Error(t, err)
}

func TestDocumentService_Ingest_ConsolidationErrorKeepsDocument(t *testing.T) {
	orgs := &mockOrganizationRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Organization, error) {
			return &models.Organization{ID: uuid.New(), Code: code}, nil
		},
	}
	docs := &mockDocumentRepository{
		CreateFunc: func(ctx context.Context, doc *models.Document) error { return nil },
	}
	consolidation := &mockConsolidationService{
		ConsolidateFunc: func(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error) {
			return nil, errors.New("database unavailable")
		},
	}

	doc, result, err := newTestDocumentService(docs, orgs, consolidation).Ingest(context.Background(), IngestRequest{
		OrganizationCode: "PDH",
		Title:            "Doc",
		Content:          "text",
	})
	assert.Error(t, err)
	assert.NotNil(t, doc)
	assert.Nil(t, result)
}

func TestDocumentService_IngestBatch(t *testing.T) {
	var mu sync.Mutex
	stored := 0
	orgs := &mockOrganizationRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Organization, error) {
			if code == "BAD" {
				return nil, nil
			}
			return &models.Organization{ID: uuid.New(), Code: code}, nil
		},
	}
	docs := &mockDocumentRepository{
		CreateFunc: func(ctx context.Context, doc *models.Document) error {
			mu.Lock()
			stored++
			mu.Unlock()
			return nil
		},
	}

	reqs := []IngestRequest{
		{OrganizationCode: "PDH", Title: "One", Content: "a"},
		{OrganizationCode: "BAD", Title: "Two", Content: "b"},
		{OrganizationCode: "GLX", Title: "Three", Content: "c"},
	}
	outcomes := newTestDocumentService(docs, orgs, &mockConsolidationService{}).IngestBatch(context.Background(), reqs)

	require.Len(t, outcomes, 3)
	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		} else {
			succeeded++
			require.NotNil(t, o.Result)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, stored)
}

func TestDocumentService_IngestBatch_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	orgs := &mockOrganizationRepository{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Organization, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				inFlight--
				mu.Unlock()
			}()
			return &models.Organization{ID: uuid.New(), Code: code}, nil
		},
	}
	docs := &mockDocumentRepository{
		CreateFunc: func(ctx context.Context, doc *models.Document) error { return nil },
	}
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())
	svc := NewDocumentService(docs, orgs, &mockConsolidationService{}, pool, zap.NewNop())

	reqs := make([]IngestRequest, 8)
	for i := range reqs {
		reqs[i] = IngestRequest{OrganizationCode: "PDH", Title: fmt.Sprintf("Doc %d", i), Content: "text"}
	}
	outcomes := svc.IngestBatch(context.Background(), reqs)

	assert.Len(t, outcomes, 8)
	assert.LessOrEqual(t, peak, 2)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/config"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

type mockEntityRepository struct {
	UpsertDocumentEntitiesFunc func(ctx context.Context, documentID uuid.UUID, entities []models.Entity) error
	GetDocumentEntitiesFunc    func(ctx context.Context, documentID uuid.UUID) ([]models.Entity, error)
	ListByDocumentsFunc        func(ctx context.Context, documentIDs []uuid.UUID) ([]repositories.DocumentEntities, error)
	GetProfileFunc             func(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error)
	ReplaceProfileFunc         func(ctx context.Context, profile *models.EntityProfile) error
}

func (m *mockEntityRepository) UpsertDocumentEntities(ctx context.Context, documentID uuid.UUID, entities []models.Entity) error {
	if m.UpsertDocumentEntitiesFunc == nil {
		return nil
	}
	return m.UpsertDocumentEntitiesFunc(ctx, documentID, entities)
}

func (m *mockEntityRepository) GetDocumentEntities(ctx context.Context, documentID uuid.UUID) ([]models.Entity, error) {
	return m.GetDocumentEntitiesFunc(ctx, documentID)
}

func (m *mockEntityRepository) ListByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]repositories.DocumentEntities, error) {
	return m.ListByDocumentsFunc(ctx, documentIDs)
}

func (m *mockEntityRepository) GetProfile(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error) {
	if m.GetProfileFunc == nil {
		return nil, nil
	}
	return m.GetProfileFunc(ctx, organizationID)
}

func (m *mockEntityRepository) ReplaceProfile(ctx context.Context, profile *models.EntityProfile) error {
	if m.ReplaceProfileFunc == nil {
		return nil
	}
	return m.ReplaceProfileFunc(ctx, profile)
}

type mockValidationLogRepository struct {
	InsertFunc         func(ctx context.Context, entry *models.ValidationLog) error
	ListByDocumentFunc func(ctx context.Context, documentID uuid.UUID) ([]models.ValidationLog, error)

	entries []models.ValidationLog
}

func (m *mockValidationLogRepository) Insert(ctx context.Context, entry *models.ValidationLog) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockValidationLogRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.ValidationLog, error) {
	if m.ListByDocumentFunc != nil {
		return m.ListByDocumentFunc(ctx, documentID)
	}
	return m.entries, nil
}

type consolidationFixture struct {
	doc        *models.Document
	docs       *mockDocumentRepository
	entities   *mockEntityRepository
	validation *mockValidationLogRepository
	client     *llm.MockSemanticClient

	corrected      string
	storedEntities []models.Entity
	storedProfile  *models.EntityProfile
}

func newConsolidationFixture(content string) *consolidationFixture {
	f := &consolidationFixture{
		doc: &models.Document{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			Title:          "Company Overview",
			Content:        content,
		},
		client:     llm.NewMockSemanticClient(),
		validation: &mockValidationLogRepository{},
	}
	f.docs = &mockDocumentRepository{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Document, error) {
			if id == f.doc.ID {
				return f.doc, nil
			}
			return nil, nil
		},
		ListRecentByOrganizationFunc: func(ctx context.Context, organizationID uuid.UUID, limit int) ([]models.Document, error) {
			return []models.Document{*f.doc}, nil
		},
		SetCorrectedContentFunc: func(ctx context.Context, id uuid.UUID, corrected string) error {
			f.corrected = corrected
			return nil
		},
	}
	f.entities = &mockEntityRepository{
		UpsertDocumentEntitiesFunc: func(ctx context.Context, documentID uuid.UUID, entities []models.Entity) error {
			f.storedEntities = entities
			return nil
		},
		ReplaceProfileFunc: func(ctx context.Context, profile *models.EntityProfile) error {
			f.storedProfile = profile
			return nil
		},
	}
	return f
}

func (f *consolidationFixture) service() ConsolidationService {
	cfg := config.ConsolidationConfig{
		MinEntityConfidence: 0.7,
		ApplyThreshold:      0.8,
		MaxPriorDocuments:   5,
	}
	return NewConsolidationService(f.client, f.docs, f.entities, &mockOrganizationRepository{}, f.validation, cfg, zap.NewNop())
}

func TestConsolidation_ExtractsAndFiltersEntities(t *testing.T) {
	f := newConsolidationFixture("PDH was founded in 2009. CEO: John Smith.")
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{
			"entities": [
				{"type": "person", "field": "CEOs", "normalized_value": "John Smith", "confidence": 0.95},
				{"type": "date", "field": "founded_date", "normalized_value": "2009", "confidence": 0.4},
				{"type": "spaceship", "field": "vessel", "normalized_value": "x", "confidence": 0.99}
			],
			"corrections": []
		}`, nil
	}

	result, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)

	require.Len(t, result.Entities, 1, "low confidence and unknown types are dropped")
	assert.Equal(t, models.EntityPerson, result.Entities[0].Type)
	assert.Equal(t, "ceo", result.Entities[0].Field, "field keys are singular snake_case")
	assert.Equal(t, f.doc.ID, result.Entities[0].SourceDocumentID)
	assert.False(t, result.Degraded)

	require.NotNil(t, f.storedProfile)
	assert.Equal(t, f.doc.OrganizationID, f.storedProfile.OrganizationID)
	assert.Len(t, f.storedProfile.Entities[models.EntityPerson], 1)
	assert.Equal(t, 1, f.storedProfile.DataQuality.TotalDocuments)
	assert.InDelta(t, 0.95, f.storedProfile.DataQuality.ConfidenceScore, 1e-9)
}

func TestConsolidation_AppliesHighConfidenceCorrections(t *testing.T) {
	f := newConsolidationFixture("CEO: J0hn Sm1th leads the company. Contact J0hn Sm1th for details.")
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{
			"entities": [],
			"corrections": [
				{"original_text": "J0hn Sm1th", "corrected_text": "John Smith", "confidence": 0.9},
				{"original_text": "leads", "corrected_text": "led", "confidence": 0.5},
				{"original_text": "not present anywhere", "corrected_text": "x", "confidence": 0.95}
			]
		}`, nil
	}

	result, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CorrectionsApplied)
	assert.Equal(t, "CEO: John Smith leads the company. Contact John Smith for details.", result.CorrectedText)
	assert.Equal(t, result.CorrectedText, f.corrected, "corrected text is persisted")

	// Every attempt is logged, applied or not.
	require.Len(t, f.validation.entries, 3)
	applied := 0
	for _, entry := range f.validation.entries {
		if entry.Applied {
			applied++
		}
		assert.Equal(t, f.doc.ID, entry.DocumentID)
	}
	assert.Equal(t, 1, applied)
}

func TestConsolidation_ResolvesConflictsAboveThreshold(t *testing.T) {
	f := newConsolidationFixture("Jane Doe took over as CEO this year. Offices: Berlin.")
	existingProfile := &models.EntityProfile{
		OrganizationID: f.doc.OrganizationID,
		Entities: map[models.EntityType][]models.Entity{
			models.EntityPerson: {
				{Type: models.EntityPerson, Field: "ceo", NormalizedValue: "John Smith", Confidence: 0.9, SourceDocumentID: uuid.New()},
			},
			models.EntityOrganization: {
				{Type: models.EntityOrganization, Field: "office", NormalizedValue: "Lisbon", Confidence: 0.8, SourceDocumentID: uuid.New()},
			},
		},
		DataQuality: models.DataQuality{TotalDocuments: 2, ConflictsResolved: 1},
	}
	f.entities.GetProfileFunc = func(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error) {
		return existingProfile, nil
	}

	call := 0
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		call++
		if call == 1 {
			return `{
				"entities": [
					{"type": "person", "field": "ceo", "normalized_value": "Jane Doe", "confidence": 0.92},
					{"type": "organization", "field": "office", "normalized_value": "Berlin", "confidence": 0.85}
				],
				"corrections": []
			}`, nil
		}
		return `{
			"conflicts": [
				{"type": "person", "field": "ceo", "new_value": "Jane Doe", "existing_value": "John Smith", "recommendation": "use_new", "confidence": 0.9},
				{"type": "organization", "field": "office", "new_value": "Berlin", "existing_value": "Lisbon", "recommendation": "use_new", "confidence": 0.6}
			]
		}`, nil
	}

	result, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 2)
	assert.True(t, result.Conflicts[0].Resolved)
	assert.False(t, result.Conflicts[1].Resolved, "sub-threshold conflicts stay unresolved")

	people := f.storedProfile.Entities[models.EntityPerson]
	require.Len(t, people, 1, "use_new above threshold replaces the existing value")
	assert.Equal(t, "Jane Doe", people[0].NormalizedValue)

	offices := f.storedProfile.Entities[models.EntityOrganization]
	assert.Len(t, offices, 2, "unresolved conflict keeps both values")

	assert.Equal(t, 2, f.storedProfile.DataQuality.ConflictsResolved, "resolved count accumulates")
}

func TestConsolidation_CollaboratorFailureDegrades(t *testing.T) {
	f := newConsolidationFixture("some content")
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", errors.New("model offline")
	}

	replaceCalled := false
	f.entities.ReplaceProfileFunc = func(ctx context.Context, profile *models.EntityProfile) error {
		replaceCalled = true
		return nil
	}

	result, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err, "collaborator failure must degrade, not fail ingestion")

	assert.True(t, result.Degraded)
	assert.InDelta(t, degradedConsolidationConfidence, result.Confidence, 1e-9)
	assert.Empty(t, result.Entities)
	assert.Equal(t, f.doc.Content, result.CorrectedText, "text stays untouched")
	assert.False(t, replaceCalled, "profile is not replaced on the degraded path")
	assert.NotNil(t, f.storedEntities, "an empty entity set is still recorded for the document")
	assert.Empty(t, f.storedEntities)
}

func TestConsolidation_UnparseableExtractionDegrades(t *testing.T) {
	f := newConsolidationFixture("some content")
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "I could not find anything structured to say.", nil
	}

	result, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestConsolidation_ReconsolidationIsIdempotent(t *testing.T) {
	f := newConsolidationFixture("CEO: John Smith.")
	response := `{
		"entities": [
			{"type": "person", "field": "ceo", "normalized_value": "John Smith", "confidence": 0.9}
		],
		"corrections": []
	}`
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return response, nil
	}

	svc := f.service()
	_, err := svc.Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)
	first := f.storedProfile

	// The second run sees the first run's profile.
	f.entities.GetProfileFunc = func(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error) {
		return first, nil
	}
	_, err = svc.Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)
	second := f.storedProfile

	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.DataQuality.TotalDocuments, second.DataQuality.TotalDocuments)
	assert.Equal(t, first.DataQuality.EntitiesExtracted, second.DataQuality.EntitiesExtracted)
	assert.InDelta(t, first.DataQuality.ConfidenceScore, second.DataQuality.ConfidenceScore, 1e-9)
}

func TestConsolidation_UnknownDocument(t *testing.T) {
	f := newConsolidationFixture("content")
	_, err := f.service().Consolidate(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestConsolidation_PriorDocumentsBounded(t *testing.T) {
	f := newConsolidationFixture("new document content")
	var docs []models.Document
	for i := 0; i < 10; i++ {
		docs = append(docs, models.Document{
			ID:             uuid.New(),
			OrganizationID: f.doc.OrganizationID,
			Title:          fmt.Sprintf("Prior %d", i),
			Content:        "prior content",
		})
	}
	f.docs.ListRecentByOrganizationFunc = func(ctx context.Context, organizationID uuid.UUID, limit int) ([]models.Document, error) {
		assert.Equal(t, 6, limit, "fetch is bounded by the prior-document cap plus self")
		return docs[:limit], nil
	}

	var extractionPrompt string
	f.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		if extractionPrompt == "" {
			extractionPrompt = prompt
		}
		return `{"entities": [], "corrections": []}`, nil
	}

	_, err := f.service().Consolidate(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Contains(t, extractionPrompt, docs[4].Title)
	assert.NotContains(t, extractionPrompt, docs[9].Title)
}

func TestNormalizeFieldKey(t *testing.T) {
	assert.Equal(t, "ceo", NormalizeFieldKey(" CEOs "))
	assert.Equal(t, "founded_date", NormalizeFieldKey("Founded Dates"))
	assert.Equal(t, "employee_count", NormalizeFieldKey("employee-counts"))
	assert.Equal(t, "office", NormalizeFieldKey("offices"))
}

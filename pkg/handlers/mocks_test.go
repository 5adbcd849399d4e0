package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

// mockChatService implements services.ChatService for handler tests.
type mockChatService struct {
	AskFunc func(ctx context.Context, sessionID *uuid.UUID, userID *string, question string) (*services.ChatResult, error)
}

func (m *mockChatService) Ask(ctx context.Context, sessionID *uuid.UUID, userID *string, question string) (*services.ChatResult, error) {
	return m.AskFunc(ctx, sessionID, userID, question)
}

// mockSessionService implements services.SessionService for handler tests.
type mockSessionService struct {
	ResolveFunc      func(ctx context.Context, id *uuid.UUID, userID *string) (*models.Session, bool, error)
	AppendFunc       func(ctx context.Context, msg *models.Message) error
	WindowFunc       func(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
	HistoryFunc      func(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
	MergeContextFunc func(ctx context.Context, session *models.Session, delta models.SessionContext) error
	EndFunc          func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSessionService) Resolve(ctx context.Context, id *uuid.UUID, userID *string) (*models.Session, bool, error) {
	return m.ResolveFunc(ctx, id, userID)
}

func (m *mockSessionService) Append(ctx context.Context, msg *models.Message) error {
	return m.AppendFunc(ctx, msg)
}

func (m *mockSessionService) Window(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	return m.WindowFunc(ctx, sessionID)
}

func (m *mockSessionService) History(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	return m.HistoryFunc(ctx, sessionID)
}

func (m *mockSessionService) MergeContext(ctx context.Context, session *models.Session, delta models.SessionContext) error {
	return m.MergeContextFunc(ctx, session, delta)
}

func (m *mockSessionService) End(ctx context.Context, id uuid.UUID) error {
	return m.EndFunc(ctx, id)
}

// mockDocumentService implements services.DocumentService for handler tests.
type mockDocumentService struct {
	IngestFunc      func(ctx context.Context, req services.IngestRequest) (*models.Document, *models.ConsolidationResult, error)
	IngestBatchFunc func(ctx context.Context, reqs []services.IngestRequest) []services.IngestOutcome
	GetFunc         func(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

func (m *mockDocumentService) Ingest(ctx context.Context, req services.IngestRequest) (*models.Document, *models.ConsolidationResult, error) {
	return m.IngestFunc(ctx, req)
}

func (m *mockDocumentService) IngestBatch(ctx context.Context, reqs []services.IngestRequest) []services.IngestOutcome {
	return m.IngestBatchFunc(ctx, reqs)
}

func (m *mockDocumentService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return m.GetFunc(ctx, id)
}

// mockOrganizationRepository implements repositories.OrganizationRepository
// for handler tests.
type mockOrganizationRepository struct {
	CreateFunc func(ctx context.Context, org *models.Organization) error
	ListFunc   func(ctx context.Context) ([]models.Organization, error)
	DeleteFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return m.CreateFunc(ctx, org)
}

func (m *mockOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return nil, nil
}

func (m *mockOrganizationRepository) GetByCode(ctx context.Context, code string) (*models.Organization, error) {
	return nil, nil
}

func (m *mockOrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	return m.ListFunc(ctx)
}

func (m *mockOrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockOrganizationRepository) CreateDepartment(ctx context.Context, dept *models.Department) error {
	return nil
}

func (m *mockOrganizationRepository) GetDepartment(ctx context.Context, organizationID *uuid.UUID, name string) (*models.Department, error) {
	return nil, nil
}

func (m *mockOrganizationRepository) ListDepartments(ctx context.Context, organizationID uuid.UUID) ([]models.Department, error) {
	return nil, nil
}

// mockSafetyScreen implements services.SafetyScreen for handler tests.
type mockSafetyScreen struct {
	ScreenFunc func(question string) (string, bool)
	ReloadFunc func(ctx context.Context) (int, error)
}

func (m *mockSafetyScreen) Screen(question string) (string, bool) {
	if m.ScreenFunc != nil {
		return m.ScreenFunc(question)
	}
	return "", false
}

func (m *mockSafetyScreen) Reload(ctx context.Context) (int, error) {
	return m.ReloadFunc(ctx)
}

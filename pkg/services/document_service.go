package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// IngestRequest describes one document to ingest. OrganizationCode is
// resolved against known organization codes and aliases.
type IngestRequest struct {
	OrganizationCode string `json:"organization_code"`
	Title            string `json:"title"`
	Category         string `json:"category,omitempty"`
	Department       string `json:"department,omitempty"`
	Content          string `json:"content"`
}

// IngestOutcome is the per-document result of a batch ingest. Exactly one of
// Result or Error is meaningful; Document is set whenever the row was stored.
type IngestOutcome struct {
	Document *models.Document            `json:"document,omitempty"`
	Result   *models.ConsolidationResult `json:"result,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// DocumentService ingests documents and runs them through entity
// consolidation.
type DocumentService interface {
	// Ingest stores one document and consolidates it. The stored document is
	// returned even when consolidation degrades.
	Ingest(ctx context.Context, req IngestRequest) (*models.Document, *models.ConsolidationResult, error)

	// IngestBatch ingests several documents concurrently. Consolidation for
	// documents of the same organization still runs serially; outcomes are
	// returned in completion order.
	IngestBatch(ctx context.Context, reqs []IngestRequest) []IngestOutcome

	// Get returns one document by id, nil when unknown.
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type documentService struct {
	documents     repositories.DocumentRepository
	orgs          repositories.OrganizationRepository
	consolidation ConsolidationService
	pool          *llm.WorkerPool
	logger        *zap.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	documents repositories.DocumentRepository,
	orgs repositories.OrganizationRepository,
	consolidation ConsolidationService,
	pool *llm.WorkerPool,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		documents:     documents,
		orgs:          orgs,
		consolidation: consolidation,
		pool:          pool,
		logger:        logger.Named("documents"),
	}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) Ingest(ctx context.Context, req IngestRequest) (*models.Document, *models.ConsolidationResult, error) {
	doc, err := s.store(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.consolidation.Consolidate(ctx, doc.ID)
	if err != nil {
		// The document row exists; surface the consolidation failure with it.
		return doc, nil, fmt.Errorf("consolidation failed for document %s: %w", doc.ID, err)
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.String("organization_id", doc.OrganizationID.String()),
		zap.Int("entities", len(result.Entities)),
		zap.Int("corrections_applied", result.CorrectionsApplied),
		zap.Bool("degraded", result.Degraded))
	return doc, result, nil
}

func (s *documentService) IngestBatch(ctx context.Context, reqs []IngestRequest) []IngestOutcome {
	items := make([]llm.WorkItem[IngestOutcome], 0, len(reqs))
	for i, req := range reqs {
		req := req
		items = append(items, llm.WorkItem[IngestOutcome]{
			ID: fmt.Sprintf("ingest-%d", i),
			Execute: func(ctx context.Context) (IngestOutcome, error) {
				doc, result, err := s.Ingest(ctx, req)
				if err != nil {
					return IngestOutcome{Document: doc, Error: logging.SanitizeError(err)}, nil
				}
				return IngestOutcome{Document: doc, Result: result}, nil
			},
		})
	}

	results := llm.Process(ctx, s.pool, items, func(completed, total int) {
		s.logger.Debug("Batch ingest progress",
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	outcomes := make([]IngestOutcome, 0, len(results))
	for _, r := range results {
		outcome := r.Result
		if r.Err != nil && outcome.Error == "" {
			outcome.Error = logging.SanitizeError(r.Err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *documentService) store(ctx context.Context, req IngestRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content must not be empty")
	}

	org, err := s.orgs.GetByCode(ctx, req.OrganizationCode)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("unknown organization %q: %w", req.OrganizationCode, apperrors.ErrNotFound)
	}

	doc := &models.Document{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Title:          strings.TrimSpace(req.Title),
		Category:       strings.TrimSpace(req.Category),
		Department:     strings.TrimSpace(req.Department),
		Content:        req.Content,
		SizeBytes:      int64(len(req.Content)),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

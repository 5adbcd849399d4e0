package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/config"
	"github.com/veridoc-inc/veridoc-engine/pkg/jsonutil"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/prompts"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// degradedConsolidationConfidence is the result confidence recorded when a
// collaborator failure forces the fallback path.
const degradedConsolidationConfidence = 0.5

// extractionTemperature keeps extraction near-deterministic.
const extractionTemperature = 0.1

// ConsolidationService reconciles a newly ingested document into its
// organization's consolidated entity profile. Consolidation for one
// organization is strictly serialized; different organizations proceed
// concurrently.
type ConsolidationService interface {
	Consolidate(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error)
}

type consolidationService struct {
	client     llm.SemanticClient
	documents  repositories.DocumentRepository
	entities   repositories.EntityRepository
	orgs       repositories.OrganizationRepository
	validation repositories.ValidationLogRepository
	cfg        config.ConsolidationConfig
	logger     *zap.Logger

	mu       sync.Mutex
	orgLocks map[uuid.UUID]*sync.Mutex
}

// NewConsolidationService creates a new ConsolidationService.
func NewConsolidationService(
	client llm.SemanticClient,
	documents repositories.DocumentRepository,
	entities repositories.EntityRepository,
	orgs repositories.OrganizationRepository,
	validation repositories.ValidationLogRepository,
	cfg config.ConsolidationConfig,
	logger *zap.Logger,
) ConsolidationService {
	return &consolidationService{
		client:     client,
		documents:  documents,
		entities:   entities,
		orgs:       orgs,
		validation: validation,
		cfg:        cfg,
		logger:     logger.Named("consolidation"),
		orgLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

var _ ConsolidationService = (*consolidationService)(nil)

// lockFor returns the mutex serializing consolidation for one organization.
func (s *consolidationService) lockFor(organizationID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.orgLocks[organizationID]
	if !ok {
		lock = &sync.Mutex{}
		s.orgLocks[organizationID] = lock
	}
	return lock
}

// extractionResponse mirrors the collaborator's extraction JSON.
type extractionResponse struct {
	Entities []struct {
		Type            string            `json:"type"`
		Field           string            `json:"field"`
		NormalizedValue string            `json:"normalized_value"`
		Attributes      map[string]string `json:"attributes"`
		Confidence      json.RawMessage   `json:"confidence"`
	} `json:"entities"`
	Corrections []struct {
		OriginalText  string          `json:"original_text"`
		CorrectedText string          `json:"corrected_text"`
		Confidence    json.RawMessage `json:"confidence"`
	} `json:"corrections"`
}

// comparisonResponse mirrors the collaborator's conflict JSON.
type comparisonResponse struct {
	Conflicts []struct {
		Type           string          `json:"type"`
		Field          string          `json:"field"`
		NewValue       string          `json:"new_value"`
		ExistingValue  string          `json:"existing_value"`
		Recommendation string          `json:"recommendation"`
		Confidence     json.RawMessage `json:"confidence"`
	} `json:"conflicts"`
}

func (s *consolidationService) Consolidate(ctx context.Context, documentID uuid.UUID) (*models.ConsolidationResult, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc == nil {
		return nil, apperrors.ErrNotFound
	}

	lock := s.lockFor(doc.OrganizationID)
	lock.Lock()
	defer lock.Unlock()

	logger := s.logger.With(
		zap.String("document_id", doc.ID.String()),
		zap.String("organization_id", doc.OrganizationID.String()))

	priorDocs, err := s.loadPriorDocuments(ctx, doc)
	if err != nil {
		return nil, err
	}

	entities, corrections, extractErr := s.extract(ctx, doc, priorDocs)
	if extractErr != nil {
		logger.Warn("Extraction failed, recording degraded consolidation",
			zap.String("error", logging.SanitizeError(extractErr)))
		return s.consolidateDegraded(ctx, doc)
	}

	correctedText, applied := s.applyCorrections(ctx, doc, corrections, logger)

	profile, err := s.entities.GetProfile(ctx, doc.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load entity profile: %w", err)
	}

	conflicts := s.compare(ctx, entities, profile, logger)
	merged, resolvedCount := reconcileProfile(profile, entities, conflicts, s.cfg.ApplyThreshold)

	newProfile := buildProfile(doc.OrganizationID, merged, profile, resolvedCount)

	if err := s.entities.UpsertDocumentEntities(ctx, doc.ID, entities); err != nil {
		return nil, fmt.Errorf("store document entities: %w", err)
	}
	if err := s.entities.ReplaceProfile(ctx, newProfile); err != nil {
		return nil, fmt.Errorf("replace entity profile: %w", err)
	}

	result := &models.ConsolidationResult{
		DocumentID:         doc.ID,
		OrganizationID:     doc.OrganizationID,
		CorrectedText:      correctedText,
		Entities:           entities,
		Corrections:        corrections,
		CorrectionsApplied: applied,
		Conflicts:          conflicts,
		Confidence:         newProfile.DataQuality.ConfidenceScore,
	}

	logger.Info("Consolidated document",
		zap.Int("entities", len(entities)),
		zap.Int("corrections_applied", applied),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("conflicts_resolved", resolvedCount))

	return result, nil
}

// consolidateDegraded records the fallback outcome: the document's entity set
// is stored empty, the profile and text stay untouched, and the result carries
// the fixed degraded confidence.
func (s *consolidationService) consolidateDegraded(ctx context.Context, doc *models.Document) (*models.ConsolidationResult, error) {
	if err := s.entities.UpsertDocumentEntities(ctx, doc.ID, []models.Entity{}); err != nil {
		return nil, fmt.Errorf("store empty entity set: %w", err)
	}
	return &models.ConsolidationResult{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
		CorrectedText:  doc.Content,
		Entities:       []models.Entity{},
		Confidence:     degradedConsolidationConfidence,
		Degraded:       true,
	}, nil
}

func (s *consolidationService) loadPriorDocuments(ctx context.Context, doc *models.Document) ([]*models.Document, error) {
	recent, err := s.documents.ListRecentByOrganization(ctx, doc.OrganizationID, s.cfg.MaxPriorDocuments+1)
	if err != nil {
		return nil, fmt.Errorf("load prior documents: %w", err)
	}
	prior := make([]*models.Document, 0, s.cfg.MaxPriorDocuments)
	for i := range recent {
		if recent[i].ID == doc.ID {
			continue
		}
		if len(prior) == s.cfg.MaxPriorDocuments {
			break
		}
		prior = append(prior, &recent[i])
	}
	return prior, nil
}

// extract runs the extraction prompt and filters results. Entities below the
// minimum confidence are dropped; corrections keep their confidence for the
// apply decision.
func (s *consolidationService) extract(ctx context.Context, doc *models.Document, priorDocs []*models.Document) ([]models.Entity, []models.Correction, error) {
	prompt := prompts.BuildEntityExtractionPrompt(doc, priorDocs)
	response, err := s.client.GenerateResponse(ctx, prompt, prompts.BuildEntityExtractionSystemMessage(), extractionTemperature)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := llm.ParseJSONResponse[extractionResponse](response)
	if err != nil {
		// Array fields do not regex-recover; an unparseable extraction is a
		// degraded consolidation.
		return nil, nil, fmt.Errorf("parse extraction response: %w", err)
	}

	entities := make([]models.Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		entityType := models.EntityType(strings.ToLower(strings.TrimSpace(e.Type)))
		if !models.IsValidEntityType(entityType) {
			continue
		}
		confidence := jsonutil.NormalizeConfidence01(jsonutil.FlexibleFloatValue(e.Confidence))
		if confidence < s.cfg.MinEntityConfidence {
			continue
		}
		entities = append(entities, models.Entity{
			Type:             entityType,
			Field:            NormalizeFieldKey(e.Field),
			NormalizedValue:  strings.TrimSpace(e.NormalizedValue),
			Attributes:       e.Attributes,
			Confidence:       confidence,
			SourceDocumentID: doc.ID,
		})
	}

	corrections := make([]models.Correction, 0, len(parsed.Corrections))
	for _, c := range parsed.Corrections {
		if c.OriginalText == "" || c.CorrectedText == "" {
			continue
		}
		corrections = append(corrections, models.Correction{
			OriginalText:  c.OriginalText,
			CorrectedText: c.CorrectedText,
			Confidence:    jsonutil.NormalizeConfidence01(jsonutil.FlexibleFloatValue(c.Confidence)),
		})
	}

	return entities, corrections, nil
}

// applyCorrections logs every correction attempt, applies those at or above
// the threshold whose original text actually occurs, and persists the
// corrected content when anything changed. Returns the effective text and the
// applied count.
func (s *consolidationService) applyCorrections(ctx context.Context, doc *models.Document, corrections []models.Correction, logger *zap.Logger) (string, int) {
	text := doc.Content
	applied := 0

	for _, c := range corrections {
		apply := c.Confidence >= s.cfg.ApplyThreshold && strings.Contains(text, c.OriginalText)
		if apply {
			text = strings.ReplaceAll(text, c.OriginalText, c.CorrectedText)
			applied++
		}

		entry := &models.ValidationLog{
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
			OriginalText:   c.OriginalText,
			CorrectedText:  c.CorrectedText,
			Confidence:     c.Confidence,
			Applied:        apply,
		}
		if err := s.validation.Insert(ctx, entry); err != nil {
			logger.Warn("Validation log write failed",
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	if applied > 0 {
		if err := s.documents.SetCorrectedContent(ctx, doc.ID, text); err != nil {
			logger.Warn("Failed to store corrected content",
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	return text, applied
}

// compare runs the conflict prompt against the prior profile. A failure here
// degrades to "no conflicts" so extraction results still land.
func (s *consolidationService) compare(ctx context.Context, entities []models.Entity, profile *models.EntityProfile, logger *zap.Logger) []models.EntityConflict {
	if len(entities) == 0 || profile == nil || len(profile.Entities) == 0 {
		return nil
	}

	prompt := prompts.BuildEntityComparisonPrompt(entities, profile)
	response, err := s.client.GenerateResponse(ctx, prompt, prompts.BuildEntityComparisonSystemMessage(), extractionTemperature)
	if err != nil {
		logger.Warn("Comparison call failed, keeping both values for all fields",
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	parsed, err := llm.ParseJSONResponse[comparisonResponse](response)
	if err != nil {
		logger.Warn("Unparseable comparison response, keeping both values",
			zap.String("response", logging.TruncateString(response, 200)))
		return nil
	}

	conflicts := make([]models.EntityConflict, 0, len(parsed.Conflicts))
	for _, c := range parsed.Conflicts {
		entityType := models.EntityType(strings.ToLower(strings.TrimSpace(c.Type)))
		recommendation := models.ConflictRecommendation(strings.ToLower(strings.TrimSpace(c.Recommendation)))
		if !models.IsValidEntityType(entityType) || !models.IsValidRecommendation(recommendation) {
			continue
		}
		conflicts = append(conflicts, models.EntityConflict{
			Type:           entityType,
			Field:          NormalizeFieldKey(c.Field),
			NewValue:       c.NewValue,
			ExistingValue:  c.ExistingValue,
			Recommendation: recommendation,
			Confidence:     jsonutil.NormalizeConfidence01(jsonutil.FlexibleFloatValue(c.Confidence)),
		})
	}
	return conflicts
}

// reconcileProfile merges new entities into the prior profile's entity set,
// applying conflict recommendations at or above the threshold. Sub-threshold
// conflicts keep both values. Returns the merged set and the resolved count.
func reconcileProfile(profile *models.EntityProfile, entities []models.Entity, conflicts []models.EntityConflict, threshold float64) (map[models.EntityType][]models.Entity, int) {
	merged := make(map[models.EntityType][]models.Entity)
	if profile != nil {
		for t, list := range profile.Entities {
			merged[t] = append([]models.Entity(nil), list...)
		}
	}

	resolved := 0
	dropNew := map[string]bool{}      // type|field of new entities suppressed by use_existing
	dropExisting := map[string]bool{} // type|field of existing entities superseded by use_new

	for i := range conflicts {
		c := &conflicts[i]
		if c.Confidence < threshold {
			continue
		}
		c.Resolved = true
		resolved++
		key := string(c.Type) + "|" + c.Field
		switch c.Recommendation {
		case models.ResolveUseNew:
			dropExisting[key] = true
		case models.ResolveUseExisting:
			dropNew[key] = true
		case models.ResolveMerge:
			// Both values stand.
		}
	}

	for t, list := range merged {
		kept := list[:0]
		for _, e := range list {
			if !dropExisting[string(t)+"|"+e.Field] {
				kept = append(kept, e)
			}
		}
		merged[t] = kept
	}

	for _, e := range entities {
		if dropNew[string(e.Type)+"|"+e.Field] {
			continue
		}
		if hasEntityValue(merged[e.Type], e.Field, e.NormalizedValue) {
			continue
		}
		merged[e.Type] = append(merged[e.Type], e)
	}

	return merged, resolved
}

func hasEntityValue(list []models.Entity, field, value string) bool {
	for _, e := range list {
		if e.Field == field && strings.EqualFold(e.NormalizedValue, value) {
			return true
		}
	}
	return false
}

// buildProfile assembles the full-replace profile. Quality metrics derive
// from the merged entity set itself, so re-consolidating the same document
// reproduces the same profile.
func buildProfile(organizationID uuid.UUID, merged map[models.EntityType][]models.Entity, prior *models.EntityProfile, resolvedCount int) *models.EntityProfile {
	total := 0
	confidenceSum := 0.0
	sourceDocs := map[uuid.UUID]bool{}
	var crossRefs []models.CrossReference
	for _, list := range merged {
		for _, e := range list {
			total++
			confidenceSum += e.Confidence
			sourceDocs[e.SourceDocumentID] = true
			crossRefs = appendCrossReference(crossRefs, e)
		}
	}

	score := 0.0
	if total > 0 {
		score = confidenceSum / float64(total)
	}

	priorResolved := 0
	if prior != nil {
		priorResolved = prior.DataQuality.ConflictsResolved
	}

	now := time.Now().UTC()
	return &models.EntityProfile{
		OrganizationID: organizationID,
		Entities:       merged,
		DataQuality: models.DataQuality{
			TotalDocuments:    len(sourceDocs),
			EntitiesExtracted: total,
			ConflictsResolved: priorResolved + resolvedCount,
			ConfidenceScore:   score,
			LastUpdated:       now,
		},
		CrossReferences: crossRefs,
		UpdatedAt:       now,
	}
}

func appendCrossReference(refs []models.CrossReference, e models.Entity) []models.CrossReference {
	for i := range refs {
		if refs[i].Field == e.Field && strings.EqualFold(refs[i].Value, e.NormalizedValue) {
			if !containsID(refs[i].DocumentIDs, e.SourceDocumentID) {
				refs[i].DocumentIDs = append(refs[i].DocumentIDs, e.SourceDocumentID)
			}
			return refs
		}
	}
	return append(refs, models.CrossReference{
		Field:       e.Field,
		Value:       e.NormalizedValue,
		DocumentIDs: []uuid.UUID{e.SourceDocumentID},
	})
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var fieldKeySeparators = regexp.MustCompile(`[\s\-/]+`)

// NormalizeFieldKey canonicalizes a collaborator-chosen field name into a
// singular snake_case key, so "CEOs", "ceo" and "Ceo " land on one profile
// field.
func NormalizeFieldKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = fieldKeySeparators.ReplaceAllString(key, "_")
	parts := strings.Split(key, "_")
	for i, part := range parts {
		parts[i] = inflection.Singular(part)
	}
	return strings.Join(parts, "_")
}

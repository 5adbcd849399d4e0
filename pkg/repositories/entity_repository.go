package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// DocumentEntities pairs a document with its reconciled entity set.
type DocumentEntities struct {
	DocumentID uuid.UUID
	Entities   []models.Entity
}

// EntityRepository provides data access for per-document entity sets and
// per-organization consolidated profiles. Profile writes are full replaces,
// never partial patches.
type EntityRepository interface {
	// UpsertDocumentEntities stores the reconciled entity set for one document,
	// replacing any previous set.
	UpsertDocumentEntities(ctx context.Context, documentID uuid.UUID, entities []models.Entity) error
	GetDocumentEntities(ctx context.Context, documentID uuid.UUID) ([]models.Entity, error)
	// ListByDocuments returns entity sets for the given documents.
	ListByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]DocumentEntities, error)
	// GetProfile returns the organization's consolidated profile, or nil when
	// no document has been consolidated yet.
	GetProfile(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error)
	// ReplaceProfile writes the organization's profile as a full replace.
	ReplaceProfile(ctx context.Context, profile *models.EntityProfile) error
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) UpsertDocumentEntities(ctx context.Context, documentID uuid.UUID, entities []models.Entity) error {
	if entities == nil {
		entities = []models.Entity{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	query := `
		INSERT INTO engine_document_entities (document_id, entities, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (document_id)
		DO UPDATE SET entities = EXCLUDED.entities, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, documentID, entitiesJSON); err != nil {
		return fmt.Errorf("failed to upsert document entities: %w", err)
	}

	return nil
}

func (r *entityRepository) GetDocumentEntities(ctx context.Context, documentID uuid.UUID) ([]models.Entity, error) {
	var entitiesJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT entities FROM engine_document_entities WHERE document_id = $1`, documentID).
		Scan(&entitiesJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get document entities: %w", err)
	}

	var entities []models.Entity
	if err := json.Unmarshal(entitiesJSON, &entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}

	return entities, nil
}

func (r *entityRepository) ListByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]DocumentEntities, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT document_id, entities
		FROM engine_document_entities
		WHERE document_id = ANY($1)`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list document entities: %w", err)
	}
	defer rows.Close()

	results := make([]DocumentEntities, 0, len(documentIDs))
	for rows.Next() {
		var de DocumentEntities
		var entitiesJSON []byte
		if err := rows.Scan(&de.DocumentID, &entitiesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document entities: %w", err)
		}
		if err := json.Unmarshal(entitiesJSON, &de.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
		results = append(results, de)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document entities: %w", err)
	}

	return results, nil
}

func (r *entityRepository) GetProfile(ctx context.Context, organizationID uuid.UUID) (*models.EntityProfile, error) {
	var p models.EntityProfile
	var entitiesJSON, qualityJSON, crossRefsJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT organization_id, entities, data_quality, cross_references, updated_at
		FROM engine_entity_profiles
		WHERE organization_id = $1`, organizationID).
		Scan(&p.OrganizationID, &entitiesJSON, &qualityJSON, &crossRefsJSON, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get entity profile: %w", err)
	}

	if err := json.Unmarshal(entitiesJSON, &p.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal profile entities: %w", err)
	}
	if err := json.Unmarshal(qualityJSON, &p.DataQuality); err != nil {
		return nil, fmt.Errorf("unmarshal data quality: %w", err)
	}
	if err := json.Unmarshal(crossRefsJSON, &p.CrossReferences); err != nil {
		return nil, fmt.Errorf("unmarshal cross references: %w", err)
	}

	return &p, nil
}

func (r *entityRepository) ReplaceProfile(ctx context.Context, profile *models.EntityProfile) error {
	if profile.Entities == nil {
		profile.Entities = map[models.EntityType][]models.Entity{}
	}
	if profile.CrossReferences == nil {
		profile.CrossReferences = []models.CrossReference{}
	}

	entitiesJSON, err := json.Marshal(profile.Entities)
	if err != nil {
		return fmt.Errorf("marshal profile entities: %w", err)
	}
	qualityJSON, err := json.Marshal(profile.DataQuality)
	if err != nil {
		return fmt.Errorf("marshal data quality: %w", err)
	}
	crossRefsJSON, err := json.Marshal(profile.CrossReferences)
	if err != nil {
		return fmt.Errorf("marshal cross references: %w", err)
	}

	query := `
		INSERT INTO engine_entity_profiles (organization_id, entities, data_quality, cross_references, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (organization_id)
		DO UPDATE SET
			entities = EXCLUDED.entities,
			data_quality = EXCLUDED.data_quality,
			cross_references = EXCLUDED.cross_references,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		profile.OrganizationID, entitiesJSON, qualityJSON, crossRefsJSON,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to replace entity profile: %w", err)
	}

	return nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// KnowledgeRepository provides data access for curated knowledge entries.
type KnowledgeRepository interface {
	Create(ctx context.Context, entry *models.KnowledgeEntry) error
	// Search performs a ranked full-text search over the knowledge base.
	Search(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeEntry, error)
}

type knowledgeRepository struct {
	db *database.DB
}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository(db *database.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

var _ KnowledgeRepository = (*knowledgeRepository)(nil)

func (r *knowledgeRepository) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_knowledge_entries (id, organization_id, title, content, category, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		entry.ID, entry.OrganizationID, entry.Title, entry.Content, entry.Category,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	return nil
}

func (r *knowledgeRepository) Search(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	sql := `
		SELECT id, organization_id, title, content, category, created_at
		FROM engine_knowledge_entries
		WHERE to_tsvector('simple', title || ' ' || content) @@ websearch_to_tsquery('simple', $1)
		ORDER BY ts_rank(to_tsvector('simple', title || ' ' || content),
		                 websearch_to_tsquery('simple', $1)) DESC, created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	defer rows.Close()

	entries := make([]models.KnowledgeEntry, 0)
	for rows.Next() {
		var e models.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Content, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge entries: %w", err)
	}

	return entries, nil
}

func (r *knowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeEntry, error) {
	query := `
		SELECT id, organization_id, title, content, category, created_at
		FROM engine_knowledge_entries
		WHERE id = $1`

	var e models.KnowledgeEntry
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.OrganizationID, &e.Title, &e.Content, &e.Category, &e.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}

	return &e, nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// DocumentRepository provides data access for corpus documents, including the
// ranked full-text search the aggregator consumes.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// Search performs a ranked full-text search constrained by filters.
	Search(ctx context.Context, query string, filters models.SearchFilters) ([]models.Document, error)
	// ListRecentByOrganization returns the newest documents for one
	// organization, bounded by limit, newest first.
	ListRecentByOrganization(ctx context.Context, organizationID uuid.UUID, limit int) ([]models.Document, error)
	// SetCorrectedContent stores the post-correction text and stamps
	// consolidated_at with the server clock.
	SetCorrectedContent(ctx context.Context, id uuid.UUID, corrected string) error
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

var _ DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.SizeBytes == 0 {
		doc.SizeBytes = int64(len(doc.Content))
	}

	query := `
		INSERT INTO engine_documents (
			id, organization_id, title, category, department, content,
			corrected_content, size_bytes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		doc.ID, doc.OrganizationID, doc.Title, doc.Category, doc.Department,
		doc.Content, doc.CorrectedContent, doc.SizeBytes,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, organization_id, title, category, department, content,
		       corrected_content, size_bytes, consolidated_at, created_at
		FROM engine_documents
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	doc, err := scanDocumentRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return doc, nil
}

func (r *documentRepository) Search(ctx context.Context, query string, filters models.SearchFilters) ([]models.Document, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 10
	}

	sql := `
		SELECT d.id, d.organization_id, d.title, d.category, d.department, d.content,
		       d.corrected_content, d.size_bytes, d.consolidated_at, d.created_at
		FROM engine_documents d
		LEFT JOIN engine_organizations o ON o.id = d.organization_id
		WHERE to_tsvector('simple', d.title || ' ' || d.content) @@ websearch_to_tsquery('simple', $1)`
	args := []any{query}

	if filters.OrganizationCode != "" {
		args = append(args, filters.OrganizationCode)
		sql += fmt.Sprintf(" AND o.code = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		sql += fmt.Sprintf(" AND d.category = $%d", len(args))
	}
	if filters.Department != "" {
		args = append(args, filters.Department)
		sql += fmt.Sprintf(" AND d.department = $%d", len(args))
	}
	if filters.CreatedAfter != nil {
		args = append(args, *filters.CreatedAfter)
		sql += fmt.Sprintf(" AND d.created_at >= $%d", len(args))
	}
	if filters.CreatedBefore != nil {
		args = append(args, *filters.CreatedBefore)
		sql += fmt.Sprintf(" AND d.created_at <= $%d", len(args))
	}
	if filters.MinSizeBytes > 0 {
		args = append(args, filters.MinSizeBytes)
		sql += fmt.Sprintf(" AND d.size_bytes >= $%d", len(args))
	}
	if filters.MaxSizeBytes > 0 {
		args = append(args, filters.MaxSizeBytes)
		sql += fmt.Sprintf(" AND d.size_bytes <= $%d", len(args))
	}

	args = append(args, limit)
	sql += fmt.Sprintf(`
		ORDER BY ts_rank(to_tsvector('simple', d.title || ' ' || d.content),
		                 websearch_to_tsquery('simple', $1)) DESC, d.created_at DESC
		LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *documentRepository) ListRecentByOrganization(ctx context.Context, organizationID uuid.UUID, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, organization_id, title, category, department, content,
		       corrected_content, size_bytes, consolidated_at, created_at
		FROM engine_documents
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *documentRepository) SetCorrectedContent(ctx context.Context, id uuid.UUID, corrected string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE engine_documents
		SET corrected_content = $2, consolidated_at = now()
		WHERE id = $1`, id, corrected)
	if err != nil {
		return fmt.Errorf("failed to set corrected content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return nil
}

func collectDocuments(rows pgx.Rows) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		var consolidatedAt *time.Time
		err := rows.Scan(
			&d.ID, &d.OrganizationID, &d.Title, &d.Category, &d.Department,
			&d.Content, &d.CorrectedContent, &d.SizeBytes, &consolidatedAt, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.ConsolidatedAt = consolidatedAt
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func scanDocumentRow(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var consolidatedAt *time.Time

	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.Title, &d.Category, &d.Department,
		&d.Content, &d.CorrectedContent, &d.SizeBytes, &consolidatedAt, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	d.ConsolidatedAt = consolidatedAt

	return &d, nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// ValidationLogRepository records correction attempts. Rows are append-only;
// there is deliberately no update or delete.
type ValidationLogRepository interface {
	Insert(ctx context.Context, entry *models.ValidationLog) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.ValidationLog, error)
}

type validationLogRepository struct {
	db *database.DB
}

// NewValidationLogRepository creates a new ValidationLogRepository.
func NewValidationLogRepository(db *database.DB) ValidationLogRepository {
	return &validationLogRepository{db: db}
}

var _ ValidationLogRepository = (*validationLogRepository)(nil)

func (r *validationLogRepository) Insert(ctx context.Context, entry *models.ValidationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_validation_logs (
			id, document_id, organization_id, original_text, corrected_text,
			confidence, applied, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		entry.ID, entry.DocumentID, entry.OrganizationID,
		entry.OriginalText, entry.CorrectedText, entry.Confidence, entry.Applied,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert validation log: %w", err)
	}

	return nil
}

func (r *validationLogRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.ValidationLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, organization_id, original_text, corrected_text,
		       confidence, applied, created_at
		FROM engine_validation_logs
		WHERE document_id = $1
		ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation logs: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ValidationLog, 0)
	for rows.Next() {
		var e models.ValidationLog
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.OrganizationID, &e.OriginalText,
			&e.CorrectedText, &e.Confidence, &e.Applied, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan validation log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation logs: %w", err)
	}

	return entries, nil
}

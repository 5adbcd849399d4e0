package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// SafetyRuleRepository provides data access for persisted safety regex rules.
type SafetyRuleRepository interface {
	ListActive(ctx context.Context) ([]models.SafetyRule, error)
	Upsert(ctx context.Context, rule *models.SafetyRule) error
}

type safetyRuleRepository struct {
	db *database.DB
}

// NewSafetyRuleRepository creates a new SafetyRuleRepository.
func NewSafetyRuleRepository(db *database.DB) SafetyRuleRepository {
	return &safetyRuleRepository{db: db}
}

var _ SafetyRuleRepository = (*safetyRuleRepository)(nil)

func (r *safetyRuleRepository) ListActive(ctx context.Context) ([]models.SafetyRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, pattern, active, created_at, updated_at
		FROM engine_safety_rules
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list safety rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.SafetyRule, 0)
	for rows.Next() {
		var rule models.SafetyRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Pattern, &rule.Active,
			&rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan safety rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating safety rules: %w", err)
	}

	return rules, nil
}

func (r *safetyRuleRepository) Upsert(ctx context.Context, rule *models.SafetyRule) error {
	now := time.Now()
	rule.UpdatedAt = now
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
		rule.CreatedAt = now
	}

	query := `
		INSERT INTO engine_safety_rules (id, name, pattern, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name)
		DO UPDATE SET
			pattern = EXCLUDED.pattern,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.Pattern, rule.Active, rule.CreatedAt, rule.UpdatedAt,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert safety rule: %w", err)
	}

	return nil
}

package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// OrganizationRepository provides data access for organizations and their
// departments. Deleting an organization cascades to its documents, entities,
// profile and departments at the database level.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	// GetByCode resolves an organization by code or alias, case-insensitively.
	GetByCode(ctx context.Context, code string) (*models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateDepartment(ctx context.Context, dept *models.Department) error
	// GetDepartment resolves a department by name or alias, case-insensitively,
	// optionally scoped to one organization.
	GetDepartment(ctx context.Context, organizationID *uuid.UUID, name string) (*models.Department, error)
	ListDepartments(ctx context.Context, organizationID uuid.UUID) ([]models.Department, error)
}

type organizationRepository struct {
	db *database.DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *database.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

var _ OrganizationRepository = (*organizationRepository)(nil)

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.Code = strings.ToUpper(strings.TrimSpace(org.Code))

	query := `
		INSERT INTO engine_organizations (id, code, name, aliases, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, org.ID, org.Code, org.Name, org.Aliases).Scan(&org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, code, name, aliases, created_at
		FROM engine_organizations
		WHERE id = $1`, id)
	return scanOrganizationRow(row)
}

func (r *organizationRepository) GetByCode(ctx context.Context, code string) (*models.Organization, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, code, name, aliases, created_at
		FROM engine_organizations
		WHERE upper(code) = upper($1)
		   OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE upper(a) = upper($1))`, code)
	return scanOrganizationRow(row)
}

func (r *organizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, aliases, created_at
		FROM engine_organizations
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]models.Organization, 0)
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Code, &o.Name, &o.Aliases, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgs, nil
}

func (r *organizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *organizationRepository) CreateDepartment(ctx context.Context, dept *models.Department) error {
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_departments (id, organization_id, name, aliases, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, dept.ID, dept.OrganizationID, dept.Name, dept.Aliases).
		Scan(&dept.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}

	return nil
}

func (r *organizationRepository) GetDepartment(ctx context.Context, organizationID *uuid.UUID, name string) (*models.Department, error) {
	query := `
		SELECT id, organization_id, name, aliases, created_at
		FROM engine_departments
		WHERE (upper(name) = upper($1)
		       OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE upper(a) = upper($1)))`
	args := []any{name}
	if organizationID != nil {
		args = append(args, *organizationID)
		query += fmt.Sprintf(" AND organization_id = $%d", len(args))
	}
	query += " LIMIT 1"

	var d models.Department
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Aliases, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}

	return &d, nil
}

func (r *organizationRepository) ListDepartments(ctx context.Context, organizationID uuid.UUID) ([]models.Department, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, organization_id, name, aliases, created_at
		FROM engine_departments
		WHERE organization_id = $1
		ORDER BY name`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	depts := make([]models.Department, 0)
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Aliases, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		depts = append(depts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating departments: %w", err)
	}

	return depts, nil
}

func scanOrganizationRow(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Code, &o.Name, &o.Aliases, &o.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &o, nil
}

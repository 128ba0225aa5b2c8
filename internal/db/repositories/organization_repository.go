// organization_repository.go implements OrganizationRepository, providing database
// queries for organization CRUD and the transactional create-with-owner operation that
// guarantees an organization never exists without its OWNER membership.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const orgColumns = `id, name, display_name, description, logo_url, started_at, org_type, created_by, created_at, updated_at`

func scanOrganization(row interface{ Scan(...interface{}) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.DisplayName,
		&org.Description,
		&org.LogoURL,
		&org.StartedAt,
		&org.Type,
		&org.CreatedBy,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetByName retrieves an organization by its name (case-insensitive)
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE LOWER(name) = LOWER($1)`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization by name: %w", err)
	}

	return org, nil
}

// CreateWithOwner inserts the organization and its creator's OWNER membership in one
// transaction. Both writes commit or neither does: no request ever observes an
// organization without an owner. A duplicate name fails with ErrDuplicateOrganization.
func (r *OrganizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization, ownerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	insertOrg := `
		INSERT INTO organizations (name, display_name, description, logo_url, started_at, org_type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertOrg,
		org.Name,
		org.DisplayName,
		org.Description,
		org.LogoURL,
		org.StartedAt,
		org.Type,
		ownerID,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrganization
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.CreatedBy = ownerID

	insertMembership := `
		INSERT INTO memberships (organization_id, user_id, role, status)
		VALUES ($1, $2, 'OWNER', 'ACTIVE')
	`
	if _, err := tx.ExecContext(ctx, insertMembership, org.ID, ownerID); err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization creation: %w", err)
	}

	return nil
}

// Update applies a patch to an organization. Nil patch fields are left unchanged.
func (r *OrganizationRepository) Update(ctx context.Context, id string, patch *models.OrganizationPatch) (*models.Organization, error) {
	query := `
		UPDATE organizations
		SET display_name = COALESCE($2, display_name),
		    description = COALESCE($3, description),
		    logo_url = COALESCE($4, logo_url),
		    started_at = COALESCE($5, started_at),
		    org_type = COALESCE($6, org_type),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orgColumns

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query,
		id,
		patch.DisplayName,
		patch.Description,
		patch.LogoURL,
		patch.StartedAt,
		patch.Type,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// Delete removes an organization. Memberships and invitations are hard-deleted by
// the store's ON DELETE CASCADE; this is the only path that hard-deletes memberships.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ListForUser retrieves the organizations where the user holds an active membership,
// with the role attached, for organization-switcher views.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.UserOrganization, error) {
	query := `
		SELECT o.id, o.name, o.display_name, m.role, m.created_at
		FROM organizations o
		INNER JOIN memberships m ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.status = 'ACTIVE'
		ORDER BY o.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.UserOrganization, 0)
	for rows.Next() {
		uo := &models.UserOrganization{}
		err := rows.Scan(
			&uo.OrganizationID,
			&uo.OrganizationName,
			&uo.DisplayName,
			&uo.Role,
			&uo.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user organization: %w", err)
		}
		orgs = append(orgs, uo)
	}

	return orgs, rows.Err()
}

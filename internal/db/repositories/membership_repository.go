// membership_repository.go implements MembershipRepository, providing membership
// lookups for tenant-context resolution plus the transactional bulk role update
// (all-or-nothing with its audit entry) and the soft-removal operation.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk/internal/db/models"
)

// MembershipRepository handles database operations for memberships
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `organization_id, user_id, role, status, removed_at, created_at, updated_at`

// Get retrieves a membership by its composite (organization, user) identity.
// Returns the row regardless of status; callers decide how to treat REMOVED.
func (r *MembershipRepository) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE organization_id = $1 AND user_id = $2`

	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.OrganizationID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.RemovedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// ListByOrganization retrieves all memberships of an organization with user details.
// Removed members are included (status tells them apart) so admin screens can show
// membership history.
func (r *MembershipRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.MembershipWithUser, error) {
	query := `
		SELECT m.organization_id, m.user_id, m.role, m.status, m.removed_at, m.created_at, m.updated_at,
		       COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email
		FROM memberships m
		LEFT JOIN users u ON m.user_id = u.id
		WHERE m.organization_id = $1
		ORDER BY m.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MembershipWithUser, 0)
	for rows.Next() {
		m := &models.MembershipWithUser{}
		err := rows.Scan(
			&m.OrganizationID,
			&m.UserID,
			&m.Role,
			&m.Status,
			&m.RemovedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.UserName,
			&m.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// BulkUpdateRoles applies a batch of role changes and writes one audit entry, all in
// a single transaction. Every target is locked and verified active before any write:
// if a single target is missing or removed the whole batch rolls back with
// ErrMemberNotFound, leaving every role unchanged. A batch that would leave the
// organization without an active OWNER rolls back with ErrLastOwner.
func (r *MembershipRepository) BulkUpdateRoles(ctx context.Context, orgID string, updates map[string]models.Role, actorID string, ipAddress *string) error {
	if len(updates) == 0 {
		return nil
	}

	// Deterministic lock order prevents two concurrent batches from deadlocking.
	targets := make([]string, 0, len(updates))
	for userID := range updates {
		targets = append(targets, userID)
	}
	sort.Strings(targets)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	// Validate the full update set before writing any row.
	for _, userID := range targets {
		var status models.MembershipStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM memberships WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
			orgID, userID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("user %s: %w", userID, ErrMemberNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if status != models.MembershipActive {
			return fmt.Errorf("user %s: %w", userID, ErrMemberNotFound)
		}
	}

	summary := make([]string, 0, len(targets))
	for _, userID := range targets {
		role := updates[userID]
		_, err := tx.ExecContext(ctx,
			`UPDATE memberships SET role = $3, updated_at = NOW() WHERE organization_id = $1 AND user_id = $2`,
			orgID, userID, role,
		)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		summary = append(summary, fmt.Sprintf("%s => %s", userID, role))
	}

	// The batch must not demote every owner.
	var owners int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = 'OWNER' AND status = 'ACTIVE'`,
		orgID,
	).Scan(&owners)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners == 0 {
		return ErrLastOwner
	}

	resourceType := "membership"
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, message, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(),
		orgID,
		actorID,
		models.AuditActionRolesUpdated,
		resourceType,
		strings.Join(summary, ", "),
		ipAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role updates: %w", err)
	}

	return nil
}

// SoftRemove marks a membership REMOVED with a removal timestamp. The row is kept so
// membership history survives; access is revoked immediately because tenant-context
// resolution treats non-ACTIVE rows as non-members. Removing an already-removed
// member is a no-op success, reported via the removed return so callers can skip
// side effects. Removing the last active OWNER fails with ErrLastOwner.
func (r *MembershipRepository) SoftRemove(ctx context.Context, orgID, userID string) (removed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var role models.Role
	var status models.MembershipStatus
	err = tx.QueryRowContext(ctx,
		`SELECT role, status FROM memberships WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
		orgID, userID,
	).Scan(&role, &status)
	if err == sql.ErrNoRows {
		return false, ErrMemberNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock membership: %w", err)
	}

	if status == models.MembershipRemoved {
		return false, tx.Commit() // idempotent: already removed
	}

	if role == models.RoleOwner {
		var otherOwners int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memberships
			 WHERE organization_id = $1 AND role = 'OWNER' AND status = 'ACTIVE' AND user_id <> $2`,
			orgID, userID,
		).Scan(&otherOwners)
		if err != nil {
			return false, fmt.Errorf("failed to count owners: %w", err)
		}
		if otherOwners == 0 {
			return false, ErrLastOwner
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memberships SET status = 'REMOVED', removed_at = NOW(), updated_at = NOW()
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit member removal: %w", err)
	}

	return true, nil
}

// invitation_repository.go implements InvitationRepository, providing invitation
// persistence, token-prefix lookup, and the transactional accept operation that flips
// the accepted flag and establishes the membership atomically.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk/internal/db/models"
)

// InvitationRepository handles database operations for invitations
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, organization_id, email, role, token_prefix, token_hash, invited_by, expires_at, accepted, created_at`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&inv.Role,
		&inv.TokenPrefix,
		&inv.TokenHash,
		&inv.InvitedBy,
		&inv.ExpiresAt,
		&inv.Accepted,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts a new invitation. The store's partial unique index on
// (organization, email) WHERE NOT accepted rejects a second pending invitation for
// the same pair, which surfaces as ErrDuplicateInvitation when two create calls race.
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (organization_id, email, role, token_prefix, token_hash, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, accepted, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		inv.OrganizationID,
		inv.Email,
		inv.Role,
		inv.TokenPrefix,
		inv.TokenHash,
		inv.InvitedBy,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.Accepted, &inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInvitation
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetPendingByEmail retrieves the unaccepted invitation for an (organization, email)
// pair, expired or not. The caller decides whether an expired row is deleted and
// recreated or a live one returned unchanged.
func (r *InvitationRepository) GetPendingByEmail(ctx context.Context, orgID, email string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations
		WHERE organization_id = $1 AND LOWER(email) = LOWER($2) AND NOT accepted`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, orgID, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get pending invitation: %w", err)
	}

	return inv, nil
}

// ListByTokenPrefix retrieves invitation candidates sharing a token prefix. The raw
// token is never stored; callers narrow by prefix with this indexed query, then run
// the bcrypt comparison on the handful of candidates.
func (r *InvitationRepository) ListByTokenPrefix(ctx context.Context, prefix string) ([]*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_prefix = $1`

	rows, err := r.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations by prefix: %w", err)
	}
	defer rows.Close()

	invitations := make([]*models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// ListPendingByOrganization retrieves unaccepted, unexpired invitations for admin views.
func (r *InvitationRepository) ListPendingByOrganization(ctx context.Context, orgID string) ([]*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations
		WHERE organization_id = $1 AND NOT accepted AND expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]*models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// GetByID retrieves an invitation by ID
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// Delete removes an invitation row (expired-row cleanup and revocation).
func (r *InvitationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	return nil
}

// DeleteExpiredBefore removes unaccepted invitations that expired before the cutoff.
// Used by the background sweeper; returns the number of rows removed.
func (r *InvitationRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE NOT accepted AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}

	return result.RowsAffected()
}

// Accept flips the invitation's accepted flag and establishes the user's membership
// in one transaction. The guarded UPDATE (WHERE accepted = FALSE) resolves the
// concurrent double-accept race: the second transaction sees zero affected rows and
// fails with ErrAlreadyAccepted. The membership write preserves the one-row-per-pair
// invariant: a missing row is inserted, a REMOVED row is reactivated with the
// invitation's role, and an ACTIVE row fails with ErrAlreadyMember.
func (r *InvitationRepository) Accept(ctx context.Context, invitationID, userID string, role models.Role) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE invitations SET accepted = TRUE WHERE id = $1 AND accepted = FALSE`,
		invitationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read accept result: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyAccepted
	}

	var orgID string
	if err := tx.QueryRowContext(ctx,
		`SELECT organization_id FROM invitations WHERE id = $1`, invitationID,
	).Scan(&orgID); err != nil {
		return fmt.Errorf("failed to load invitation organization: %w", err)
	}

	var status models.MembershipStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM memberships WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
		orgID, userID,
	).Scan(&status)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memberships (organization_id, user_id, role, status) VALUES ($1, $2, $3, 'ACTIVE')`,
			orgID, userID, role,
		)
		if err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to lock membership: %w", err)
	case status == models.MembershipRemoved:
		// Re-invited after soft removal: reactivate the existing row rather than
		// inserting a second one.
		_, err = tx.ExecContext(ctx,
			`UPDATE memberships SET role = $3, status = 'ACTIVE', removed_at = NULL, updated_at = NOW()
			 WHERE organization_id = $1 AND user_id = $2`,
			orgID, userID, role,
		)
		if err != nil {
			return fmt.Errorf("failed to reactivate membership: %w", err)
		}
	default:
		return ErrAlreadyMember
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invitation accept: %w", err)
	}

	return nil
}

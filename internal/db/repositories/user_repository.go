// user_repository.go implements UserRepository, providing database queries for account
// lookup and identity-layer provisioning (upsert from verified token claims).
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/classdesk/classdesk/internal/db/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, oidc_sub, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.OIDCSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, oidc_sub, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.OIDCSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// UpsertFromClaims provisions or refreshes a user record from verified identity-layer
// claims. Matching is by email; the OIDC subject and display name are refreshed on
// every login so the local record tracks the identity provider.
func (r *UserRepository) UpsertFromClaims(ctx context.Context, email, name string, oidcSub *string) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, oidc_sub)
		VALUES ($1, $2, $3)
		ON CONFLICT (LOWER(email)) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		    oidc_sub = COALESCE(EXCLUDED.oidc_sub, users.oidc_sub),
		    updated_at = NOW()
		RETURNING id, email, name, oidc_sub, created_at, updated_at
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email, name, oidcSub).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.OIDCSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

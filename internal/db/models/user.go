// Package models - user.go defines the User model for platform accounts. Accounts are
// provisioned by the external identity layer (upserted from verified token claims on
// first authenticated request); this system only reads them.
package models

import "time"

// User represents an account known to the platform
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	OIDCSub   *string   `json:"-"` // OIDC subject identifier (unique per provider)
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

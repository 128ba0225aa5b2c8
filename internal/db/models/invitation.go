// Package models - invitation.go defines the Invitation model for inviting an email
// identity into an organization. The raw token is shown once at creation time; the
// store keeps only its bcrypt hash plus a short prefix for indexed lookup, the same
// scheme used for long-lived API credentials.
package models

import "time"

// Invitation represents a pending or accepted invitation bound to an email address.
// An invitation is "live" while accepted is false and ExpiresAt is in the future;
// at most one live invitation exists per (organization, email).
type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	TokenPrefix    string    `json:"-"`
	TokenHash      string    `json:"-"`
	InvitedBy      string    `json:"invited_by"`
	ExpiresAt      time.Time `json:"expires_at"`
	Accepted       bool      `json:"accepted"`
	CreatedAt      time.Time `json:"created_at"`
}

// Live reports whether the invitation is still actionable at the given instant.
func (i *Invitation) Live(now time.Time) bool {
	return !i.Accepted && now.Before(i.ExpiresAt)
}

// Expired reports whether the invitation validity window has passed.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// InvitationView is the public shape returned to token bearers viewing an invite,
// enriched with the organization name for display.
type InvitationView struct {
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	OrganizationName string    `json:"organization_name"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Package models - membership.go defines the Membership model linking users to
// organizations, the role enum, and the soft-removal status machine. Exactly one
// membership row exists per (user, organization) pair; removal flips the status
// rather than deleting the row so history survives while access is revoked.
package models

import "time"

// Role is the role a member holds within one organization.
type Role string

const (
	RoleOwner       Role = "OWNER"
	RoleAdmin       Role = "ADMIN"
	RoleManager     Role = "MANAGER"
	RoleMember      Role = "MEMBER"
	RoleAccountant  Role = "ACCOUNTANT"
	RoleOfficeStaff Role = "OFFICE_STAFF"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleAccountant, RoleOfficeStaff:
		return true
	}
	return false
}

// MembershipStatus tracks whether a member is active or soft-removed.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "ACTIVE"
	MembershipRemoved MembershipStatus = "REMOVED"
)

// Membership represents a user's membership in an organization.
// The (OrganizationID, UserID) pair is the composite identity.
type Membership struct {
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Role           Role             `json:"role"`
	Status         MembershipStatus `json:"status"`
	RemovedAt      *time.Time       `json:"removed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// MembershipWithUser includes user details for member listings.
type MembershipWithUser struct {
	Membership
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// UserOrganization includes organization details for a user's membership,
// used by organization-switcher views.
type UserOrganization struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	DisplayName      string    `json:"display_name"`
	Role             Role      `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
}

// Package auth - capabilities.go defines the role → capability table consulted by the
// permission enforcer. Every endpoint's authorization check is declarative: handlers
// name the capability they need and this table decides, so adding a role or capability
// is a single-table edit rather than a search for inline role arrays.
package auth

import "github.com/classdesk/classdesk/internal/db/models"

// Capability is a named permission granted to one or more roles.
type Capability string

const (
	// Organization management
	CapOrgRead   Capability = "org:read"
	CapOrgUpdate Capability = "org:update"
	CapOrgDelete Capability = "org:delete"

	// Member management
	CapMembersRead        Capability = "members:read"
	CapMembersUpdateRoles Capability = "members:update_roles"
	CapMembersRemove      Capability = "members:remove"

	// Invitations
	CapInvitesCreate Capability = "invites:create"
	CapInvitesRead   Capability = "invites:read"
	CapInvitesRevoke Capability = "invites:revoke"

	// Audit log
	CapAuditRead Capability = "audit:read"

	// Record-level features (consumed by the CRUD collaborators; the core only
	// grants them so every downstream check goes through the same table)
	CapCoursesRead    Capability = "courses:read"
	CapCoursesWrite   Capability = "courses:write"
	CapStudentsRead   Capability = "students:read"
	CapStudentsWrite  Capability = "students:write"
	CapSchedulesRead  Capability = "schedules:read"
	CapSchedulesWrite Capability = "schedules:write"
	CapPurchasesRead  Capability = "purchases:read"
	CapPurchasesWrite Capability = "purchases:write"
)

// memberBase is the capability set every active member holds.
var memberBase = []Capability{
	CapOrgRead,
	CapMembersRead,
	CapCoursesRead,
	CapStudentsRead,
	CapSchedulesRead,
}

// managerExtra extends MEMBER for day-to-day record management.
var managerExtra = []Capability{
	CapInvitesCreate,
	CapInvitesRead,
	CapCoursesWrite,
	CapStudentsWrite,
	CapSchedulesWrite,
}

// adminExtra extends MANAGER with member and organization administration.
var adminExtra = []Capability{
	CapOrgUpdate,
	CapMembersUpdateRoles,
	CapMembersRemove,
	CapInvitesRevoke,
	CapAuditRead,
	CapPurchasesRead,
	CapPurchasesWrite,
}

// ownerExtra extends ADMIN with the operations reserved for the organization owner.
var ownerExtra = []Capability{
	CapOrgDelete,
}

// accountantExtra and officeStaffExtra extend MEMBER for the specialist roles.
var accountantExtra = []Capability{
	CapPurchasesRead,
	CapPurchasesWrite,
}

var officeStaffExtra = []Capability{
	CapSchedulesWrite,
	CapStudentsWrite,
}

// capabilityTable maps each role to its full capability set. Built once at init so
// request-time checks are a map lookup. OWNER is a superset of ADMIN, which is a
// superset of MANAGER, which is a superset of MEMBER, by construction.
var capabilityTable = buildCapabilityTable()

func buildCapabilityTable() map[models.Role]map[Capability]bool {
	set := func(groups ...[]Capability) map[Capability]bool {
		caps := make(map[Capability]bool)
		for _, group := range groups {
			for _, c := range group {
				caps[c] = true
			}
		}
		return caps
	}

	return map[models.Role]map[Capability]bool{
		models.RoleMember:      set(memberBase),
		models.RoleManager:     set(memberBase, managerExtra),
		models.RoleAdmin:       set(memberBase, managerExtra, adminExtra),
		models.RoleOwner:       set(memberBase, managerExtra, adminExtra, ownerExtra),
		models.RoleAccountant:  set(memberBase, accountantExtra),
		models.RoleOfficeStaff: set(memberBase, officeStaffExtra),
	}
}

// RoleHasCapability reports whether the role grants the capability. Unknown roles and
// unknown capabilities deny: the table fails closed.
func RoleHasCapability(role models.Role, capability Capability) bool {
	caps, ok := capabilityTable[role]
	if !ok {
		return false
	}
	return caps[capability]
}

// CapabilitiesForRole returns the capability set granted to a role, for introspection
// endpoints and tests. The returned map is a copy.
func CapabilitiesForRole(role models.Role) map[Capability]bool {
	caps, ok := capabilityTable[role]
	if !ok {
		return map[Capability]bool{}
	}
	out := make(map[Capability]bool, len(caps))
	for c := range caps {
		out[c] = true
	}
	return out
}

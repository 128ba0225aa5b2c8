// Package models - audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected resource, client IP, and arbitrary metadata.
// Role-change batches write their entry in the same transaction as the role updates.
package models

import "time"

// AuditLog represents an audit log entry for tracking actions within an organization
type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         *string                `json:"user_id,omitempty"` // nullable for system actions
	Action         string                 `json:"action"`            // "members.roles_updated", "organization.created"
	ResourceType   *string                `json:"resource_type,omitempty"`
	ResourceID     *string                `json:"resource_id,omitempty"`
	Message        string                 `json:"message"` // human-readable summary
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      *string                `json:"ip_address,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Audit action constants for the membership core.
const (
	AuditActionOrgCreated     = "organization.created"
	AuditActionOrgUpdated     = "organization.updated"
	AuditActionOrgDeleted     = "organization.deleted"
	AuditActionRolesUpdated   = "members.roles_updated"
	AuditActionMemberRemoved  = "members.removed"
	AuditActionInviteCreated  = "invitations.created"
	AuditActionInviteAccepted = "invitations.accepted"
	AuditActionInviteRevoked  = "invitations.revoked"
)

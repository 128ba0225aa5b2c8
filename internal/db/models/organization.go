// Package models - organization.go defines the Organization model representing a tenant
// on the platform. Every other record in the system belongs to exactly one organization.
package models

import "time"

// OrgType classifies the kind of organization a tenant represents.
type OrgType string

const (
	OrgTypeSchool         OrgType = "SCHOOL"
	OrgTypeTrainingCenter OrgType = "TRAINING_CENTER"
	OrgTypeCorporate      OrgType = "CORPORATE"
	OrgTypeChurch         OrgType = "CHURCH"
	OrgTypeOther          OrgType = "OTHER"
)

// ValidOrgType reports whether t is one of the supported organization types.
func ValidOrgType(t OrgType) bool {
	switch t {
	case OrgTypeSchool, OrgTypeTrainingCenter, OrgTypeCorporate, OrgTypeChurch, OrgTypeOther:
		return true
	}
	return false
}

// Organization represents a tenant. Name is unique (case-insensitive) across the
// deployment; DisplayName is the human-readable form shown in UIs.
type Organization struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	LogoURL     string     `json:"logo_url,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Type        OrgType    `json:"type"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OrganizationPatch carries the mutable organization attributes for updates.
// Nil fields are left unchanged.
type OrganizationPatch struct {
	DisplayName *string    `json:"display_name,omitempty"`
	Description *string    `json:"description,omitempty"`
	LogoURL     *string    `json:"logo_url,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Type        *OrgType   `json:"type,omitempty"`
}

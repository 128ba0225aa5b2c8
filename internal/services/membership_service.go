// membership_service.go implements MembershipService, the business logic for
// organization lifecycle and member administration: create-with-owner, updates,
// cascading delete, the all-or-nothing bulk role change, and soft member removal.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/db/repositories"
	"github.com/classdesk/classdesk/internal/tenant"
)

// CreateOrganizationInput carries the attributes for a new organization.
type CreateOrganizationInput struct {
	Name        string
	DisplayName string
	Description string
	LogoURL     string
	StartedAt   *time.Time
	Type        models.OrgType
}

// MembershipService coordinates organization and membership operations.
type MembershipService struct {
	orgRepo        *repositories.OrganizationRepository
	membershipRepo *repositories.MembershipRepository
	auditRepo      *repositories.AuditRepository
}

// NewMembershipService creates a new membership service.
func NewMembershipService(
	orgRepo *repositories.OrganizationRepository,
	membershipRepo *repositories.MembershipRepository,
	auditRepo *repositories.AuditRepository,
) *MembershipService {
	return &MembershipService{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		auditRepo:      auditRepo,
	}
}

// CreateOrganization creates an organization with the caller as its OWNER. The
// organization row and the owner membership commit in one transaction; any
// authenticated user may create an organization.
func (s *MembershipService) CreateOrganization(ctx context.Context, callerID string, in CreateOrganizationInput, ip *string) (*models.Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.New(apperr.KindValidation, "organization name is required")
	}
	if in.Type == "" {
		in.Type = models.OrgTypeOther
	}
	if !models.ValidOrgType(in.Type) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown organization type %q", in.Type)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Name
	}

	org := &models.Organization{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		LogoURL:     in.LogoURL,
		StartedAt:   in.StartedAt,
		Type:        in.Type,
	}
	if err := s.orgRepo.CreateWithOwner(ctx, org, callerID); err != nil {
		if errors.Is(err, repositories.ErrDuplicateOrganization) {
			return nil, apperr.Newf(apperr.KindConflict, "an organization named %q already exists", in.Name)
		}
		return nil, apperr.Internal(err)
	}

	s.writeMembershipAudit(ctx, &models.AuditLog{
		OrganizationID: org.ID,
		UserID:         &callerID,
		Action:         models.AuditActionOrgCreated,
		ResourceType:   strPtr("organization"),
		ResourceID:     &org.ID,
		Message:        fmt.Sprintf("created organization %s", org.Name),
		IPAddress:      ip,
	})

	return org, nil
}

// GetOrganization returns the caller's organization. Every active member may read it.
func (s *MembershipService) GetOrganization(ctx context.Context, tc *tenant.Context) (*models.Organization, error) {
	if err := tc.Require(auth.CapOrgRead); err != nil {
		return nil, err
	}

	org, err := s.orgRepo.GetByID(ctx, tc.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if org == nil {
		return nil, apperr.New(apperr.KindNotFound, "organization not found")
	}
	return org, nil
}

// UpdateOrganization applies a partial update to the caller's organization.
func (s *MembershipService) UpdateOrganization(ctx context.Context, tc *tenant.Context, patch *models.OrganizationPatch, ip *string) (*models.Organization, error) {
	if err := tc.Require(auth.CapOrgUpdate); err != nil {
		return nil, err
	}

	if patch.Type != nil && !models.ValidOrgType(*patch.Type) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown organization type %q", *patch.Type)
	}

	org, err := s.orgRepo.Update(ctx, tc.OrganizationID, patch)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if org == nil {
		return nil, apperr.New(apperr.KindNotFound, "organization not found")
	}

	s.writeMembershipAudit(ctx, &models.AuditLog{
		OrganizationID: tc.OrganizationID,
		UserID:         &tc.CallerID,
		Action:         models.AuditActionOrgUpdated,
		ResourceType:   strPtr("organization"),
		ResourceID:     &tc.OrganizationID,
		Message:        "updated organization settings",
		IPAddress:      ip,
	})

	return org, nil
}

// DeleteOrganization removes the organization and, through the store's cascade,
// every membership and invitation under it. This is the only path that
// hard-deletes memberships.
func (s *MembershipService) DeleteOrganization(ctx context.Context, tc *tenant.Context, ip *string) error {
	if err := tc.Require(auth.CapOrgDelete); err != nil {
		return err
	}

	if err := s.orgRepo.Delete(ctx, tc.OrganizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "organization not found")
		}
		return apperr.Internal(err)
	}

	// No audit row: audit entries cascade away with the organization, so the
	// deletion is recorded in the application log instead.
	slog.Info("organization deleted",
		"organization_id", tc.OrganizationID, "deleted_by", tc.CallerID)
	return nil
}

// BulkUpdateRoles applies a batch of role changes atomically. Every target must be
// an active member and every role must be valid before any row changes; the store
// writes one audit entry summarizing the whole batch in the same transaction.
func (s *MembershipService) BulkUpdateRoles(ctx context.Context, tc *tenant.Context, updates map[string]models.Role, ip *string) error {
	if err := tc.Require(auth.CapMembersUpdateRoles); err != nil {
		return err
	}

	if len(updates) == 0 {
		return apperr.New(apperr.KindValidation, "no role updates provided")
	}
	for userID, role := range updates {
		if userID == "" {
			return apperr.New(apperr.KindValidation, "user id is required for every update")
		}
		if !models.ValidRole(role) {
			return apperr.Newf(apperr.KindValidation, "unknown role %q for user %s", role, userID)
		}
	}

	err := s.membershipRepo.BulkUpdateRoles(ctx, tc.OrganizationID, updates, tc.CallerID, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMemberNotFound):
		return apperr.Wrap(apperr.KindNotFound, "one or more target users are not active members", err)
	case errors.Is(err, repositories.ErrLastOwner):
		return apperr.New(apperr.KindValidation, "the batch would leave the organization without an owner")
	default:
		return apperr.Internal(err)
	}
}

// RemoveMember soft-removes a member: the row stays for history but the user
// resolves as a non-member from the next request on. Removing an already-removed
// member succeeds without effect. An owner cannot remove themselves; ownership is
// handed over first.
func (s *MembershipService) RemoveMember(ctx context.Context, tc *tenant.Context, targetUserID string, ip *string) error {
	if err := tc.Require(auth.CapMembersRemove); err != nil {
		return err
	}

	if targetUserID == "" {
		return apperr.New(apperr.KindValidation, "target user id is required")
	}
	if targetUserID == tc.CallerID && tc.Role == models.RoleOwner {
		return apperr.New(apperr.KindValidation,
			"an owner cannot remove themselves; transfer ownership first")
	}

	removed, err := s.membershipRepo.SoftRemove(ctx, tc.OrganizationID, targetUserID)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrMemberNotFound):
		return apperr.New(apperr.KindNotFound, "member not found")
	case errors.Is(err, repositories.ErrLastOwner):
		return apperr.New(apperr.KindValidation, "the organization's last owner cannot be removed")
	default:
		return apperr.Internal(err)
	}
	if !removed {
		// Already removed: nothing changed, so no audit entry.
		return nil
	}

	s.writeMembershipAudit(ctx, &models.AuditLog{
		OrganizationID: tc.OrganizationID,
		UserID:         &tc.CallerID,
		Action:         models.AuditActionMemberRemoved,
		ResourceType:   strPtr("membership"),
		ResourceID:     &targetUserID,
		Message:        fmt.Sprintf("removed member %s", targetUserID),
		IPAddress:      ip,
	})

	return nil
}

// ListMembers returns the organization's members with user details attached.
func (s *MembershipService) ListMembers(ctx context.Context, tc *tenant.Context) ([]*models.MembershipWithUser, error) {
	if err := tc.Require(auth.CapMembersRead); err != nil {
		return nil, err
	}

	members, err := s.membershipRepo.ListByOrganization(ctx, tc.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return members, nil
}

// ListUserOrganizations returns the organizations where the caller is an active
// member, for the organization switcher. No tenant context: the caller's identity
// is the scope.
func (s *MembershipService) ListUserOrganizations(ctx context.Context, callerID string) ([]*models.UserOrganization, error) {
	if callerID == "" {
		return nil, apperr.New(apperr.KindValidation, "caller is required")
	}

	orgs, err := s.orgRepo.ListForUser(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return orgs, nil
}

// writeMembershipAudit records an audit entry best effort; a failed write is logged
// and never fails the operation it describes.
func (s *MembershipService) writeMembershipAudit(ctx context.Context, entry *models.AuditLog) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			"action", entry.Action, "organization_id", entry.OrganizationID, "error", err)
	}
}

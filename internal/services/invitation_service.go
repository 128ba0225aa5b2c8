// Package services implements higher-level business logic that coordinates across
// multiple repositories and external systems. The invitation service, for example,
// orchestrates token generation, the idempotent-create rules, the accept state
// machine, audit writes, and best-effort email delivery — a multi-step operation
// that spans several domain boundaries.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/db/repositories"
	"github.com/classdesk/classdesk/internal/notify"
	"github.com/classdesk/classdesk/internal/safego"
	"github.com/classdesk/classdesk/internal/tenant"
)

// DefaultInvitationTTL is how long an invitation stays acceptable when the
// configuration does not override it.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// notifySendTimeout bounds the detached email-delivery goroutine.
const notifySendTimeout = 30 * time.Second

// InvitationService coordinates invitation lifecycle operations.
type InvitationService struct {
	orgRepo        *repositories.OrganizationRepository
	membershipRepo *repositories.MembershipRepository
	invitationRepo *repositories.InvitationRepository
	userRepo       *repositories.UserRepository
	auditRepo      *repositories.AuditRepository
	sender         notify.Sender
	ttl            time.Duration
	acceptBaseURL  string
}

// NewInvitationService creates a new invitation service. A zero ttl means
// DefaultInvitationTTL.
func NewInvitationService(
	orgRepo *repositories.OrganizationRepository,
	membershipRepo *repositories.MembershipRepository,
	invitationRepo *repositories.InvitationRepository,
	userRepo *repositories.UserRepository,
	auditRepo *repositories.AuditRepository,
	sender notify.Sender,
	ttl time.Duration,
	acceptBaseURL string,
) *InvitationService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	if sender == nil {
		sender = notify.NopSender{}
	}
	return &InvitationService{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		auditRepo:      auditRepo,
		sender:         sender,
		ttl:            ttl,
		acceptBaseURL:  acceptBaseURL,
	}
}

// Create issues an invitation for email to join the caller's organization.
// Create is idempotent per (organization, email): an existing unexpired invitation
// is returned unchanged, while an expired one is deleted and replaced with a fresh
// token and expiry. The plaintext token leaves the process only inside the
// invitation email.
func (s *InvitationService) Create(ctx context.Context, tc *tenant.Context, email string, role models.Role, ip *string) (*models.Invitation, error) {
	if err := tc.Require(auth.CapInvitesCreate); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.New(apperr.KindValidation, "a valid email address is required")
	}
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown role %q", role)
	}
	if role == models.RoleOwner {
		return nil, apperr.New(apperr.KindValidation, "the OWNER role cannot be granted by invitation")
	}

	org, err := s.orgRepo.GetByID(ctx, tc.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if org == nil {
		return nil, apperr.New(apperr.KindNotFound, "organization not found")
	}

	// An existing active member cannot be invited again.
	if user, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, apperr.Internal(err)
	} else if user != nil {
		m, err := s.membershipRepo.Get(ctx, tc.OrganizationID, user.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if m != nil && m.Status == models.MembershipActive {
			return nil, apperr.New(apperr.KindConflict, "user is already a member of this organization")
		}
	}

	now := time.Now()
	existing, err := s.invitationRepo.GetPendingByEmail(ctx, tc.OrganizationID, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		if existing.Live(now) {
			return existing, nil
		}
		// Expired: replace rather than resurrect, so the old token stays dead.
		if err := s.invitationRepo.Delete(ctx, existing.ID); err != nil {
			return nil, apperr.Internal(err)
		}
	}

	token, hash, prefix, err := auth.GenerateInvitationToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	inv := &models.Invitation{
		OrganizationID: tc.OrganizationID,
		Email:          email,
		Role:           role,
		TokenPrefix:    prefix,
		TokenHash:      hash,
		InvitedBy:      tc.CallerID,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		if errors.Is(err, repositories.ErrDuplicateInvitation) {
			// Lost a race with a concurrent create for the same pair; the winner's
			// invitation is the one that counts.
			return nil, apperr.New(apperr.KindConflict, "an invitation for this email already exists")
		}
		return nil, apperr.Internal(err)
	}

	s.writeAudit(ctx, &models.AuditLog{
		OrganizationID: tc.OrganizationID,
		UserID:         &tc.CallerID,
		Action:         models.AuditActionInviteCreated,
		ResourceType:   strPtr("invitation"),
		ResourceID:     &inv.ID,
		Message:        fmt.Sprintf("invited %s as %s", inv.Email, inv.Role),
		IPAddress:      ip,
	})

	s.sendInvitationEmail(ctx, inv, org, token)

	return inv, nil
}

// sendInvitationEmail delivers the invitation email on a detached goroutine.
// Delivery is best effort: the invitation row already committed and a mail
// failure must not surface to the inviter.
func (s *InvitationService) sendInvitationEmail(ctx context.Context, inv *models.Invitation, org *models.Organization, token string) {
	inviterName := "A colleague"
	if inviter, err := s.userRepo.GetByID(ctx, inv.InvitedBy); err == nil && inviter != nil {
		inviterName = inviter.Name
	}

	email := notify.InvitationEmail{
		ToEmail:          inv.Email,
		OrganizationName: org.DisplayName,
		InviterName:      inviterName,
		Role:             string(inv.Role),
		Token:            token,
		AcceptBaseURL:    s.acceptBaseURL,
		ExpiresAt:        inv.ExpiresAt,
	}

	safego.Go(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notifySendTimeout)
		defer cancel()
		if err := s.sender.SendInvitation(sendCtx, email); err != nil {
			slog.Error("failed to send invitation email",
				"invitation_id", inv.ID, "to", inv.Email, "error", err)
		}
	})
}

// Accept redeems an invitation token for the calling user and returns the
// organization joined. The checks run in a fixed order so callers get the most
// specific failure: unknown token, then expiry, then double accept, then the
// caller's identity, then the email binding. The final flip and the membership
// write share one transaction in the store.
func (s *InvitationService) Accept(ctx context.Context, callerID, rawToken string, ip *string) (string, error) {
	inv, err := s.findByToken(ctx, rawToken)
	if err != nil {
		return "", err
	}
	if inv == nil {
		return "", apperr.New(apperr.KindNotFound, "invitation not found")
	}

	now := time.Now()
	if inv.Expired(now) {
		return "", apperr.New(apperr.KindExpired, "invitation has expired")
	}
	if inv.Accepted {
		return "", apperr.New(apperr.KindAlreadyAccepted, "invitation has already been accepted")
	}

	user, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if user == nil {
		return "", apperr.New(apperr.KindNotFound, "user not found")
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return "", apperr.New(apperr.KindEmailMismatch,
			"invitation was issued for a different email address")
	}

	if err := s.invitationRepo.Accept(ctx, inv.ID, callerID, inv.Role); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyAccepted):
			return "", apperr.New(apperr.KindAlreadyAccepted, "invitation has already been accepted")
		case errors.Is(err, repositories.ErrAlreadyMember):
			return "", apperr.New(apperr.KindConflict, "user is already a member of this organization")
		default:
			return "", apperr.Internal(err)
		}
	}

	s.writeAudit(ctx, &models.AuditLog{
		OrganizationID: inv.OrganizationID,
		UserID:         &callerID,
		Action:         models.AuditActionInviteAccepted,
		ResourceType:   strPtr("invitation"),
		ResourceID:     &inv.ID,
		Message:        fmt.Sprintf("%s accepted invitation as %s", user.Email, inv.Role),
		IPAddress:      ip,
	})

	return inv.OrganizationID, nil
}

// GetByToken resolves a token to its invitation details for the public
// view-invite page. Unknown and expired tokens produce the same not-found answer
// so the endpoint cannot be used to probe invitation state. The accepted flag is
// deliberately not checked here; the view page renders equally either way and
// Accept is where the flag is enforced.
func (s *InvitationService) GetByToken(ctx context.Context, rawToken string) (*models.InvitationView, error) {
	inv, err := s.findByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.Expired(time.Now()) {
		return nil, apperr.New(apperr.KindNotFound, "invitation is invalid or expired")
	}

	org, err := s.orgRepo.GetByID(ctx, inv.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	orgName := ""
	if org != nil {
		orgName = org.DisplayName
	}

	return &models.InvitationView{
		Email:            inv.Email,
		Role:             inv.Role,
		OrganizationName: orgName,
		ExpiresAt:        inv.ExpiresAt,
	}, nil
}

// Revoke deletes a live invitation so its token can no longer be redeemed.
// Accepted invitations are history, not revocable.
func (s *InvitationService) Revoke(ctx context.Context, tc *tenant.Context, invitationID string, ip *string) error {
	if err := tc.Require(auth.CapInvitesRevoke); err != nil {
		return err
	}

	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return apperr.Internal(err)
	}
	if inv == nil || inv.OrganizationID != tc.OrganizationID {
		return apperr.New(apperr.KindNotFound, "invitation not found")
	}
	if inv.Accepted {
		return apperr.New(apperr.KindConflict, "an accepted invitation cannot be revoked")
	}

	if err := s.invitationRepo.Delete(ctx, invitationID); err != nil {
		return apperr.Internal(err)
	}

	s.writeAudit(ctx, &models.AuditLog{
		OrganizationID: tc.OrganizationID,
		UserID:         &tc.CallerID,
		Action:         models.AuditActionInviteRevoked,
		ResourceType:   strPtr("invitation"),
		ResourceID:     &invitationID,
		Message:        fmt.Sprintf("revoked invitation for %s", inv.Email),
		IPAddress:      ip,
	})

	return nil
}

// ListPending returns the organization's unaccepted, unexpired invitations.
func (s *InvitationService) ListPending(ctx context.Context, tc *tenant.Context) ([]*models.Invitation, error) {
	if err := tc.Require(auth.CapInvitesRead); err != nil {
		return nil, err
	}

	invitations, err := s.invitationRepo.ListPendingByOrganization(ctx, tc.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return invitations, nil
}

// findByToken narrows candidates by the stored token prefix and picks the row whose
// hash matches the presented token. Returns (nil, nil) when nothing matches.
func (s *InvitationService) findByToken(ctx context.Context, rawToken string) (*models.Invitation, error) {
	if !auth.LooksLikeInvitationToken(rawToken) {
		return nil, nil
	}

	candidates, err := s.invitationRepo.ListByTokenPrefix(ctx, auth.TokenLookupPrefix(rawToken))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for _, c := range candidates {
		if auth.ValidateInvitationToken(rawToken, c.TokenHash) {
			return c, nil
		}
	}
	return nil, nil
}

// writeAudit records an audit entry, logging rather than failing the operation when
// the write does not stick. Only the bulk role update carries its audit entry inside
// the data transaction; everything else is best effort.
func (s *InvitationService) writeAudit(ctx context.Context, entry *models.AuditLog) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			"action", entry.Action, "organization_id", entry.OrganizationID, "error", err)
	}
}

func strPtr(s string) *string {
	return &s
}

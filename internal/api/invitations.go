// invitations.go implements handlers for the invitation lifecycle: create,
// list, revoke (org-scoped), accept (authenticated) and the public token
// preview used by the accept page before the invitee has signed in.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/middleware"
	"github.com/classdesk/classdesk/internal/services"
	"github.com/classdesk/classdesk/internal/telemetry"
)

// InvitationHandlers handles invitation endpoints
type InvitationHandlers struct {
	invitations *services.InvitationService
}

// NewInvitationHandlers creates a new InvitationHandlers instance
func NewInvitationHandlers(invitations *services.InvitationService) *InvitationHandlers {
	return &InvitationHandlers{invitations: invitations}
}

type createInvitationRequest struct {
	Email string      `json:"email" binding:"required"`
	Role  models.Role `json:"role"`
}

// @Summary      Create invitation
// @Description  Invite an email address into the organization with a given role. Omitting the role invites as MEMBER. The invitation token is delivered by email and never returned in full by any read endpoint.
// @Tags         Invitations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      201  {object}  models.Invitation
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Already a member or already invited"
// @Router       /api/v1/orgs/{org_id}/invitations [post]
func (h *InvitationHandlers) CreateInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		inv, err := h.invitations.Create(c.Request.Context(), middleware.TenantContext(c), req.Email, req.Role, middleware.ClientIPPtr(c))
		if err != nil {
			respondError(c, err)
			return
		}

		telemetry.InvitationsCreatedTotal.WithLabelValues(string(inv.Role)).Inc()
		c.JSON(http.StatusCreated, inv)
	}
}

// @Summary      List pending invitations
// @Description  List the organization's live (unaccepted, unexpired) invitations. Token material is omitted.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  map[string]interface{}  "invitations: []models.Invitation"
// @Router       /api/v1/orgs/{org_id}/invitations [get]
func (h *InvitationHandlers) ListPendingInvitationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invs, err := h.invitations.ListPending(c.Request.Context(), middleware.TenantContext(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invitations": invs})
	}
}

// @Summary      Revoke invitation
// @Description  Revoke a pending invitation so its token can no longer be accepted.
// @Tags         Invitations
// @Security     Bearer
// @Param        org_id  path  string  true  "Organization ID"
// @Param        id      path  string  true  "Invitation ID"
// @Success      204  "Revoked"
// @Failure      404  {object}  map[string]interface{}  "Invitation not found in this organization"
// @Failure      409  {object}  map[string]interface{}  "Invitation already accepted"
// @Router       /api/v1/orgs/{org_id}/invitations/{id} [delete]
func (h *InvitationHandlers) RevokeInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.invitations.Revoke(c.Request.Context(), middleware.TenantContext(c), c.Param("id"), middleware.ClientIPPtr(c)); err != nil {
			respondError(c, err)
			return
		}

		telemetry.InvitationsRevokedTotal.Inc()
		c.Status(http.StatusNoContent)
	}
}

type acceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

// @Summary      Accept invitation
// @Description  Redeem an invitation token. The caller's account email must match the invited address exactly. Accepting an invitation to an organization the caller is already an active member of returns a conflict; a previously removed member is reactivated with the invited role.
// @Tags         Invitations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organization_id of the joined organization"
// @Failure      403  {object}  map[string]interface{}  "Email mismatch"
// @Failure      404  {object}  map[string]interface{}  "Unknown token"
// @Failure      409  {object}  map[string]interface{}  "Already accepted"
// @Failure      410  {object}  map[string]interface{}  "Invitation expired"
// @Router       /api/v1/invitations/accept [post]
func (h *InvitationHandlers) AcceptInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req acceptInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		orgID, err := h.invitations.Accept(c.Request.Context(), middleware.CallerID(c), req.Token, middleware.ClientIPPtr(c))
		if err != nil {
			telemetry.InvitationAcceptFailuresTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
			respondError(c, err)
			return
		}

		telemetry.InvitationsAcceptedTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"organization_id": orgID})
	}
}

// @Summary      Preview invitation
// @Description  Look up an invitation by its raw token without authenticating. Returns just enough for the accept page to render: invited email, role and organization name. Unknown, expired and revoked tokens are indistinguishable (all 404) so the endpoint cannot be used as an oracle.
// @Tags         Invitations
// @Produce      json
// @Param        token  path  string  true  "Raw invitation token"
// @Success      200  {object}  models.InvitationView
// @Failure      404  {object}  map[string]interface{}  "Invitation not found"
// @Router       /v1/invitations/{token} [get]
func (h *InvitationHandlers) PreviewInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.invitations.GetByToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			// Collapse every failure to a plain not-found so callers cannot
			// probe token state.
			c.JSON(http.StatusNotFound, gin.H{"error": "Invitation not found"})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

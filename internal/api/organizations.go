// organizations.go implements handlers for organization CRUD and membership
// management. All organization-scoped routes run behind TenantMiddleware, so
// handlers read the resolved tenant context instead of re-checking membership.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/middleware"
	"github.com/classdesk/classdesk/internal/services"
	"github.com/classdesk/classdesk/internal/telemetry"
)

// OrganizationHandlers handles organization and membership endpoints
type OrganizationHandlers struct {
	memberships *services.MembershipService
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(memberships *services.MembershipService) *OrganizationHandlers {
	return &OrganizationHandlers{memberships: memberships}
}

// respondError translates a service error into an HTTP response. The error
// message is safe to expose: service errors carry no internal detail beyond
// their classified kind.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

type createOrganizationRequest struct {
	Name        string         `json:"name" binding:"required"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	LogoURL     string         `json:"logo_url"`
	StartedAt   *time.Time     `json:"started_at"`
	Type        models.OrgType `json:"type"`
}

// @Summary      Create organization
// @Description  Create a new organization; the caller becomes its OWNER.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Organization
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Organization name already taken"
// @Router       /api/v1/orgs [post]
func (h *OrganizationHandlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		org, err := h.memberships.CreateOrganization(c.Request.Context(), middleware.CallerID(c), services.CreateOrganizationInput{
			Name:        req.Name,
			DisplayName: req.DisplayName,
			Description: req.Description,
			LogoURL:     req.LogoURL,
			StartedAt:   req.StartedAt,
			Type:        req.Type,
		}, middleware.ClientIPPtr(c))
		if err != nil {
			respondError(c, err)
			return
		}

		telemetry.MembershipsCreatedTotal.WithLabelValues(string(models.RoleOwner)).Inc()
		c.JSON(http.StatusCreated, org)
	}
}

// @Summary      List my organizations
// @Description  List the organizations the caller is an active member of.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organizations: []models.UserOrganization"
// @Router       /api/v1/orgs [get]
func (h *OrganizationHandlers) ListMyOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgs, err := h.memberships.ListUserOrganizations(c.Request.Context(), middleware.CallerID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
	}
}

// @Summary      Get organization
// @Description  Retrieve the organization named by the path. Caller must be an active member.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  models.Organization
// @Failure      403  {object}  map[string]interface{}  "Not a member"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/v1/orgs/{org_id} [get]
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := h.memberships.GetOrganization(c.Request.Context(), middleware.TenantContext(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, org)
	}
}

// @Summary      Update organization
// @Description  Patch mutable organization attributes. Requires the org:update capability (ADMIN or OWNER).
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  models.Organization
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permission"
// @Router       /api/v1/orgs/{org_id} [patch]
func (h *OrganizationHandlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch models.OrganizationPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		org, err := h.memberships.UpdateOrganization(c.Request.Context(), middleware.TenantContext(c), &patch, middleware.ClientIPPtr(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, org)
	}
}

// @Summary      Delete organization
// @Description  Permanently delete the organization and everything in it. OWNER only.
// @Tags         Organizations
// @Security     Bearer
// @Param        org_id  path  string  true  "Organization ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permission"
// @Router       /api/v1/orgs/{org_id} [delete]
func (h *OrganizationHandlers) DeleteOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.memberships.DeleteOrganization(c.Request.Context(), middleware.TenantContext(c), middleware.ClientIPPtr(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary      List members
// @Description  List the organization's active members with user details.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  map[string]interface{}  "members: []models.MembershipWithUser"
// @Router       /api/v1/orgs/{org_id}/members [get]
func (h *OrganizationHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.memberships.ListMembers(c.Request.Context(), middleware.TenantContext(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

type bulkRoleUpdateRequest struct {
	Updates map[string]models.Role `json:"updates" binding:"required"`
}

// @Summary      Bulk update member roles
// @Description  Atomically update the roles of several members. Either every update applies or none does; a change that would leave the organization without an OWNER is rejected.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      204  "Roles updated"
// @Failure      400  {object}  map[string]interface{}  "Validation error or last-owner violation"
// @Failure      404  {object}  map[string]interface{}  "A target is not an active member"
// @Router       /api/v1/orgs/{org_id}/members/roles [put]
func (h *OrganizationHandlers) BulkUpdateRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkRoleUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		if err := h.memberships.BulkUpdateRoles(c.Request.Context(), middleware.TenantContext(c), req.Updates, middleware.ClientIPPtr(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary      Remove member
// @Description  Soft-remove a member from the organization. The last OWNER cannot be removed, and an OWNER cannot remove themselves.
// @Tags         Members
// @Security     Bearer
// @Param        org_id   path  string  true  "Organization ID"
// @Param        user_id  path  string  true  "Target user ID"
// @Success      204  "Removed (idempotent)"
// @Failure      400  {object}  map[string]interface{}  "Last-owner or self-removal violation"
// @Failure      404  {object}  map[string]interface{}  "Target has no membership row"
// @Router       /api/v1/orgs/{org_id}/members/{user_id} [delete]
func (h *OrganizationHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.memberships.RemoveMember(c.Request.Context(), middleware.TenantContext(c), c.Param("user_id"), middleware.ClientIPPtr(c)); err != nil {
			respondError(c, err)
			return
		}

		telemetry.MembershipsRemovedTotal.Inc()
		c.Status(http.StatusNoContent)
	}
}

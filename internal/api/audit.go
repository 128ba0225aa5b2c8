package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/db/repositories"
	"github.com/classdesk/classdesk/internal/middleware"
)

// AuditHandlers handles audit log endpoints
type AuditHandlers struct {
	auditRepo *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(auditRepo *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{auditRepo: auditRepo}
}

// @Summary      List audit log
// @Description  List the organization's audit entries, newest first. Supports filtering by actor, action and time range.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        org_id    path   string  true   "Organization ID"
// @Param        user_id   query  string  false  "Filter by acting user"
// @Param        action    query  string  false  "Filter by action name"
// @Param        start     query  string  false  "RFC3339 lower bound"
// @Param        end       query  string  false  "RFC3339 upper bound"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Page size (default 50, max 100)"
// @Success      200  {object}  map[string]interface{}  "entries: []models.AuditLog, page, per_page"
// @Router       /api/v1/orgs/{org_id}/audit [get]
func (h *AuditHandlers) ListAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 100
		}

		var filters repositories.AuditFilters
		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("start"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start timestamp, must be RFC3339"})
				return
			}
			filters.StartDate = &ts
		}
		if v := c.Query("end"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end timestamp, must be RFC3339"})
				return
			}
			filters.EndDate = &ts
		}

		tc := middleware.TenantContext(c)
		entries, err := h.auditRepo.ListByOrganization(c.Request.Context(), tc.OrganizationID, filters, perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit log"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entries":  entries,
			"page":     page,
			"per_page": perPage,
		})
	}
}

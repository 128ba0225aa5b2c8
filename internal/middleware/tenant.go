package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/telemetry"
	"github.com/classdesk/classdesk/internal/tenant"
)

// TenantMiddleware resolves the caller's membership in the organization named by
// the :org_id path parameter and stores the resulting tenant context. Requests
// from non-members are rejected with 403 without revealing whether the
// organization exists.
func TenantMiddleware(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("org_id")
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Organization ID is required",
			})
			return
		}

		callerID := CallerID(c)
		if callerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		tc, err := resolver.Resolve(c.Request.Context(), callerID, orgID)
		if err != nil {
			status := apperr.HTTPStatus(err)
			message := err.Error()
			// Internal failures carry store detail that must not reach the client.
			if status == http.StatusInternalServerError {
				message = "Internal server error"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set("tenant", tc)
		c.Set("organization_id", tc.OrganizationID)
		c.Next()
	}
}

// RequireCapability enforces that the resolved tenant context holds the given
// capability. Must run after TenantMiddleware.
func RequireCapability(capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := TenantContext(c)
		if tc == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Tenant context not resolved",
			})
			return
		}

		if err := tc.Require(capability); err != nil {
			telemetry.PermissionDenialsTotal.WithLabelValues(string(capability)).Inc()
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Next()
	}
}

// TenantContext returns the resolved tenant context, or nil when TenantMiddleware
// has not run on this request.
func TenantContext(c *gin.Context) *tenant.Context {
	if v, exists := c.Get("tenant"); exists {
		if tc, ok := v.(*tenant.Context); ok {
			return tc
		}
	}
	return nil
}

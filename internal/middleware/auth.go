// Package middleware provides Gin HTTP middleware for authentication, tenant
// resolution, authorization, rate limiting, security headers, and request logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → Logging → RateLimit → Auth → Tenant → Capability → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the caller identity; tenant resolution turns the identity plus
// the :org_id path parameter into a tenant context; capability checks read from
// that context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/auth/oidc"
	"github.com/classdesk/classdesk/internal/db/repositories"
)

// AuthMiddleware validates authentication (session JWT or OIDC ID token) and puts
// the caller's user record on the request context.
func AuthMiddleware(userRepo *repositories.UserRepository, oidcProvider *oidc.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		// Session JWT is tried first because it is entirely stateless: one
		// cryptographic check against the shared secret, no network round-trip.
		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load user",
				})
				return
			}
			if user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found",
				})
				return
			}

			c.Set("user", user)
			c.Set("user_id", user.ID)
			c.Set("auth_method", "jwt")
			c.Next()
			return
		}

		// Fall back to a raw OIDC ID token when a provider is configured. The
		// verified claims provision the local user record, so a first-time caller
		// exists in the directory before any handler runs.
		if oidcProvider != nil {
			idToken, err := oidcProvider.VerifyIDToken(c.Request.Context(), token)
			if err == nil {
				sub, email, name, err := oidcProvider.ExtractUserInfo(idToken)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
						"error": "ID token is missing required claims",
					})
					return
				}

				user, err := userRepo.UpsertFromClaims(c.Request.Context(), email, name, &sub)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Failed to provision user",
					})
					return
				}

				c.Set("user", user)
				c.Set("user_id", user.ID)
				c.Set("auth_method", "oidc")
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid credentials",
		})
	}
}

// CallerID returns the authenticated user's ID from the context, or "" when the
// request is unauthenticated.
func CallerID(c *gin.Context) string {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// ClientIPPtr returns the request's client IP as a pointer for audit writes.
func ClientIPPtr(c *gin.Context) *string {
	ip := c.ClientIP()
	if ip == "" {
		return nil
	}
	return &ip
}

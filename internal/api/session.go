// session.go implements the OIDC login flow and session endpoints. The server
// never stores passwords: users authenticate against the configured identity
// provider, and the callback mints a short-lived session JWT for API calls.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/auth/oidc"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/db/repositories"
)

const oauthStateCookie = "cdk_oauth_state"

// SessionHandlers handles login, OIDC callback and session introspection
type SessionHandlers struct {
	provider   *oidc.Provider
	userRepo   *repositories.UserRepository
	sessionTTL time.Duration
}

// NewSessionHandlers creates a new SessionHandlers instance. provider may be
// nil when OIDC is disabled, in which case login and callback return 503.
func NewSessionHandlers(provider *oidc.Provider, userRepo *repositories.UserRepository, sessionTTL time.Duration) *SessionHandlers {
	return &SessionHandlers{provider: provider, userRepo: userRepo, sessionTTL: sessionTTL}
}

// @Summary      Start login
// @Description  Redirect the browser to the identity provider's authorization endpoint. A state nonce is set as a cookie and checked on callback.
// @Tags         Session
// @Success      302  "Redirect to identity provider"
// @Failure      503  {object}  map[string]interface{}  "OIDC not configured"
// @Router       /api/v1/auth/login [get]
func (h *SessionHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.provider == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OIDC login is not configured"})
			return
		}

		state := uuid.New().String()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, 600, "/", "", true, true)
		c.Redirect(http.StatusFound, h.provider.AuthURL(state))
	}
}

// @Summary      OIDC callback
// @Description  Exchange the authorization code for tokens, verify the ID token, upsert the user record and return a session JWT.
// @Tags         Session
// @Produce      json
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "State nonce from login"
// @Success      200  {object}  map[string]interface{}  "token, expires_at, user"
// @Failure      400  {object}  map[string]interface{}  "Missing code or state mismatch"
// @Failure      401  {object}  map[string]interface{}  "Code exchange or token verification failed"
// @Router       /api/v1/auth/callback [get]
func (h *SessionHandlers) CallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.provider == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OIDC login is not configured"})
			return
		}

		state := c.Query("state")
		cookieState, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || state != cookieState {
			c.JSON(http.StatusBadRequest, gin.H{"error": "State mismatch"})
			return
		}
		c.SetCookie(oauthStateCookie, "", -1, "/", "", true, true)

		code := c.Query("code")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
			return
		}

		token, err := h.provider.ExchangeCode(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Code exchange failed"})
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Identity provider returned no ID token"})
			return
		}

		idToken, err := h.provider.VerifyIDToken(c.Request.Context(), rawIDToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token verification failed"})
			return
		}

		sub, email, name, err := h.provider.ExtractUserInfo(idToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token is missing required claims"})
			return
		}

		user, err := h.userRepo.UpsertFromClaims(c.Request.Context(), email, name, &sub)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision user"})
			return
		}

		h.issueSession(c, user)
	}
}

// @Summary      Current user
// @Description  Return the authenticated caller's user record.
// @Tags         Session
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  models.User
// @Router       /api/v1/auth/me [get]
func (h *SessionHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.Get("user")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// @Summary      Refresh session
// @Description  Issue a fresh session JWT for the authenticated caller, resetting the expiry window.
// @Tags         Session
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "token, expires_at, user"
// @Router       /api/v1/auth/refresh [post]
func (h *SessionHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get("user")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		user, ok := value.(*models.User)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		h.issueSession(c, user)
	}
}

func (h *SessionHandlers) issueSession(c *gin.Context, user *models.User) {
	jwt, err := auth.GenerateJWT(user.ID, user.Email, h.sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      jwt,
		"expires_at": time.Now().Add(h.sessionTTL).UTC(),
		"user":       user,
	})
}

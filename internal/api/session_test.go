package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/db/models"
	"github.com/classdesk/classdesk/internal/db/repositories"
)

func newSessionHandlers(t *testing.T) *SessionHandlers {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionHandlers(nil, repositories.NewUserRepository(db), time.Hour)
}

func TestLoginHandler_OIDCDisabled(t *testing.T) {
	h := newSessionHandlers(t)
	router := gin.New()
	router.GET("/auth/login", h.LoginHandler())

	w := doRequest(router, "GET", "/auth/login", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestCallbackHandler_OIDCDisabled(t *testing.T) {
	h := newSessionHandlers(t)
	router := gin.New()
	router.GET("/auth/callback", h.CallbackHandler())

	w := doRequest(router, "GET", "/auth/callback?code=abc&state=xyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMeHandler_NotAuthenticated(t *testing.T) {
	h := newSessionHandlers(t)
	router := gin.New()
	router.GET("/auth/me", h.MeHandler())

	w := doRequest(router, "GET", "/auth/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMeHandler_ReturnsUser(t *testing.T) {
	h := newSessionHandlers(t)
	user := &models.User{ID: "user-1", Email: "pat@school.example", Name: "Pat Teacher"}

	router := gin.New()
	router.GET("/auth/me", func(c *gin.Context) {
		c.Set("user", user)
		c.Set("user_id", user.ID)
	}, h.MeHandler())

	w := doRequest(router, "GET", "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got models.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "user-1" || got.Email != "pat@school.example" {
		t.Errorf("unexpected user payload: %+v", got)
	}
}

func TestRefreshHandler_IssuesValidJWT(t *testing.T) {
	h := newSessionHandlers(t)
	user := &models.User{ID: "user-1", Email: "pat@school.example", Name: "Pat Teacher"}

	router := gin.New()
	router.POST("/auth/refresh", func(c *gin.Context) {
		c.Set("user", user)
		c.Set("user_id", user.ID)
	}, h.RefreshHandler())

	w := doRequest(router, "POST", "/auth/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a session token in response")
	}

	claims, err := auth.ValidateJWT(resp.Token)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "pat@school.example" {
		t.Errorf("claims = %+v, want user-1/pat@school.example", claims)
	}

	if remaining := time.Until(resp.ExpiresAt); remaining < 55*time.Minute || remaining > 65*time.Minute {
		t.Errorf("expires_at %v not within the configured 1h session TTL", resp.ExpiresAt)
	}
}

func TestRefreshHandler_NotAuthenticated(t *testing.T) {
	h := newSessionHandlers(t)
	router := gin.New()
	router.POST("/auth/refresh", h.RefreshHandler())

	w := doRequest(router, "POST", "/auth/refresh", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

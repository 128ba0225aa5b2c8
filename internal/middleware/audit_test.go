package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/audit"
)

type recordingShipper struct {
	mu      sync.Mutex
	entries []*audit.LogEntry
}

func (r *recordingShipper) Ship(_ context.Context, entry *audit.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingShipper) Close() error { return nil }

func (r *recordingShipper) shipped() []*audit.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*audit.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// waitForEntries polls until the async shipper has received n entries.
func waitForEntries(t *testing.T, shipper *recordingShipper, n int) []*audit.LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := shipper.shipped(); len(entries) >= n {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d shipped entries, have %d", n, len(shipper.shipped()))
	return nil
}

func newAuditedRouter(shipper audit.Shipper, userID string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
			c.Set("auth_method", "jwt")
		}
		c.Set("organization_id", "org-1")
	})
	router.Use(RequestAuditMiddleware(shipper))
	router.POST("/orgs/:org_id/invitations", func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.GET("/orgs/:org_id/members", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRequestAuditMiddleware_ShipsAuthenticatedWrite(t *testing.T) {
	shipper := &recordingShipper{}
	router := newAuditedRouter(shipper, "user-1")

	req := httptest.NewRequest("POST", "/orgs/org-1/invitations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	entries := waitForEntries(t, shipper, 1)
	entry := entries[0]
	if entry.Action != "POST /orgs/:org_id/invitations" {
		t.Errorf("Action = %q, want route template", entry.Action)
	}
	if entry.UserID != "user-1" || entry.OrganizationID != "org-1" {
		t.Errorf("identity fields = %q/%q, want user-1/org-1", entry.UserID, entry.OrganizationID)
	}
	if entry.AuthMethod != "jwt" {
		t.Errorf("AuthMethod = %q, want jwt", entry.AuthMethod)
	}
	if entry.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", entry.StatusCode)
	}
}

func TestRequestAuditMiddleware_SkipsReads(t *testing.T) {
	shipper := &recordingShipper{}
	router := newAuditedRouter(shipper, "user-1")

	req := httptest.NewRequest("GET", "/orgs/org-1/members", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	time.Sleep(50 * time.Millisecond)
	if entries := shipper.shipped(); len(entries) != 0 {
		t.Errorf("shipped %d entries for a GET, want 0", len(entries))
	}
}

func TestRequestAuditMiddleware_SkipsUnauthenticated(t *testing.T) {
	shipper := &recordingShipper{}
	router := newAuditedRouter(shipper, "")

	req := httptest.NewRequest("POST", "/orgs/org-1/invitations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	time.Sleep(50 * time.Millisecond)
	if entries := shipper.shipped(); len(entries) != 0 {
		t.Errorf("shipped %d entries for an unauthenticated write, want 0", len(entries))
	}
}

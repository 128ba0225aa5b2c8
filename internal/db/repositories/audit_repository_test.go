package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/classdesk/classdesk/internal/db/models"
)

var auditCols = []string{"id", "organization_id", "user_id", "action", "resource_type", "resource_id", "message", "metadata", "ip_address", "created_at"}

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

func TestAuditCreate_AssignsIDAndTimestamp(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	actor := "user-1"
	entry := &models.AuditLog{
		OrganizationID: "org-1",
		UserID:         &actor,
		Action:         models.AuditActionMemberRemoved,
		Message:        "user-2 removed",
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected generated ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestListByOrganization_WithFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	actor := "user-1"
	action := models.AuditActionRolesUpdated
	mock.ExpectQuery("SELECT.*FROM audit_logs.*WHERE organization_id.*user_id.*action.*ORDER BY created_at DESC").
		WithArgs("org-1", actor, action, 20, 0).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("log-1", "org-1", actor, action, "membership", nil, "user-2 => ADMIN", []byte(`{"count":1}`), nil, time.Now()))

	entries, err := repo.ListByOrganization(context.Background(), "org-1", AuditFilters{UserID: &actor, Action: &action}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Message != "user-2 => ADMIN" {
		t.Errorf("Message = %q", entries[0].Message)
	}
	if entries[0].Metadata["count"] != float64(1) {
		t.Errorf("Metadata = %v, want count=1", entries[0].Metadata)
	}
}

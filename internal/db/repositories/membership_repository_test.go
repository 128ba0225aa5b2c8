package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk/internal/db/models"
)

var membershipCols = []string{"organization_id", "user_id", "role", "status", "removed_at", "created_at", "updated_at"}

func sampleMembershipRow(role, status string) *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).
		AddRow("org-1", "user-1", role, status, nil, time.Now(), time.Now())
}

func newMembershipRepo(t *testing.T) (*MembershipRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestMembershipGet_Found(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships WHERE organization_id").
		WithArgs("org-1", "user-1").
		WillReturnRows(sampleMembershipRow("OWNER", "ACTIVE"))

	m, err := repo.Get(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected membership, got nil")
	}
	if m.Role != models.RoleOwner || m.Status != models.MembershipActive {
		t.Errorf("got %s/%s, want OWNER/ACTIVE", m.Role, m.Status)
	}
}

func TestMembershipGet_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	m, err := repo.Get(context.Background(), "org-1", "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected nil, got non-nil")
	}
}

// TestMembershipGet_RemovedRowIsReturned covers the soft-removal contract: the row
// survives with status REMOVED and it is the resolver's job to deny access.
func TestMembershipGet_RemovedRowIsReturned(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships WHERE organization_id").
		WillReturnRows(sampleMembershipRow("MEMBER", "REMOVED"))

	m, err := repo.Get(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected removed membership row, got nil")
	}
	if m.Status != models.MembershipRemoved {
		t.Errorf("Status = %s, want REMOVED", m.Status)
	}
}

// ---------------------------------------------------------------------------
// BulkUpdateRoles
// ---------------------------------------------------------------------------

func statusRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status"}).AddRow(status)
}

func TestBulkUpdateRoles_AllOrNothingCommit(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	// Targets are locked in sorted order before any write.
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-2").
		WillReturnRows(statusRow("ACTIVE"))
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-3").
		WillReturnRows(statusRow("ACTIVE"))
	mock.ExpectExec("UPDATE memberships SET role").
		WithArgs("org-1", "user-2", models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE memberships SET role").
		WithArgs("org-1", "user-3", models.RoleManager).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT.*role = 'OWNER'").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updates := map[string]models.Role{"user-2": models.RoleAdmin, "user-3": models.RoleManager}
	if err := repo.BulkUpdateRoles(context.Background(), "org-1", updates, "user-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBulkUpdateRoles_MissingTargetAbortsBeforeAnyWrite(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-2").
		WillReturnRows(statusRow("ACTIVE"))
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-3").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	updates := map[string]models.Role{"user-2": models.RoleAdmin, "user-3": models.RoleManager}
	err := repo.BulkUpdateRoles(context.Background(), "org-1", updates, "user-1", nil)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("error = %v, want ErrMemberNotFound", err)
	}
	// Rollback means user-2's role was never written.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBulkUpdateRoles_RemovedTargetRejected(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-2").
		WillReturnRows(statusRow("REMOVED"))
	mock.ExpectRollback()

	err := repo.BulkUpdateRoles(context.Background(), "org-1", map[string]models.Role{"user-2": models.RoleAdmin}, "user-1", nil)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("error = %v, want ErrMemberNotFound", err)
	}
}

func TestBulkUpdateRoles_DemotingEveryOwnerRejected(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-1").
		WillReturnRows(statusRow("ACTIVE"))
	mock.ExpectExec("UPDATE memberships SET role").
		WithArgs("org-1", "user-1", models.RoleMember).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT.*role = 'OWNER'").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := repo.BulkUpdateRoles(context.Background(), "org-1", map[string]models.Role{"user-1": models.RoleMember}, "user-1", nil)
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("error = %v, want ErrLastOwner", err)
	}
}

func TestBulkUpdateRoles_EmptyBatchIsNoOp(t *testing.T) {
	repo, _ := newMembershipRepo(t)
	if err := repo.BulkUpdateRoles(context.Background(), "org-1", nil, "user-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// SoftRemove
// ---------------------------------------------------------------------------

func roleStatusRow(role, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"role", "status"}).AddRow(role, status)
}

func TestSoftRemove_MarksRemoved(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role, status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-2").
		WillReturnRows(roleStatusRow("MEMBER", "ACTIVE"))
	mock.ExpectExec("UPDATE memberships SET status = 'REMOVED'").
		WithArgs("org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.SoftRemove(context.Background(), "org-1", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed {
		t.Errorf("removed = false, want true for an active member")
	}
}

func TestSoftRemove_AlreadyRemovedIsNoOp(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role, status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-2").
		WillReturnRows(roleStatusRow("MEMBER", "REMOVED"))
	mock.ExpectCommit()

	removed, err := repo.SoftRemove(context.Background(), "org-1", "user-2")
	if err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
	if removed {
		t.Errorf("removed = true, want false when the member was already removed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSoftRemove_TargetNotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role, status FROM memberships.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"role", "status"}))
	mock.ExpectRollback()

	_, err := repo.SoftRemove(context.Background(), "org-1", "stranger")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("error = %v, want ErrMemberNotFound", err)
	}
}

func TestSoftRemove_LastOwnerRejected(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role, status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-1").
		WillReturnRows(roleStatusRow("OWNER", "ACTIVE"))
	mock.ExpectQuery("SELECT COUNT.*role = 'OWNER'.*user_id <>").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := repo.SoftRemove(context.Background(), "org-1", "user-1")
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("error = %v, want ErrLastOwner", err)
	}
}

func TestSoftRemove_OwnerWithCoOwnerSucceeds(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role, status FROM memberships.*FOR UPDATE").
		WithArgs("org-1", "user-1").
		WillReturnRows(roleStatusRow("OWNER", "ACTIVE"))
	mock.ExpectQuery("SELECT COUNT.*role = 'OWNER'.*user_id <>").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("UPDATE memberships SET status = 'REMOVED'").
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.SoftRemove(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed {
		t.Errorf("removed = false, want true")
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/classdesk/classdesk/internal/db/models"
)

func orgRows(id, name string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "display_name", "description", "logo_url",
		"started_at", "org_type", "created_by", "created_at", "updated_at",
	}).AddRow(id, name, name, "", "", nil, "SCHOOL", "user-1", now, now)
}

func TestCreateOrganizationHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.POST("/orgs", withUser("user-1"), env.orgs.CreateOrganizationHandler())

	w := doRequest(router, "POST", "/orgs", `{"display_name": "no name field"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateOrganizationHandler_Success(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.POST("/orgs", withUser("user-1"), env.orgs.CreateOrganizationHandler())

	now := time.Now()
	env.mock.ExpectBegin()
	env.mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("Lakeside School", "Lakeside School", "", "", nil, models.OrgTypeSchool, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("org-1", now, now))
	env.mock.ExpectExec("INSERT INTO memberships").
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()
	env.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doRequest(router, "POST", "/orgs", `{"name": "Lakeside School", "type": "SCHOOL"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var org models.Organization
	if err := json.Unmarshal(w.Body.Bytes(), &org); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if org.ID != "org-1" {
		t.Errorf("org ID = %q, want org-1", org.ID)
	}
	if org.CreatedBy != "user-1" {
		t.Errorf("created_by = %q, want user-1", org.CreatedBy)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateOrganizationHandler_DuplicateName(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.POST("/orgs", withUser("user-1"), env.orgs.CreateOrganizationHandler())

	env.mock.ExpectBegin()
	env.mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505"})
	env.mock.ExpectRollback()

	w := doRequest(router, "POST", "/orgs", `{"name": "Lakeside School"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409, body: %s", w.Code, w.Body.String())
	}
}

func TestGetOrganizationHandler_Success(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.GET("/orgs/:org_id", withTenant("org-1", "user-1", models.RoleMember), env.orgs.GetOrganizationHandler())

	env.mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id").
		WithArgs("org-1").
		WillReturnRows(orgRows("org-1", "Lakeside School"))

	w := doRequest(router, "GET", "/orgs/org-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestGetOrganizationHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.GET("/orgs/:org_id", withTenant("org-gone", "user-1", models.RoleMember), env.orgs.GetOrganizationHandler())

	env.mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id").
		WithArgs("org-gone").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "display_name", "description", "logo_url",
			"started_at", "org_type", "created_by", "created_at", "updated_at",
		}))

	w := doRequest(router, "GET", "/orgs/org-gone", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body: %s", w.Code, w.Body.String())
	}
}

func TestUpdateOrganizationHandler_InsufficientRole(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.PATCH("/orgs/:org_id", withTenant("org-1", "user-1", models.RoleMember), env.orgs.UpdateOrganizationHandler())

	w := doRequest(router, "PATCH", "/orgs/org-1", `{"display_name": "Renamed"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403, body: %s", w.Code, w.Body.String())
	}
}

func TestDeleteOrganizationHandler_AdminDenied(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.DELETE("/orgs/:org_id", withTenant("org-1", "user-1", models.RoleAdmin), env.orgs.DeleteOrganizationHandler())

	w := doRequest(router, "DELETE", "/orgs/org-1", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403: only OWNER may delete", w.Code)
	}
}

func TestBulkUpdateRolesHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.PUT("/orgs/:org_id/members/roles", withTenant("org-1", "user-1", models.RoleOwner), env.orgs.BulkUpdateRolesHandler())

	w := doRequest(router, "PUT", "/orgs/org-1/members/roles", `{"not_updates": true}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRemoveMemberHandler_MemberDenied(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.DELETE("/orgs/:org_id/members/:user_id", withTenant("org-1", "user-1", models.RoleMember), env.orgs.RemoveMemberHandler())

	w := doRequest(router, "DELETE", "/orgs/org-1/members/user-2", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestListMembersHandler_Success(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	router.GET("/orgs/:org_id/members", withTenant("org-1", "user-1", models.RoleMember), env.orgs.ListMembersHandler())

	now := time.Now()
	env.mock.ExpectQuery("SELECT (.+) FROM memberships").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"organization_id", "user_id", "role", "status", "removed_at",
			"created_at", "updated_at", "user_name", "user_email",
		}).AddRow("org-1", "user-1", "OWNER", "ACTIVE", nil, now, now, "Pat Teacher", "pat@school.example"))

	w := doRequest(router, "GET", "/orgs/org-1/members", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Members []models.MembershipWithUser `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Members) != 1 || resp.Members[0].UserEmail != "pat@school.example" {
		t.Errorf("unexpected members payload: %+v", resp.Members)
	}
}

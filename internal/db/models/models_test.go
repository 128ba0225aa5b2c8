package models

import (
	"testing"
	"time"
)

func TestValidOrgType(t *testing.T) {
	for _, typ := range []OrgType{OrgTypeSchool, OrgTypeTrainingCenter, OrgTypeCorporate, OrgTypeChurch, OrgTypeOther} {
		if !ValidOrgType(typ) {
			t.Errorf("ValidOrgType(%s) = false, want true", typ)
		}
	}
	if ValidOrgType("UNIVERSITY") {
		t.Error("ValidOrgType accepted an unknown type")
	}
	if ValidOrgType("") {
		t.Error("ValidOrgType accepted an empty type")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleAccountant, RoleOfficeStaff} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%s) = false, want true", r)
		}
	}
	if ValidRole("SUPERUSER") {
		t.Error("ValidRole accepted an unknown role")
	}
	if ValidRole("owner") {
		t.Error("ValidRole accepted a lowercase role; roles are case-sensitive")
	}
}

func TestInvitationLive(t *testing.T) {
	now := time.Now()
	inv := &Invitation{ExpiresAt: now.Add(time.Hour)}

	if !inv.Live(now) {
		t.Error("unexpired, unaccepted invitation should be live")
	}

	inv.Accepted = true
	if inv.Live(now) {
		t.Error("accepted invitation should not be live")
	}

	inv.Accepted = false
	if inv.Live(now.Add(2 * time.Hour)) {
		t.Error("expired invitation should not be live")
	}
}

func TestInvitationExpired_BoundaryIsExpired(t *testing.T) {
	now := time.Now()
	inv := &Invitation{ExpiresAt: now}
	// now >= expiresAt counts as expired, so the exact boundary instant is expired.
	if !inv.Expired(now) {
		t.Error("invitation at the exact expiry instant should be expired")
	}
	if inv.Live(now) {
		t.Error("invitation at the exact expiry instant should not be live")
	}
}

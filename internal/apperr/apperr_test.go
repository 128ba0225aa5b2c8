package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_Classified(t *testing.T) {
	err := New(KindExpired, "invitation has expired")
	if got := KindOf(err); got != KindExpired {
		t.Errorf("KindOf = %s, want %s", got, KindExpired)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := New(KindNotFound, "organization not found")
	err := fmt.Errorf("create invitation: %w", inner)
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %s, want %s", got, KindNotFound)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("driver: bad connection")); got != KindInternal {
		t.Errorf("KindOf = %s, want %s", got, KindInternal)
	}
}

func TestErrorsIs_MatchesOnKind(t *testing.T) {
	err := Newf(KindAlreadyAccepted, "invitation %s already accepted", "inv-1")
	if !errors.Is(err, New(KindAlreadyAccepted, "")) {
		t.Error("expected errors.Is to match on kind")
	}
	if errors.Is(err, New(KindExpired, "")) {
		t.Error("expected errors.Is not to match a different kind")
	}
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: duplicate key value violates unique constraint")
	err := Internal(cause)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want generic message", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to remain reachable via errors.Is")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindAlreadyAccepted, http.StatusConflict},
		{KindExpired, http.StatusGone},
		{KindEmailMismatch, http.StatusForbidden},
		{KindInsufficientPermission, http.StatusForbidden},
		{KindValidation, http.StatusBadRequest},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "x")); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

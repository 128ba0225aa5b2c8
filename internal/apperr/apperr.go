// Package apperr defines the caller-visible error taxonomy for the ClassDesk core.
// Every business-rule failure surfaced by the tenant, invitation, and membership
// services is an *Error carrying a stable Kind so that API handlers (and calling
// UIs) can branch on the failure class without parsing message strings. Store-level
// infrastructure failures are wrapped with KindInternal and never leak driver
// details to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the stable caller-visible categories.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindExpired                Kind = "expired"
	KindAlreadyAccepted        Kind = "already_accepted"
	KindEmailMismatch          Kind = "email_mismatch"
	KindInsufficientPermission Kind = "insufficient_permission"
	KindValidation             Kind = "validation"
	KindInternal               Kind = "internal"
)

// Error is a classified application error. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, not exposed to callers
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on Kind so services can compare against
// template errors such as apperr.New(apperr.KindExpired, "").
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a classified error with a caller-visible message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted caller-visible message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it available via errors.Unwrap.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an infrastructure failure. The caller-visible message is generic
// so driver and SQL details never cross the API boundary.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf extracts the Kind from any error in the chain, defaulting to KindInternal
// for unclassified errors (fails closed: unknown failures are never treated as
// business outcomes).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error kind to the HTTP status code used at the API boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindAlreadyAccepted:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindEmailMismatch, KindInsufficientPermission:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

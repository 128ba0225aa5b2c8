// Package tenant resolves the tenant context for a request: given an authenticated
// caller and a target organization, it produces the caller's role inside that
// organization or a permission error. Every organization-scoped endpoint goes
// through the resolver, so "is this caller a member" is answered in exactly one
// place. Soft-removed members resolve the same as strangers.
package tenant

import (
	"context"
	"fmt"

	"github.com/classdesk/classdesk/internal/apperr"
	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/db/models"
)

// Context is the resolved tenant scope for one request.
type Context struct {
	OrganizationID string
	CallerID       string
	Role           models.Role
}

// Require returns an InsufficientPermission error unless the caller's role grants
// the capability. The capability table fails closed, so an unknown role denies.
func (c *Context) Require(capability auth.Capability) error {
	if auth.RoleHasCapability(c.Role, capability) {
		return nil
	}
	return apperr.Newf(apperr.KindInsufficientPermission,
		"role %s does not permit %s", c.Role, capability)
}

// membershipGetter is the slice of the membership repository the resolver needs.
type membershipGetter interface {
	Get(ctx context.Context, orgID, userID string) (*models.Membership, error)
}

// Resolver resolves tenant contexts from membership rows.
type Resolver struct {
	memberships membershipGetter
}

// NewResolver creates a resolver backed by the given membership store.
func NewResolver(memberships membershipGetter) *Resolver {
	return &Resolver{memberships: memberships}
}

// Resolve returns the tenant context for callerID acting on orgID. A caller with no
// membership row, or with a soft-removed one, gets an InsufficientPermission error;
// the two cases are indistinguishable to the caller so removal does not leak
// membership history.
func (r *Resolver) Resolve(ctx context.Context, callerID, orgID string) (*Context, error) {
	if callerID == "" || orgID == "" {
		return nil, apperr.New(apperr.KindValidation, "caller and organization are required")
	}

	m, err := r.memberships.Get(ctx, orgID, callerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "internal error",
			fmt.Errorf("failed to resolve tenant context: %w", err))
	}
	if m == nil || m.Status != models.MembershipActive {
		return nil, apperr.New(apperr.KindInsufficientPermission,
			"caller is not a member of this organization")
	}

	return &Context{
		OrganizationID: orgID,
		CallerID:       callerID,
		Role:           m.Role,
	}, nil
}

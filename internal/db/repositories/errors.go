// errors.go defines sentinel error values returned by the membership-core repositories
// for business-rule violations detected inside store transactions. Services translate
// these into the caller-visible error taxonomy; infrastructure failures are wrapped
// with fmt.Errorf and are never sentinels.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateOrganization is returned when an organization name is already taken.
	ErrDuplicateOrganization = errors.New("organization name already in use")

	// ErrDuplicateInvitation is returned when a live invitation already exists for
	// the (organization, email) pair. Surfaces when two concurrent create calls race;
	// the loser observes the winner's row on retry.
	ErrDuplicateInvitation = errors.New("live invitation already exists")

	// ErrAlreadyAccepted is returned when an invitation's accepted flag was already
	// set. The guarded UPDATE inside the accept transaction makes exactly one of two
	// concurrent accept calls fail with this.
	ErrAlreadyAccepted = errors.New("invitation already accepted")

	// ErrAlreadyMember is returned when accepting an invitation for a user who
	// already holds an active membership in the organization.
	ErrAlreadyMember = errors.New("user is already an active member")

	// ErrMemberNotFound is returned when a role update or removal targets a user with
	// no active membership in the organization. Bulk updates fail whole on this.
	ErrMemberNotFound = errors.New("membership not found")

	// ErrLastOwner is returned when an operation would leave the organization with
	// no active OWNER.
	ErrLastOwner = errors.New("organization must retain at least one active owner")
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

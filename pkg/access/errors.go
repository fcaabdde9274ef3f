package access

import (
	"errors"
	"fmt"
	"net/http"
)

// Reason is the audited reason code attached to a resolver failure.
// Reason codes are recorded in logs and the audit trail; the
// client-visible message stays deliberately short.
type Reason string

const (
	ReasonEntityNotFound          Reason = "entity_not_found"
	ReasonNotMember               Reason = "not_member"
	ReasonInsufficientPermissions Reason = "insufficient_permissions"
	ReasonOwnerImmutable          Reason = "owner_immutable"
)

// specificity orders denial reasons from least to most informative, used
// when several parent paths fail and one diagnostic must be chosen.
func (r Reason) specificity() int {
	switch r {
	case ReasonInsufficientPermissions:
		return 3
	case ReasonNotMember:
		return 2
	case ReasonEntityNotFound:
		return 1
	default:
		return 0
	}
}

// Error is the typed failure surfaced by every guard. It carries an
// HTTP-style status for the route layer and a reason code for the audit
// trail.
type Error struct {
	Status   int
	Reason   Reason
	Family   string
	EntityID int64
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %d: %s (%s)", e.Family, e.EntityID, e.Message, e.Reason)
}

// NotFoundError reports that the entity, or every path to it, does not
// exist in the store.
func NotFoundError(family string, entityID int64) *Error {
	return &Error{
		Status:   http.StatusNotFound,
		Reason:   ReasonEntityNotFound,
		Family:   family,
		EntityID: entityID,
		Message:  "not found",
	}
}

// MemberNotFoundError reports that the targeted membership row does not
// exist on the container.
func MemberNotFoundError(family string, entityID int64) *Error {
	return &Error{
		Status:   http.StatusNotFound,
		Reason:   ReasonEntityNotFound,
		Family:   family,
		EntityID: entityID,
		Message:  "member not found",
	}
}

// NotMemberError reports that the user holds no qualifying membership.
func NotMemberError(family string, entityID int64) *Error {
	return &Error{
		Status:   http.StatusForbidden,
		Reason:   ReasonNotMember,
		Family:   family,
		EntityID: entityID,
		Message:  "access denied",
	}
}

// ForbiddenError reports that a membership exists but its role does not
// grant the requested capability.
func ForbiddenError(family string, entityID int64, capability Capability) *Error {
	return &Error{
		Status:   http.StatusForbidden,
		Reason:   ReasonInsufficientPermissions,
		Family:   family,
		EntityID: entityID,
		Message:  fmt.Sprintf("access denied for %s", capability),
	}
}

// OwnerImmutableError reports an attempt to modify or remove an owner
// membership. No capability, including a global bypass, overrides this.
func OwnerImmutableError(op Operation) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Reason:  ReasonOwnerImmutable,
		Message: fmt.Sprintf("cannot %s an owner membership", op),
	}
}

// IsNotFound reports whether err is a resolver not-found failure.
func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsAccessDenied reports whether err is a resolver denial.
func IsAccessDenied(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusForbidden
}

// IsInvalidOperation reports whether err is a structurally forbidden
// mutation, such as removing an owner.
func IsInvalidOperation(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusBadRequest
}

// StatusOf maps any error to an HTTP status: resolver errors carry their
// own status, everything else is a 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// moreSpecific returns whichever of two denials carries the more
// informative reason; ties keep the earlier one.
func moreSpecific(current, candidate *Error) *Error {
	if current == nil {
		return candidate
	}
	if candidate != nil && candidate.Reason.specificity() > current.Reason.specificity() {
		return candidate
	}
	return current
}

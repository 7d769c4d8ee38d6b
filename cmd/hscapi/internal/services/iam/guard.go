package iam

import (
	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
)

// DenyReason explains a denied Decision.
type DenyReason string

const (
	ReasonUnauthenticated  DenyReason = "unauthenticated"
	ReasonInsufficientRole DenyReason = "insufficient role"
)

// Decision is the result of an access check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// ViaFallback is set when only the role attribute, not group
	// membership, granted access.
	ViaFallback bool
}

// Err maps a denial to ErrUnauthenticated or ErrForbidden, and an Allow
// to nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonUnauthenticated:
		return ErrUnauthenticated
	default:
		return ErrForbidden
	}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Authorize decides whether principal may use a view restricted to the
// allowed roles. Checks run in this order:
//
//  1. no principal, or not authenticated: deny (unauthenticated)
//  2. superuser: allow, even with an empty allowed list
//  3. a role group membership named in allowed: allow
//  4. the role attribute named in allowed: allow (fallback)
//  5. otherwise: deny (insufficient role)
//
// Group membership is the primary signal. The role attribute is kept as a
// fallback so a user whose group is missing, or who has not been moved
// yet, keeps the access their role implies; ViaFallback records when that
// happened.
//
// Authorize has no side effects.
func Authorize(principal *auth.AuthenticatedPrincipal, allowed ...auth.Role) Decision {
	if !principal.Authenticated() {
		return deny(ReasonUnauthenticated)
	}
	if principal.IsSuperuser {
		return allow()
	}
	for _, group := range principal.Groups {
		for _, role := range allowed {
			if group == string(role) {
				return allow()
			}
		}
	}
	for _, role := range allowed {
		if principal.Role == role {
			return Decision{Allowed: true, ViaFallback: true}
		}
	}
	return deny(ReasonInsufficientRole)
}

// Guard adapts Authorize to an injectable value for the HTTP middleware.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

func (*Guard) Authorize(principal *auth.AuthenticatedPrincipal, allowed ...auth.Role) Decision {
	return Authorize(principal, allowed...)
}

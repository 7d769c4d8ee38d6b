package auth

import (
	"context"
	"time"
)

// AuthenticatedPrincipal captures identity metadata propagated through the request context.
type AuthenticatedPrincipal struct {
	// UserID is users.id.
	UserID string
	// Username is the login name.
	Username string
	// Role is the role attribute stored on the user row.
	Role Role
	// Groups lists the role groups the user is a member of, by name.
	Groups []string
	// IsSuperuser bypasses every role and permission check.
	IsSuperuser bool
	// TokenID is the jti of the bearer token, used for logout.
	TokenID string
	// ExpiresAt is the bearer token expiry.
	ExpiresAt time.Time
}

// Authenticated reports whether p identifies a user.
func (p *AuthenticatedPrincipal) Authenticated() bool {
	return p != nil && p.UserID != ""
}

// PrincipalID is the Casbin subject for the user.
func (p *AuthenticatedPrincipal) PrincipalID() string {
	return UserID(p.UserID)
}

type principalContextKey struct{}

// SetUserContext stores the authenticated principal on the context for downstream consumers.
func SetUserContext(ctx context.Context, principal AuthenticatedPrincipal) context.Context {
	principal.Groups = append([]string(nil), principal.Groups...)
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetUserFromContext retrieves the authenticated principal from the context.
func GetUserFromContext(ctx context.Context) (AuthenticatedPrincipal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(AuthenticatedPrincipal)
	return principal, ok
}

// PrincipalFromContext returns a pointer to a copy of the principal, or nil.
func PrincipalFromContext(ctx context.Context) *AuthenticatedPrincipal {
	principal, ok := GetUserFromContext(ctx)
	if !ok {
		return nil
	}
	principal.Groups = append([]string(nil), principal.Groups...)
	return &principal
}

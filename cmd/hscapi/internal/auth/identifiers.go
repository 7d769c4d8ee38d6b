package auth

import (
	"fmt"
	"strings"
)

// Prefix constants for Casbin identifiers. Grants are stored against
// role subjects and memberships link user subjects to role subjects.
const (
	PrefixUser = "user:"
	PrefixRole = "role:"
)

// UserID creates a Casbin user identifier.
// Example: UserID("0192...") → "user:0192..."
func UserID(id string) string {
	return PrefixUser + id
}

// RoleID creates a Casbin role-group identifier.
// Example: RoleID("MEDECIN") → "role:MEDECIN"
func RoleID(group string) string {
	return PrefixRole + group
}

// ExtractUserID strips the user prefix, or errors on mismatch.
func ExtractUserID(principal string) (string, error) {
	if !strings.HasPrefix(principal, PrefixUser) {
		return "", fmt.Errorf("invalid user principal: %s (expected prefix %s)", principal, PrefixUser)
	}
	return strings.TrimPrefix(principal, PrefixUser), nil
}

// ExtractRoleID strips the role prefix, or errors on mismatch.
func ExtractRoleID(principal string) (string, error) {
	if !strings.HasPrefix(principal, PrefixRole) {
		return "", fmt.Errorf("invalid role principal: %s (expected prefix %s)", principal, PrefixRole)
	}
	return strings.TrimPrefix(principal, PrefixRole), nil
}

// GetPrincipalType returns "user", "role" or "" for a Casbin subject.
func GetPrincipalType(principal string) string {
	switch {
	case strings.HasPrefix(principal, PrefixUser):
		return "user"
	case strings.HasPrefix(principal, PrefixRole):
		return "role"
	default:
		return ""
	}
}

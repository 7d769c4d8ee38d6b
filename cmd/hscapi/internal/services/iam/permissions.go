package iam

import (
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
)

// Can reports whether principal holds a grant for action on resource.
//
// The check is read-only. It queries the enforcer once per role group of
// the principal (groups were resolved from the store at authentication
// time) and allows as soon as one group holds the grant. Superusers are
// always allowed; a principal with no groups is always denied.
func Can(enforcer casbin.IEnforcer, principal *auth.AuthenticatedPrincipal, resource auth.ResourceType, action auth.Action) (bool, error) {
	if !principal.Authenticated() {
		return false, nil
	}
	if principal.IsSuperuser {
		return true, nil
	}
	if enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}

	for _, group := range principal.Groups {
		allowed, err := enforcer.Enforce(auth.RoleID(group), string(resource), string(action))
		if err != nil {
			return false, fmt.Errorf("casbin enforce for %s: %w", auth.RoleID(group), err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// GroupGrants lists the grants the enforcer currently holds for a group.
func GroupGrants(enforcer casbin.IEnforcer, group string) ([]auth.Grant, error) {
	rules, err := enforcer.GetPermissionsForUser(auth.RoleID(group))
	if err != nil {
		return nil, fmt.Errorf("get permissions for %s: %w", group, err)
	}
	grants := make([]auth.Grant, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		grants = append(grants, auth.Grant{Resource: auth.ResourceType(rule[1]), Action: auth.Action(rule[2])})
	}
	auth.SortGrants(grants)
	return grants, nil
}

// EffectiveGrants is the union of GroupGrants over the principal's groups.
func EffectiveGrants(enforcer casbin.IEnforcer, principal *auth.AuthenticatedPrincipal) ([]auth.Grant, error) {
	seen := make(map[auth.Grant]struct{})
	var out []auth.Grant
	for _, group := range principal.Groups {
		grants, err := GroupGrants(enforcer, group)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	auth.SortGrants(out)
	return out, nil
}

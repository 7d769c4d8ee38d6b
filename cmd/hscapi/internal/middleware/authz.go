package middleware

import (
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// RoleAuthorizer is the role-restricted view check.
type RoleAuthorizer interface {
	Authorize(principal *auth.AuthenticatedPrincipal, allowed ...auth.Role) iam.Decision
}

// AuthzDependencies provides the collaborators needed for authorization decisions.
type AuthzDependencies struct {
	Guard    RoleAuthorizer
	Enforcer casbin.IEnforcer
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// Authz builds per-route guard middleware.
type Authz struct {
	guard    RoleAuthorizer
	enforcer casbin.IEnforcer
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

func NewAuthz(deps AuthzDependencies) (*Authz, error) {
	if deps.Guard == nil {
		return nil, errors.New("authz middleware requires a role guard")
	}
	if deps.Enforcer == nil {
		return nil, errors.New("authz middleware requires casbin enforcer")
	}
	return &Authz{
		guard:    deps.Guard,
		enforcer: deps.Enforcer,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "authz").Logger(),
	}, nil
}

// RequireAuthenticated rejects requests without a principal.
func (a *Authz) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.PrincipalFromContext(r.Context()).Authenticated() {
				a.metrics.ObserveAccessDecision(false, string(iam.ReasonUnauthenticated))
				unauthenticated(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole restricts a route to the given roles through the guard:
// 401 when unauthenticated, 403 when no role matches.
func (a *Authz) RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			decision := a.guard.Authorize(principal, roles...)
			a.metrics.ObserveAccessDecision(decision.Allowed, decisionLabel(principal, decision))

			if !decision.Allowed {
				if decision.Reason == iam.ReasonUnauthenticated {
					unauthenticated(w)
					return
				}
				a.logger.Info().
					Str("user_id", principal.UserID).
					Str("role", string(principal.Role)).
					Strs("groups", principal.Groups).
					Str("path", r.URL.Path).
					Msg("role check denied")
				forbidden(w)
				return
			}
			if decision.ViaFallback {
				a.logger.Debug().
					Str("user_id", principal.UserID).
					Str("role", string(principal.Role)).
					Str("path", r.URL.Path).
					Msg("access granted by role attribute without group membership")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission checks a (resource, action) grant against the
// reconciled policy. Superusers always pass.
func (a *Authz) RequirePermission(resource auth.ResourceType, action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if !principal.Authenticated() {
				a.metrics.ObserveAccessDecision(false, string(iam.ReasonUnauthenticated))
				unauthenticated(w)
				return
			}

			allowed, err := iam.Can(a.enforcer, principal, resource, action)
			if err != nil {
				a.logger.Error().Err(err).
					Str("resource", string(resource)).
					Str("action", string(action)).
					Msg("permission check")
				writeError(w, http.StatusInternalServerError, "authorization error")
				return
			}
			if !allowed {
				a.metrics.ObserveAccessDecision(false, "missing grant")
				a.logger.Info().
					Str("user_id", principal.UserID).
					Str("resource", string(resource)).
					Str("action", string(action)).
					Msg("permission denied")
				forbidden(w)
				return
			}
			a.metrics.ObserveAccessDecision(true, "grant")
			next.ServeHTTP(w, r)
		})
	}
}

func decisionLabel(p *auth.AuthenticatedPrincipal, d iam.Decision) string {
	switch {
	case !d.Allowed:
		return string(d.Reason)
	case p.IsSuperuser:
		return "superuser"
	case d.ViaFallback:
		return "role attribute"
	default:
		return "group"
	}
}

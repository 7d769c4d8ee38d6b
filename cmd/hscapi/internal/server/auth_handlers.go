package server

import (
	"context"
	"net/http"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// recordAudit writes an entry and logs, rather than returns, a failure.
func recordAudit(ctx context.Context, recorder auditRecorder, logger zerolog.Logger, entry audit.Entry) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error().Err(err).Str("action", string(entry.Action)).Msg("failed to record audit entry")
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HandleLogin authenticates a username and password and issues a token.
func HandleLogin(svc authService, recorder auditRecorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing username or password")
			return
		}

		result, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		entry := audit.FromRequest(r, nil, audit.ActionLogin)
		entry.UserID = result.User.ID
		entry.Username = result.User.Username
		entry.AppLabel = "auth"
		entry.Model = "user"
		entry.ObjectID = result.User.ID
		entry.ObjectRepr = result.User.Username
		recordAudit(r.Context(), recorder, logger, entry)

		writeJSON(w, http.StatusOK, LoginResponse{
			AccessToken: result.Token.Token,
			TokenType:   "Bearer",
			ExpiresAt:   result.Token.ExpiresAt,
		})
	}
}

// HandleLogout revokes the caller's token.
func HandleLogout(svc authService, recorder auditRecorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := auth.PrincipalFromContext(r.Context())
		if err := svc.Logout(r.Context(), principal); err != nil {
			writeServiceError(w, logger, err)
			return
		}

		entry := audit.FromRequest(r, principal, audit.ActionLogout)
		entry.AppLabel = "auth"
		entry.Model = "user"
		entry.ObjectID = principal.UserID
		entry.ObjectRepr = principal.Username
		recordAudit(r.Context(), recorder, logger, entry)

		w.WriteHeader(http.StatusNoContent)
	}
}

// WhoAmIResponse describes the caller.
type WhoAmIResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Role        auth.Role `json:"role"`
	RoleLabel   string    `json:"role_label"`
	Groups      []string  `json:"groups"`
	IsSuperuser bool      `json:"is_superuser"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HandleWhoAmI returns the caller's identity and effective grants.
func HandleWhoAmI(enforcer casbin.IEnforcer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := auth.PrincipalFromContext(r.Context())

		grants, err := iam.EffectiveGrants(enforcer, principal)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		perms := make([]string, 0, len(grants))
		for _, g := range grants {
			perms = append(perms, g.Codename())
		}
		groups := principal.Groups
		if groups == nil {
			groups = []string{}
		}

		writeJSON(w, http.StatusOK, WhoAmIResponse{
			ID:          principal.UserID,
			Username:    principal.Username,
			Role:        principal.Role,
			RoleLabel:   principal.Role.Label(),
			Groups:      groups,
			IsSuperuser: principal.IsSuperuser,
			Permissions: perms,
			ExpiresAt:   principal.ExpiresAt,
		})
	}
}

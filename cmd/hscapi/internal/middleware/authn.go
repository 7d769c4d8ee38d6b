package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

// PrincipalResolver turns a bearer token into a principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*auth.AuthenticatedPrincipal, error)
}

// NewAuthnMiddleware resolves the Authorization: Bearer header and stores
// the principal on the request context.
//
// Requests without the header pass through unauthenticated; the authz
// middleware decides whether the route needs a user. A header that is
// present but invalid, revoked, or belongs to a disabled account is
// rejected with 401 here.
func NewAuthnMiddleware(resolver PrincipalResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "authn").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				unauthenticated(w)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if isCredentialError(err) {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
					unauthenticated(w)
					return
				}
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("resolve principal")
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}

			ctx := auth.SetUserContext(r.Context(), *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, iam.ErrInactiveUser)
}

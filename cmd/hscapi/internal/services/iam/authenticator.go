package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// AuthenticatorDeps groups the collaborators of an Authenticator.
type AuthenticatorDeps struct {
	Users   repository.UserRepository
	Members repository.MembershipStore
	Revoked repository.RevokedTokenRepository
	Tokens  *auth.TokenIssuer
	Metrics *telemetry.Metrics
	Logger  zerolog.Logger
}

// Authenticator handles password login, bearer token resolution and
// logout.
//
// Tokens carry only the user id and a jti. Role and group memberships
// are read from the store on every Resolve, so a role change applies to
// the next request without reissuing tokens.
type Authenticator struct {
	users   repository.UserRepository
	members repository.MembershipStore
	revoked repository.RevokedTokenRepository
	tokens  *auth.TokenIssuer
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	// checkPassword is auth.CheckPassword outside tests.
	checkPassword func(hash, password string) (bool, error)
}

func NewAuthenticator(deps AuthenticatorDeps) *Authenticator {
	return &Authenticator{
		users:   deps.Users,
		members: deps.Members,
		revoked: deps.Revoked,
		tokens:  deps.Tokens,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "iam.authenticator").Logger(),
		now:     time.Now,

		checkPassword: auth.CheckPassword,
	}
}

// LoginResult is a successful login.
type LoginResult struct {
	User  *models.User
	Token auth.IssuedToken
}

// Login checks a username and password and issues an access token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = a.checkPassword(auth.DecoyHash(), password)
			a.metrics.ObserveLogin("unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := a.checkPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.metrics.ObserveLogin("bad_password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		a.metrics.ObserveLogin("inactive")
		return nil, ErrInactiveUser
	}

	token, err := a.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if err := a.users.UpdateLastLogin(ctx, user.ID); err != nil {
		// Not fatal: the token is already valid.
		a.logger.Warn().Err(err).Str("user_id", user.ID).Msg("update last login")
	}
	a.metrics.ObserveLogin("success")
	return &LoginResult{User: user, Token: token}, nil
}

// Resolve turns a bearer token into a principal with the user's current
// role and role groups.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*auth.AuthenticatedPrincipal, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrTokenRevoked
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", auth.ErrInvalidToken)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	groups, err := a.members.GroupsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	principal := &auth.AuthenticatedPrincipal{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        auth.Role(user.Role),
		Groups:      groups,
		IsSuperuser: user.IsSuperuser,
		TokenID:     claims.ID,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// Logout puts the principal's token on the denylist until it expires.
func (a *Authenticator) Logout(ctx context.Context, principal *auth.AuthenticatedPrincipal) error {
	if !principal.Authenticated() || principal.TokenID == "" {
		return ErrUnauthenticated
	}
	exp := principal.ExpiresAt
	if exp.IsZero() {
		exp = a.now().Add(24 * time.Hour)
	}
	return a.revoked.Revoke(ctx, &models.RevokedToken{
		JTI:       principal.TokenID,
		UserID:    principal.UserID,
		Exp:       exp.UTC(),
		RevokedAt: a.now().UTC(),
	})
}

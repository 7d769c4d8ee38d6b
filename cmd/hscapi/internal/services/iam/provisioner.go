package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

// NewUser is a staff account to create or update.
type NewUser struct {
	Username    string
	Password    string
	Role        auth.Role
	FullName    string
	Email       string
	IsSuperuser bool
}

// Provisioned reports what EnsureUser did.
type Provisioned struct {
	User       *models.User
	Created    bool
	Assignment Assignment
}

// Provisioner creates staff accounts. Membership always goes through the
// Assigner so that role and group stay in step.
type Provisioner struct {
	users    repository.UserRepository
	assigner *Assigner
	logger   zerolog.Logger
}

func NewProvisioner(users repository.UserRepository, assigner *Assigner, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		users:    users,
		assigner: assigner,
		logger:   logger.With().Str("component", "iam.provisioner").Logger(),
	}
}

// EnsureUser creates the user if missing, (re)sets the password, then
// assigns the role.
func (p *Provisioner) EnsureUser(ctx context.Context, in NewUser) (*Provisioned, error) {
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, auth.MinPasswordLength)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(in.Role))
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	out := &Provisioned{}
	user, err := p.users.GetByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user = &models.User{
			Username:     in.Username,
			Email:        in.Email,
			FullName:     in.FullName,
			PasswordHash: hash,
			Role:         string(in.Role),
			IsSuperuser:  in.IsSuperuser,
			IsActive:     true,
		}
		if err := p.users.Create(ctx, user); err != nil {
			return nil, err
		}
		out.Created = true
	case err != nil:
		return nil, err
	default:
		if err := p.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
			return nil, err
		}
	}

	asg, err := p.assigner.AssignRole(ctx, user.ID, in.Role)
	if err != nil {
		return nil, err
	}
	user.Role = string(in.Role)
	out.User = user
	out.Assignment = asg

	p.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Bool("created", out.Created).
		Str("role", string(in.Role)).
		Msg("user provisioned")
	return out, nil
}

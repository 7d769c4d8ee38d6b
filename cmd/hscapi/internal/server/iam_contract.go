package server

import (
	"context"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

// The interfaces below are the exact IAM methods the handlers use. The
// assertions at the bottom fail the build if a service drifts from them.

type authService interface {
	Login(ctx context.Context, username, password string) (*iam.LoginResult, error)
	Logout(ctx context.Context, principal *auth.AuthenticatedPrincipal) error
}

type roleAssigner interface {
	AssignRole(ctx context.Context, userID string, role auth.Role) (iam.Assignment, error)
}

type policyReconciler interface {
	Reconcile(ctx context.Context) (iam.SyncReport, error)
}

type userProvisioner interface {
	EnsureUser(ctx context.Context, in iam.NewUser) (*iam.Provisioned, error)
}

var (
	_ authService      = (*iam.Authenticator)(nil)
	_ roleAssigner     = (*iam.Assigner)(nil)
	_ policyReconciler = (*iam.Synchronizer)(nil)
	_ userProvisioner  = (*iam.Provisioner)(nil)
)

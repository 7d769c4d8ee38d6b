package iam

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// Assignment describes a committed role change.
type Assignment struct {
	UserID         string
	Role           auth.Role
	PreviousRole   auth.Role
	PreviousGroups []string
	// Group is the role group the user now belongs to, or "" when
	// GroupMissing.
	Group        string
	GroupMissing bool
	// Inconsistent is set when the user was in more than one role group
	// before the change. The change repairs it.
	Inconsistent bool
}

// AssignerDeps groups the collaborators of an Assigner.
type AssignerDeps struct {
	Members  repository.MembershipStore
	Reloader PolicyReloader
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// Assigner keeps role group membership in step with the user's role.
type Assigner struct {
	members  repository.MembershipStore
	reloader PolicyReloader
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

func NewAssigner(deps AssignerDeps) *Assigner {
	return &Assigner{
		members:  deps.Members,
		reloader: deps.Reloader,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "iam.assigner").Logger(),
	}
}

// AssignRole sets the user's role and moves them to the matching group.
// The removal from every role group and the addition to the target group
// commit together, so no reader sees the user in zero or two groups
// mid-change. Groups that are not registry roles are left alone.
//
// If the target group does not exist yet the user ends up in no role
// group; that is reported through Assignment.GroupMissing, not an error.
func (a *Assigner) AssignRole(ctx context.Context, userID string, role auth.Role) (asg Assignment, err error) {
	if !role.Valid() {
		return Assignment{}, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AssignRole",
		attribute.String(telemetry.AttrPrincipalID, userID),
		attribute.String(telemetry.AttrIAMTargetRole, string(role)),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	change, err := a.members.ApplyRoleChange(ctx, userID, role, auth.RoleGroupNames())
	if err != nil {
		return Assignment{}, fmt.Errorf("assign role %s to user %s: %w", role, userID, err)
	}

	asg = Assignment{
		UserID:         userID,
		Role:           role,
		PreviousRole:   change.PreviousRole,
		PreviousGroups: change.PreviousGroups,
		Group:          change.Group,
		GroupMissing:   change.Group == "",
		Inconsistent:   len(change.PreviousGroups) > 1,
	}
	a.metrics.ObserveRoleAssignment(string(role))

	event := a.logger.Info()
	if asg.Inconsistent {
		event = a.logger.Warn().Bool("inconsistent_membership", true)
	}
	event.
		Str("user_id", userID).
		Str("role", string(role)).
		Str("previous_role", string(asg.PreviousRole)).
		Strs("previous_groups", asg.PreviousGroups).
		Bool("group_missing", asg.GroupMissing).
		Msg("role assigned")

	if a.reloader != nil {
		if err := a.reloader.LoadPolicy(); err != nil {
			return asg, fmt.Errorf("reload policy after role change: %w", err)
		}
	}
	return asg, nil
}

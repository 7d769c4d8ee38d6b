package iam

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

const tracerName = "hscapi/services/iam"

// PolicyReloader refreshes an in-memory policy view from the store.
// casbin.IEnforcer satisfies it.
type PolicyReloader interface {
	LoadPolicy() error
}

// GroupSync is the outcome of reconciling one role group.
type GroupSync struct {
	Group     string
	Created   bool
	Relabeled bool
	Expected  int
	Added     int
	Removed   int
}

// SkippedGrant is a registry grant whose resource type is not in the
// catalog yet. Skips are not errors: the component that owns the type
// registers it later and the next reconcile picks it up.
type SkippedGrant struct {
	Group string
	Grant auth.Grant
}

// SyncReport summarises one Reconcile run.
type SyncReport struct {
	Groups  []GroupSync
	Skipped []SkippedGrant
}

// Changed reports whether any group was created or relabeled, or any
// grant added or removed.
func (r SyncReport) Changed() bool {
	for _, g := range r.Groups {
		if g.Created || g.Relabeled || g.Added > 0 || g.Removed > 0 {
			return true
		}
	}
	return false
}

// Totals returns the grants added and removed across all groups.
func (r SyncReport) Totals() (added, removed int) {
	for _, g := range r.Groups {
		added += g.Added
		removed += g.Removed
	}
	return added, removed
}

// SynchronizerDeps groups the collaborators of a Synchronizer.
type SynchronizerDeps struct {
	Store   repository.PermissionStore
	Catalog repository.ResourceCatalog
	// Roles overrides the registry; nil means auth.Definitions().
	Roles []auth.RoleDefinition
	// Reloader is optional. When set it is refreshed after a run that
	// changed something.
	Reloader PolicyReloader
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// Synchronizer makes the stored role groups and grants match the role
// registry.
type Synchronizer struct {
	store    repository.PermissionStore
	catalog  repository.ResourceCatalog
	roles    []auth.RoleDefinition
	reloader PolicyReloader
	metrics  *telemetry.Metrics
	logger   zerolog.Logger

	// mu serialises runs in this process; concurrent runs would only
	// repeat each other's work.
	mu sync.Mutex
}

func NewSynchronizer(deps SynchronizerDeps) *Synchronizer {
	roles := deps.Roles
	if roles == nil {
		roles = auth.Definitions()
	}
	return &Synchronizer{
		store:    deps.Store,
		catalog:  deps.Catalog,
		roles:    roles,
		reloader: deps.Reloader,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "iam.synchronizer").Logger(),
	}
}

// Reconcile walks the registry in order. For each role it ensures the
// group exists, resolves the expected grants against the resource catalog
// and replaces the group's grant set in one transaction. Running it twice
// with an unchanged registry reports no changes the second time.
//
// Any store failure aborts the run with a *ConfigurationError.
func (s *Synchronizer) Reconcile(ctx context.Context) (report SyncReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.Reconcile")
	defer func() {
		telemetry.RecordError(span, err)
		s.metrics.ObserveReconcile(err)
		span.End()
	}()

	for _, def := range s.roles {
		group := string(def.Code)

		_, change, err := s.store.EnsureGroup(ctx, group, def.Label)
		if err != nil {
			return report, storeError("ensure group "+group, err)
		}

		expected := def.Expected()
		resolved := make([]auth.Grant, 0, len(expected))
		for _, grant := range expected {
			_, ok, err := s.catalog.Resolve(ctx, grant)
			if err != nil {
				return report, storeError("resolve "+grant.Codename(), err)
			}
			if !ok {
				report.Skipped = append(report.Skipped, SkippedGrant{Group: group, Grant: grant})
				continue
			}
			resolved = append(resolved, grant)
		}

		added, removed, err := s.store.SetGroupGrants(ctx, group, resolved)
		if err != nil {
			return report, storeError("set grants for "+group, err)
		}

		gs := GroupSync{
			Group:     group,
			Created:   change == repository.GroupCreated,
			Relabeled: change == repository.GroupRelabeled,
			Expected:  len(resolved),
			Added:     added,
			Removed:   removed,
		}
		report.Groups = append(report.Groups, gs)
		s.metrics.ObserveGrantChanges(group, added, removed)

		if gs.Created || gs.Relabeled || added > 0 || removed > 0 {
			s.logger.Info().
				Str("group", group).
				Bool("created", gs.Created).
				Bool("relabeled", gs.Relabeled).
				Int("added", added).
				Int("removed", removed).
				Msg("role group reconciled")
		}
	}

	added, removed := report.Totals()
	span.SetAttributes(
		attribute.Int(telemetry.AttrIAMGroupCount, len(report.Groups)),
		attribute.Int(telemetry.AttrIAMGrantsAdded, added),
		attribute.Int(telemetry.AttrIAMGrantsRemoved, removed),
		attribute.Int(telemetry.AttrIAMSkipped, len(report.Skipped)),
	)

	if len(report.Skipped) > 0 {
		s.logger.Debug().Int("skipped", len(report.Skipped)).Msg("grants skipped for unregistered resource types")
	}

	if report.Changed() && s.reloader != nil {
		if err := s.reloader.LoadPolicy(); err != nil {
			return report, storeError("reload policy", err)
		}
	}
	return report, nil
}

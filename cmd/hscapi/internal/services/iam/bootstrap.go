package iam

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/graph"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// Component owns a set of resource types and registers them in the
// catalog at startup.
type Component interface {
	Name() string
	ResourceTypes() []auth.ResourceType
}

// Dependent is implemented by components that must register after the
// named components.
type Dependent interface {
	DependsOn() []string
}

type staticComponent struct {
	name      string
	resources []auth.ResourceType
	after     []string
}

func (c staticComponent) Name() string                       { return c.name }
func (c staticComponent) ResourceTypes() []auth.ResourceType { return c.resources }
func (c staticComponent) DependsOn() []string                { return c.after }

// NewComponent builds a Component from a fixed resource list.
func NewComponent(name string, resources ...auth.ResourceType) Component {
	return staticComponent{name: name, resources: append([]auth.ResourceType(nil), resources...)}
}

// After returns c registering after the named components.
func After(c Component, names ...string) Component {
	return staticComponent{
		name:      c.Name(),
		resources: c.ResourceTypes(),
		after:     append(dependsOn(c), names...),
	}
}

func dependsOn(c Component) []string {
	if d, ok := c.(Dependent); ok {
		return append([]string(nil), d.DependsOn()...)
	}
	return nil
}

// DefaultComponents are the application's components. The clinical
// component comes first, so a reconcile run after it alone already yields
// the base grants.
func DefaultComponents() []Component {
	return []Component{
		NewComponent("patients",
			auth.ResourcePatient,
			auth.ResourceRendezVous,
			auth.ResourceConsultation,
			auth.ResourceOrdonnance,
		),
		After(NewComponent("cpn", auth.ResourceSuiviCPN), "patients"),
		After(NewComponent("community",
			auth.ResourcePathologie,
			auth.ResourceDossierCommunautaire,
			auth.ResourceSuiviCommunautaire,
		), "patients"),
		After(NewComponent("messaging",
			auth.ResourceThread,
			auth.ResourceMessage,
			auth.ResourceNotification,
		), "patients"),
		After(NewComponent("reports", auth.ResourceRapport), "patients", "cpn", "community"),
		NewComponent("audit", auth.ResourceAuditLog),
	}
}

// Bootstrap runs the two-phase startup: components register their
// resource types, then Finalize reconciles once against the full catalog.
type Bootstrap struct {
	catalog repository.ResourceCatalog
	sync    *Synchronizer
	logger  zerolog.Logger

	// ReconcileOnRegister runs a reconcile after every registration, the
	// way a per-component post-migrate hook would. Grants for types that
	// are not registered yet are skipped and filled in by later runs.
	ReconcileOnRegister bool

	mu         sync.Mutex
	registered []string
}

func NewBootstrap(catalog repository.ResourceCatalog, synchronizer *Synchronizer, logger zerolog.Logger) *Bootstrap {
	return &Bootstrap{
		catalog: catalog,
		sync:    synchronizer,
		logger:  logger.With().Str("component", "iam.bootstrap").Logger(),
	}
}

// Register writes every CRUD action for the component's resource types
// into the catalog. Registering the same component twice is harmless.
func (b *Bootstrap) Register(ctx context.Context, c Component) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.Bootstrap.Register",
		attribute.String(telemetry.AttrIAMComponent, c.Name()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	created := 0
	for _, resource := range c.ResourceTypes() {
		n, err := b.catalog.Register(ctx, c.Name(), resource, auth.CRUD)
		if err != nil {
			return storeError(fmt.Sprintf("register %s/%s", c.Name(), resource), err)
		}
		created += n
	}
	b.registered = append(b.registered, c.Name())
	b.logger.Debug().Str("name", c.Name()).Int("new_permissions", created).Msg("component registered")

	if b.ReconcileOnRegister {
		if _, err := b.sync.Reconcile(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAll registers components after the components they depend on,
// otherwise in the given order, and stops at the first error. A
// dependency may also name a component registered by an earlier call.
func (b *Bootstrap) RegisterAll(ctx context.Context, components ...Component) error {
	ordered, err := b.order(components)
	if err != nil {
		return err
	}
	for _, c := range ordered {
		if err := b.Register(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bootstrap) order(components []Component) ([]Component, error) {
	b.mu.Lock()
	done := make(map[string]bool, len(b.registered))
	for _, name := range b.registered {
		done[name] = true
	}
	b.mu.Unlock()

	names := make([]string, len(components))
	byName := make(map[string]Component, len(components))
	deps := make(map[string][]string)
	for i, c := range components {
		names[i] = c.Name()
		byName[c.Name()] = c
	}
	for _, c := range components {
		for _, dep := range dependsOn(c) {
			if _, pending := byName[dep]; pending || !done[dep] {
				deps[c.Name()] = append(deps[c.Name()], dep)
			}
		}
	}

	sorted, err := graph.Order(names, deps)
	if err != nil {
		return nil, fmt.Errorf("order components: %w", err)
	}
	out := make([]Component, len(sorted))
	for i, name := range sorted {
		out[i] = byName[name]
	}
	return out, nil
}

// Finalize runs the reconcile that makes the store match the registry.
// A returned error is a *ConfigurationError and must abort startup.
func (b *Bootstrap) Finalize(ctx context.Context) (SyncReport, error) {
	b.mu.Lock()
	components := append([]string(nil), b.registered...)
	b.mu.Unlock()

	report, err := b.sync.Reconcile(ctx)
	if err != nil {
		return report, err
	}
	added, removed := report.Totals()
	b.logger.Info().
		Strs("components", components).
		Int("groups", len(report.Groups)).
		Int("added", added).
		Int("removed", removed).
		Int("skipped", len(report.Skipped)).
		Msg("permissions reconciled")
	return report, nil
}

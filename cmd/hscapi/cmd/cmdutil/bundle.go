// Package cmdutil holds the wiring shared by the hscapi subcommands.
package cmdutil

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/logging"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// LoadConfig reads the configuration from the global viper instance and
// builds the matching logger.
func LoadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFrom(viper.GetViper())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logging.New(cfg.Debug), nil
}

// Bundle is an open database with the IAM collaborators built on it.
type Bundle struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Metrics      *telemetry.Metrics
	DB           *bun.DB
	Enforcer     casbin.IEnforcer
	Catalog      repository.ResourceCatalog
	Users        repository.UserRepository
	Members      repository.MembershipStore
	Synchronizer *iam.Synchronizer
	Assigner     *iam.Assigner
	Provisioner  *iam.Provisioner
}

// Open connects to the configured database and wires the IAM services.
// The schema must already be migrated. metrics may be nil.
func Open(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) (*Bundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxConnections(cfg.MaxDBConnections))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enforcer, err := auth.InitEnforcer(db)
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to initialize casbin enforcer: %w", err)
	}

	b := &Bundle{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		DB:       db,
		Enforcer: enforcer,
		Catalog:  repository.NewBunResourceCatalog(db),
		Users:    repository.NewBunUserRepository(db),
		Members:  repository.NewBunMembershipStore(db),
	}
	b.Synchronizer = iam.NewSynchronizer(iam.SynchronizerDeps{
		Store:    repository.NewBunPermissionStore(db),
		Catalog:  b.Catalog,
		Reloader: enforcer,
		Metrics:  metrics,
		Logger:   logger,
	})
	b.Assigner = iam.NewAssigner(iam.AssignerDeps{
		Members:  b.Members,
		Reloader: enforcer,
		Metrics:  metrics,
		Logger:   logger,
	})
	b.Provisioner = iam.NewProvisioner(b.Users, b.Assigner, logger)
	return b, nil
}

// Bootstrap registers every application component and runs the final
// reconcile. An error here means the permission store is unusable and
// the process must not serve requests.
func (b *Bundle) Bootstrap(ctx context.Context) (iam.SyncReport, error) {
	boot := iam.NewBootstrap(b.Catalog, b.Synchronizer, b.Logger)
	if err := boot.RegisterAll(ctx, iam.DefaultComponents()...); err != nil {
		return iam.SyncReport{}, err
	}
	return boot.Finalize(ctx)
}

// Close releases the database connection.
func (b *Bundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	if err := bunx.Close(b.DB); err != nil {
		b.Logger.Warn().Err(err).Msg("close database")
	}
}

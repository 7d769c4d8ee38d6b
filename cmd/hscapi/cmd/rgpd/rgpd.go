package rgpd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

var dryRun bool

// RgpdCmd is the parent command for data retention jobs.
var RgpdCmd = &cobra.Command{
	Use:   "rgpd",
	Short: "RGPD retention: anonymize inactive patients and purge old logs",
}

func init() {
	RgpdCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	RgpdCmd.AddCommand(anonymizeCmd)
	RgpdCmd.AddCommand(purgeCmd)
}

// withRetention opens the database and hands a retention repository to fn.
// These jobs do not touch permissions, so no enforcer is built.
func withRetention(fn func(cfg *config.Config, logger zerolog.Logger, repo repository.RetentionRepository) error) error {
	cfg, logger, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxConnections(cfg.MaxDBConnections))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)
	return fn(cfg, logger, repository.NewBunRetentionRepository(db))
}

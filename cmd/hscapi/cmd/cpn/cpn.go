package cpn

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/cpn"
)

// CpnCmd groups antenatal care (CPN) batch jobs.
var CpnCmd = &cobra.Command{
	Use:   "cpn",
	Short: "Antenatal care batch jobs",
}

var updateRiskCmd = &cobra.Command{
	Use:   "update-risk",
	Short: "Recompute the risk level of every tracked pregnancy",
	Long: `Scores each pregnancy from its risk factors and latest visit, and stores
the level (LOW, MEDIUM, HIGH) when it changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cmdutil.LoadConfig()
		if err != nil {
			return err
		}
		db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxConnections(cfg.MaxDBConnections))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		res, err := cpn.NewUpdater(repository.NewBunCPNRepository(db), logger).UpdateAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d pregnancies: %d updated, %d without visits\n",
			res.Scanned, res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	CpnCmd.AddCommand(updateRiskCmd)
}

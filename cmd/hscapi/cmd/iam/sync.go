package iam

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile role groups and grants with the role registry",
	Long: `Registers every component's resource types, then makes each role
group's grants exactly match the registry. Running it twice in a row
changes nothing the second time.

Example:
  hscapi iam sync
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		report, err := bundle.Bootstrap(cmd.Context())
		if err != nil {
			return fmt.Errorf("permission reconcile failed: %w", err)
		}
		cmdutil.PrintSyncReport(cmd.OutOrStdout(), report)
		return nil
	},
}

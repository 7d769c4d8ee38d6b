package rgpd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/retention"
)

var years int

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Anonymize patients with no activity for the retention period",
	Long: `Scrubs identifying fields of every patient whose last activity is older
than --years (default: retention.years). Each anonymization writes an
audit entry in the same transaction.

Example:
  hscapi rgpd anonymize --years 3 --dry-run
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRetention(func(cfg *config.Config, logger zerolog.Logger, repo repository.RetentionRepository) error {
			y := years
			if y == 0 {
				y = cfg.Retention.Years
			}
			res, err := retention.NewAnonymizer(repo, logger).Run(cmd.Context(), y, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.DryRun {
				pterm.Warning.Printfln("dry run: %d patient(s) inactive since %s would be anonymized",
					res.Candidates, res.Cutoff.Format("2006-01-02"))
				return nil
			}
			fmt.Fprintf(out, "Anonymized %d of %d patient(s) inactive since %s\n",
				res.Anonymized, res.Candidates, res.Cutoff.Format("2006-01-02"))
			return nil
		})
	},
}

func init() {
	anonymizeCmd.Flags().IntVar(&years, "years", 0, "Inactivity period in years (default: retention.years)")
}

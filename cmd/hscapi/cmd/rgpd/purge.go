package rgpd

import (
	"fmt"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/retention"
)

var (
	notificationsDays int
	smsDays           int
	auditDays         int
	includeAudit      bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete notifications, SMS logs and (optionally) audit logs past their window",
	Long: `Deletes rows older than each table's retention window. Audit logs are
only purged with --include-audit. A window of 0 skips that table.

Example:
  hscapi rgpd purge --sms-days 90 --include-audit --dry-run
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRetention(func(cfg *config.Config, logger zerolog.Logger, repo repository.RetentionRepository) error {
			w := windows(cmd, cfg.Retention)
			counts, err := retention.NewPurger(repo, logger).Run(cmd.Context(), w, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				pterm.Warning.Println("dry run: nothing was deleted")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tCUTOFF\tROWS")
			for _, c := range counts {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Table, c.Cutoff.Format("2006-01-02"), c.Rows)
			}
			return tw.Flush()
		})
	},
}

// windows starts from the configured retention and applies the flags the
// user actually set.
func windows(cmd *cobra.Command, rc config.RetentionConfig) retention.PurgeWindows {
	w := retention.PurgeWindows{
		NotificationsDays: rc.NotificationsDays,
		SMSDays:           rc.SMSDays,
		AuditDays:         rc.AuditDays,
		IncludeAudit:      includeAudit,
	}
	flags := cmd.Flags()
	if flags.Changed("notifications-days") {
		w.NotificationsDays = notificationsDays
	}
	if flags.Changed("sms-days") {
		w.SMSDays = smsDays
	}
	if flags.Changed("audit-days") {
		w.AuditDays = auditDays
	}
	return w
}

func init() {
	defaults := retention.DefaultPurgeWindows()
	purgeCmd.Flags().IntVar(&notificationsDays, "notifications-days", defaults.NotificationsDays, "Notification retention in days")
	purgeCmd.Flags().IntVar(&smsDays, "sms-days", defaults.SMSDays, "SMS log retention in days")
	purgeCmd.Flags().IntVar(&auditDays, "audit-days", defaults.AuditDays, "Audit log retention in days")
	purgeCmd.Flags().BoolVar(&includeAudit, "include-audit", false, "Also purge audit logs")
}

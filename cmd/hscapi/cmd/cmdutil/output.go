package cmdutil

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

// PrintSyncReport writes one line per role group and any skipped grants.
func PrintSyncReport(w io.Writer, report iam.SyncReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tCREATED\tRELABELED\tEXPECTED\tADDED\tREMOVED")
	for _, g := range report.Groups {
		fmt.Fprintf(tw, "%s\t%t\t%t\t%d\t%d\t%d\n", g.Group, g.Created, g.Relabeled, g.Expected, g.Added, g.Removed)
	}
	_ = tw.Flush()

	added, removed := report.Totals()
	if !report.Changed() {
		fmt.Fprintln(w, "Permissions already up to date")
	} else {
		fmt.Fprintf(w, "Permissions reconciled: %d added, %d removed\n", added, removed)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s for %s (resource type not registered)\n", s.Grant.Codename(), s.Group)
	}
}

package iam

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	iamsvc "github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

var verboseRoles bool

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List registry roles with expected and stored grants",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tLABEL\tEXPECTED\tSTORED\tDRIFT")
		for _, def := range auth.Definitions() {
			current, err := iamsvc.GroupGrants(bundle.Enforcer, string(def.Code))
			if err != nil {
				return fmt.Errorf("read grants for %s: %w", def.Code, err)
			}
			missing, extra := drift(def.Expected(), current)
			status := "ok"
			if len(missing)+len(extra) > 0 {
				status = fmt.Sprintf("+%d/-%d", len(missing), len(extra))
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", def.Code, def.Label, len(def.Expected()), len(current), status)
			if verboseRoles {
				for _, c := range missing {
					fmt.Fprintf(w, "\t\tmissing\t%s\t\n", c)
				}
				for _, c := range extra {
					fmt.Fprintf(w, "\t\textra\t%s\t\n", c)
				}
			}
		}
		return w.Flush()
	},
}

// drift returns the expected codenames absent from current, and the
// current codenames the registry does not expect.
func drift(expected, current []auth.Grant) (missing, extra []string) {
	want := make(map[string]bool, len(expected))
	for _, g := range expected {
		want[g.Codename()] = true
	}
	have := make(map[string]bool, len(current))
	for _, g := range current {
		have[g.Codename()] = true
		if !want[g.Codename()] {
			extra = append(extra, g.Codename())
		}
	}
	for c := range want {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return missing, extra
}

func init() {
	rolesCmd.Flags().BoolVarP(&verboseRoles, "verbose", "v", false, "List missing and extra grants per role")
}

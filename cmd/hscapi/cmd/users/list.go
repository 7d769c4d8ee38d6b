package users

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff accounts with their role and groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		ctx := cmd.Context()
		users, err := bundle.Users.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE\tGROUPS\tSUPERUSER\tACTIVE\tLAST_LOGIN")
		for _, u := range users {
			groups, err := bundle.Members.GroupsForUser(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("failed to list groups for %s: %w", u.Username, err)
			}
			lastLogin := "-"
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
				u.Username, u.Role, strings.Join(groups, ","), u.IsSuperuser, u.IsActive, lastLogin)
		}
		return w.Flush()
	},
}

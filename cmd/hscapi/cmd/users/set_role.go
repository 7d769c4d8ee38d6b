package users

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change a user's role",
	Long: `Moves the user out of every role group and into the group matching the
new role, in one transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}
		role, err := parseRole(roleFlag)
		if err != nil {
			return err
		}

		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		user, err := bundle.Users.GetByUsername(cmd.Context(), usernameFlag)
		if err != nil {
			return fmt.Errorf("failed to find user %q: %w", usernameFlag, err)
		}
		asg, err := bundle.Assigner.AssignRole(cmd.Context(), user.ID, role)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s: %s → %s\n", user.Username, asg.PreviousRole, asg.Role)
		if asg.Inconsistent {
			fmt.Fprintf(out, "  repaired membership (was in %v)\n", asg.PreviousGroups)
		}
		if asg.GroupMissing {
			fmt.Fprintln(out, "  role group missing, run 'hscapi iam sync'")
		}
		return nil
	},
}

package users

import (
	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
)

// UsersCmd is the parent command for staff account management
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage staff accounts",
	Long:  `Commands for creating staff accounts and changing their role directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	createCmd.Flags().StringVar(&usernameFlag, "username", "", "Login name of the user (required)")
	createCmd.Flags().StringVar(&fullNameFlag, "full-name", "", "Display name of the user")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&roleFlag, "role", "", "Role code, e.g. MEDECIN (required)")
	createCmd.Flags().BoolVar(&superuserFlag, "superuser", false, "Grant every permission regardless of role")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	setRoleCmd.Flags().StringVar(&usernameFlag, "username", "", "Login name of the user (required)")
	setRoleCmd.Flags().StringVar(&roleFlag, "role", "", "New role code (required)")

	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(setRoleCmd)
	UsersCmd.AddCommand(listCmd)
}

func openBundle() (*cmdutil.Bundle, error) {
	cfg, logger, err := cmdutil.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cmdutil.Open(cfg, logger, nil)
}

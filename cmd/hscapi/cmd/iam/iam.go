package iam

import (
	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
)

// IamCmd is the parent command for role group and grant maintenance.
var IamCmd = &cobra.Command{
	Use:   "iam",
	Short: "Inspect and reconcile role groups and grants",
	Long: `Commands for keeping the stored role groups and grants in step with
the built-in role registry.`,
}

func init() {
	IamCmd.AddCommand(syncCmd)
	IamCmd.AddCommand(rolesCmd)
}

func openBundle() (*cmdutil.Bundle, error) {
	cfg, logger, err := cmdutil.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cmdutil.Open(cfg, logger, nil)
}

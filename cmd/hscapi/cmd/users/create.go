package users

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

var (
	emailFlag     string
	usernameFlag  string
	fullNameFlag  string
	passwordFlag  string
	roleFlag      string
	superuserFlag bool
	stdinFlag     bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a staff account, or reset its password and role",
	Long: `Creates the user when the username is new. For an existing username the
password is reset and the role reassigned. Either way the user ends up in
exactly the role group matching --role.

Example:
  hscapi users create --username dr.kone --role MEDECIN --stdin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}
		role, err := parseRole(roleFlag)
		if err != nil {
			return err
		}
		if emailFlag != "" {
			if _, err := mail.ParseAddress(emailFlag); err != nil {
				return fmt.Errorf("invalid email format: %w", err)
			}
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		res, err := bundle.Provisioner.EnsureUser(cmd.Context(), iam.NewUser{
			Username:    usernameFlag,
			Password:    password,
			Role:        role,
			FullName:    fullNameFlag,
			Email:       emailFlag,
			IsSuperuser: superuserFlag,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Created {
			fmt.Fprintln(out, "User created successfully!")
		} else {
			fmt.Fprintln(out, "User updated: password reset and role reassigned")
		}
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "User ID: %s\n", res.User.ID)
		fmt.Fprintf(out, "Username: %s\n", res.User.Username)
		fmt.Fprintf(out, "Role: %s (%s)\n", role, role.Label())
		if res.Assignment.GroupMissing {
			fmt.Fprintln(out, "Group: none (role group missing, run 'hscapi iam sync')")
		} else {
			fmt.Fprintf(out, "Group: %s\n", res.Assignment.Group)
		}
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}

func parseRole(s string) (auth.Role, error) {
	if s == "" {
		return "", fmt.Errorf("--role flag is required")
	}
	role, ok := auth.ParseRole(s)
	if !ok {
		codes := make([]string, 0, len(auth.RoleCodes()))
		for _, c := range auth.RoleCodes() {
			codes = append(codes, string(c))
		}
		return "", fmt.Errorf("invalid role %q\nValid roles are: %s", s, strings.Join(codes, ", "))
	}
	return role, nil
}

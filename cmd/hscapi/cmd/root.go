package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cmdutil"
	"github.com/horizonsante/hsc/cmd/hscapi/cmd/cpn"
	"github.com/horizonsante/hsc/cmd/hscapi/cmd/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/cmd/rgpd"
	"github.com/horizonsante/hsc/cmd/hscapi/cmd/users"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hscapi",
	Short: "Horizon Santé clinic API server",
	Long: `hscapi serves the clinic API and carries the maintenance commands:
database migrations, permission sync, user provisioning, RGPD retention
and CPN risk scoring.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}
		var err error
		cfg, logger, err = cmdutil.LoadConfig()
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("db-url", "", "Database connection URL (env: HSC_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: HSC_SERVER_ADDR)")
	flags.String("server-url", "", "Public base URL, used as token audience (env: HSC_SERVER_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: HSC_DEBUG)")

	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", flags.Lookup("server-addr"))
	_ = viper.BindPFlag("server_url", flags.Lookup("server-url"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))

	rootCmd.AddCommand(iam.IamCmd)
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(rgpd.RgpdCmd)
	rootCmd.AddCommand(cpn.CpnCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/config"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

var (
	logMode    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sandbox-provisioner",
	Short: "Sandbox provisioner",
	Long:  `Provisions ephemeral sandboxes running an instrumented application and relays calls to them`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch logMode {
		case "debug", "pretty", "info", "prod", "test":
			logger.InitWithMode(logger.LogMode(logMode))
		default:
			logger.InitWithMode(logger.LogModePretty)
		}
		config.GetConfigManager().SetConfigPath(configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "Path to a .env or YAML config file")

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newCallCmd())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

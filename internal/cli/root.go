package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dealwatcher/internal/app"
	"dealwatcher/internal/config"
	"dealwatcher/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	runOnce   bool
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "dealwatcher",
	Short: "Watch retailer listings for deep discounts and notify about new deals",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
	// The bare binary runs the watcher; --once does a single cycle.
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Once: runOnce})
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single check cycle and exit")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dinidesk_backend/pkg/config"
	"dinidesk_backend/pkg/logger"
)

// cli carries the loaded configuration from the root command to its
// subcommands.
type cli struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "dinidesk",
		Short:         "DiniDesk back office: streaming accounts, sales and reports",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), c.configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger.Setup(cfg.Log)
			c.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default ./config.yaml when present)")

	rootCmd.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
		newUserCmd(c),
		newJobsCmd(c),
		newReportCmd(c),
		newLoginCmd(c),
		newWhoamiCmd(c),
	)
	return rootCmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rsmetrics/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// init writes a config file, so it must not require one
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.loadEnv() },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file from the defaults and the RSMETRICS_* environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if _, err := config.InitConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Default configuration written to: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:               "show",
		Short:             "Print the effective configuration after file, environment and flag overrides",
		Args:              cobra.NoArgs,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Write(a.out)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/breakdown/internal/cli"
	"github.com/sgx-labs/breakdown/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage breakdown configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .breakdown/config.toml for the site",
		RunE: func(cmd *cobra.Command, args []string) error {
			site := config.SitePath()
			if site == "" {
				return config.ErrNoSite
			}
			path := config.ConfigFilePath(site)
			if _, err := os.Stat(path); err == nil && !force {
				return userError(fmt.Sprintf("%s already exists", cli.ShortenHome(path)),
					"Use --force to overwrite it")
			}
			if err := config.GenerateConfig(site); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			cli.Banner(w, Version)
			cli.Box(w, []string{
				"Config written",
				cli.ShortenHome(path),
				"",
				"Next: breakdown reindex",
			})
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if warn := config.ConfigWarning(); warn != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%sWARNING:%s %s\n", cli.Yellow, cli.Reset, warn)
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.ShowConfig())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print path to config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if active := config.FindConfigFile(); active != "" {
				fmt.Fprintln(cmd.OutOrStdout(), active)
				return nil
			}
			site := config.SitePath()
			if site == "" {
				return config.ErrNoSite
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigFilePath(site))
			return nil
		},
	})

	return cmd
}

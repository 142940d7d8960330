package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/passvault/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save the effective configuration",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigWriteCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			a.printf("%s", data)
			if a.cfg.MasterSecret != "" {
				a.printf("# master_secret is set (not shown)\n")
			}
			return nil
		},
	}
}

func newConfigWriteCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Save the effective configuration to a file",
		Long: `Save the effective configuration (defaults, file, environment and flags)
as YAML with mode 0600. The master secret is never written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.UserConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.Write(a.cfg, path); err != nil {
				return err
			}
			a.printf("Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "Destination (default: user config dir)")
	return cmd
}

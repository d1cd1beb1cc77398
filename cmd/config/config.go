// Package config writes and checks configuration files.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/transformer-inspect/internal/conf"
)

const defaultConfigFile = "config.yaml"

// Command creates the config command. configPath is the root --config flag.
func Command(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand(configPath), validateCommand(configPath))
	return cmd
}

func initCommand(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := targetPath(*configPath, args)
			if err := conf.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func validateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Load a configuration with environment overrides and report problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if len(args) == 1 {
				path = args[0]
			}
			settings, err := conf.LoadWith(viper.New(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (database: %s, listen: %s)\n",
				settings.Database.Type, settings.WebServer.Listen)
			return nil
		},
	}
}

func targetPath(configPath string, args []string) string {
	switch {
	case len(args) == 1:
		return args[0]
	case configPath != "":
		return configPath
	default:
		return defaultConfigFile
	}
}

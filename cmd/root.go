package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/transformer-inspect/cmd/config"
	"github.com/tphakala/transformer-inspect/cmd/detections"
	"github.com/tphakala/transformer-inspect/cmd/migrate"
	"github.com/tphakala/transformer-inspect/cmd/serve"
	"github.com/tphakala/transformer-inspect/cmd/summary"
	"github.com/tphakala/transformer-inspect/internal/conf"
)

// RootCommand creates and returns the root command. Subcommands share
// settings, which PersistentPreRunE fills before any of them runs.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "transformer-inspect",
		Short:         "Transformer thermal inspection backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configPath); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	configCmd := configcmd.Command(&configPath)

	rootCmd.AddCommand(
		serve.Command(settings),
		migrate.Command(settings),
		detections.Command(settings),
		summary.Command(settings),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Writing a config must work when the current one is broken.
		for c := cmd; c != nil; c = c.Parent() {
			if c == configCmd {
				return nil
			}
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configPath *string) error {
	rootCmd.PersistentFlags().StringVarP(configPath, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/transformer-inspect, /etc/transformer-inspect)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/inovacc/gitcove/internal/application"
	"github.com/inovacc/gitcove/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/ini.v1"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage gitcove configuration",
	Long: `Commands for managing the gitcove ini configuration.

Available Commands:
  init    Write the effective configuration to disk
  show    Print the effective configuration`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := effectiveConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration written to %s\n", path)

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := effectiveConfigPath()
		if err != nil {
			return err
		}

		file := ini.Empty()
		if err := file.ReflectFrom(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		fmt.Printf("; %s\n", path)

		_, err = file.WriteTo(os.Stdout)

		return err
	},
}

func effectiveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}

	return application.DefaultConfigPath()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}

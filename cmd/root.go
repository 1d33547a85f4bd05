package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inovacc/gitcove/internal/application"
	"github.com/inovacc/gitcove/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath   string
	rootOverride string
	portOverride int
	storeBackend string

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "A self-hosted Git Smart HTTP server",
	Long: `gitcove serves bare Git repositories over the Git Smart HTTP protocol and
manages their lifecycle: create, import, archive and delete, with metadata
kept in an embedded store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		cfg = loaded
		slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the ini configuration file")
	flags.StringVar(&rootOverride, "root", "", "Directory holding the bare repositories")
	flags.IntVar(&portOverride, "port", 0, "HTTP port")
	flags.StringVar(&storeBackend, "store", "", "Metadata store backend (sqlite or bolt)")
}

// loadConfig reads the ini file and applies the flags that were set.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := application.DefaultConfigPath()
		if err != nil {
			return nil, err
		}

		path = p
	}

	loaded, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("root") {
		abs, err := filepath.Abs(rootOverride)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root: %w", err)
		}

		loaded.Repositories.Root = abs
	}

	if flags.Changed("port") {
		loaded.Server.Port = portOverride
	}

	if flags.Changed("store") {
		loaded.Storage.Backend = storeBackend
	}

	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return loaded, nil
}

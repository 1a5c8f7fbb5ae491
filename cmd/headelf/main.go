package main

import (
	"context"
	"fmt"
	"os"

	"github.com/headelf/headelf/pkg/config"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfg is loaded once before any subcommand runs.
	cfg             *config.Config
	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "headelf",
	Short: "Git-backed persistence for executive decisions",
	Long: `HeadElf records executive decisions, user contexts and analytics as JSON files
under data/ and keeps an audit trail of every write in git.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(viper.GetViper()); err != nil {
			return err
		}
		if noGit, _ := cmd.Flags().GetBool("no-git"); noGit {
			viper.Set("git.enabled", false)
		}

		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Configure(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
			return err
		}

		shutdown, err := initTracing(cmd.Context(), cfg)
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing, continuing without it")
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if err := shutdownTracing(cmd.Context()); err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to flush traces")
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// openStore opens the store at the configured root.
func openStore() (*persistence.Store, error) {
	var opts []persistence.Option
	if !cfg.Git.Enabled {
		opts = append(opts, persistence.WithoutAudit())
	}
	return persistence.New(cfg.Root, opts...)
}

// mustOpenStore opens the store or exits.
func mustOpenStore() *persistence.Store {
	store, err := openStore()
	if err != nil {
		presenter.Error(err, "failed to open decision store")
		os.Exit(1)
	}
	return store
}

func main() {
	rootCmd.PersistentFlags().String("root", "", "Repository root holding the data/ directory (default is the current directory)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().Bool("no-git", false, "Do not record writes in git")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	cobra.OnInitialize(func() {
		if quiet, _ := rootCmd.PersistentFlags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}
	})

	rootCmd.AddCommand(withTracing(initCmd))
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(withTracing(analyticsCmd))
	rootCmd.AddCommand(extensionCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

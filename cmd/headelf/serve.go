package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/headelf/headelf/pkg/api"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only dashboard API",
	Long: `Start a local HTTP server exposing decisions, user contexts, analytics,
extensions and skills as JSON under /api.

The server listens on http://127.0.0.1:8765 unless configured otherwise.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		runServeCommand(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind the API server to")
	serveCmd.Flags().Int("port", 8765, "Port to bind the API server to")

	viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}

// runServeCommand starts the API server and blocks until interrupted
func runServeCommand(ctx context.Context) {
	store := mustOpenStore()
	registry := loadSkillRegistry(ctx)

	server, err := api.NewServer(store, registry, cfg.Serve)
	if err != nil {
		presenter.Error(err, "failed to create API server")
		os.Exit(1)
	}

	if cfg.Serve.Port < 1024 {
		logger.G(ctx).WithField("port", cfg.Serve.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}
	logger.G(ctx).WithFields(logrus.Fields{
		"host": cfg.Serve.Host,
		"port": cfg.Serve.Port,
		"root": cfg.Root,
	}).Info("Starting API server")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	presenter.Success(fmt.Sprintf("API server starting on http://%s", cfg.Serve.Addr()))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := server.Start(ctx); err != nil {
		logger.G(ctx).WithError(err).Error("API server error")
		presenter.Error(err, "API server failed")
		os.Exit(1)
	}

	presenter.Info("API server stopped")
}

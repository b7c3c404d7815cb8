package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roofdocs/nexus/internal/httpserve"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := server.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		if err := a.Training.Seed(); err != nil {
			return fmt.Errorf("failed to seed training content: %w", err)
		}
		a.StartSessionCleaner()

		e := httpserve.NewRouter(a)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			addr := "0.0.0.0:" + cfg.App.Port
			logger.Info("Starting server", "addr", addr, "env", cfg.App.Environment, "version", cfg.Build.Version)
			if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
				logger.Error("Server stopped", "error", err)
				sigs <- syscall.SIGTERM
			}
		}()

		sig := <-sigs
		logger.Info("Shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return a.Shutdown()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

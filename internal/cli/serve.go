package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aureeture/mentor_sessions/internal/app"
	"github.com/aureeture/mentor_sessions/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Load configuration, connect to Postgres (and Redis when configured)
and serve the HTTP API until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting mentor sessions service",
		zap.String("environment", cfg.Environment),
		zap.String("version", version),
	)

	pool, err := app.Connect(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrateOnStart {
		if err := migrateUp(ctx, pool, logger); err != nil {
			return err
		}
	}

	application, err := app.New(ctx, cfg, pool, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer application.Close()

	return application.Run(ctx)
}

func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

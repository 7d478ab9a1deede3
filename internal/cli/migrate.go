package cli

import (
	"context"
	"fmt"

	"github.com/aureeture/mentor_sessions/internal/app"
	"github.com/aureeture/mentor_sessions/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withMigrator(func(ctx context.Context, mg *app.Migrator) error {
		return mg.Run(ctx)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every migration",
	RunE: withMigrator(func(ctx context.Context, mg *app.Migrator) error {
		return mg.Status(ctx)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: withMigrator(func(ctx context.Context, mg *app.Migrator) error {
		version, err := mg.Version(ctx)
		if err != nil {
			return err
		}
		pending, err := mg.Pending(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d (pending: %d)\n", version, pending)
		return nil
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

func withMigrator(fn func(ctx context.Context, mg *app.Migrator) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
		defer logger.Sync()

		ctx := background(cmd)

		pool, err := app.Connect(ctx, cfg.GetDBDSN())
		if err != nil {
			return err
		}
		defer pool.Close()

		mg, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		defer mg.Close()

		return fn(ctx, mg)
	}
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	mg, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return mg.Run(ctx)
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/weathertracker/internal/config"
	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/store"
	"github.com/i474232898/weathertracker/internal/store/postgres"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "weathertracker",
		Short:         "Record weather measurements and compute statistics over them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCommand(&envFile))
	root.AddCommand(newMigrateCommand(&envFile))
	return root
}

func newMigrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := postgres.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			pg, err := postgres.New(db)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

// openStore picks Postgres when a DSN is configured and the in-memory store otherwise.
// The returned close function is never nil.
func openStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, collector *metrics.Collector) (store.Backend, func() error, error) {
	opts := []store.Option{store.WithLogger(logger), store.WithMetrics(collector)}

	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store", zap.Int("maxHistory", cfg.StoreMaxHistory))
		return store.NewMemoryStore(cfg.StoreMaxHistory, opts...), func() error { return nil }, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg, err := postgres.New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}

	logger.Info("using postgres store")
	return pg, pg.Close, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/circle/internal/adapters/repository"
	"github.com/okian/circle/internal/config"
	"github.com/okian/circle/internal/seed"
	"github.com/okian/circle/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo user and contacts into the configured store",
	Long: "Seed creates the demo user with groups, activities, contacts and interactions. " +
		"The store is taken from CIRCLE_STORE_DRIVER and CIRCLE_STORE_DSN. A store that already holds contacts is left untouched.",
	RunE: runSeed,
}

var seedWorkers int

func init() {
	seedCmd.Flags().IntVar(&seedWorkers, "workers", 4, "Concurrent inserts per seeding stage")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.StoreDriver == repository.DriverMemory {
		return fmt.Errorf("seeding the %q driver does not persist; choose sqlite or pgx", cfg.StoreDriver)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, cfg.StoreConnectAttempts)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	res, err := seed.New(store,
		seed.WithWorkers(seedWorkers),
		seed.WithLogger(logger.Get().Named("seed")),
	).Run(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "Store already seeded for %s (user %s)\n", seed.DemoEmail, res.UserID)
		return nil
	}
	fmt.Fprintf(out, "Seeded %s (user %s): %d groups, %d activities, %d contacts, %d interactions\n",
		seed.DemoEmail, res.UserID, len(res.Groups), len(res.Activities), len(res.Contacts), res.Interactions)
	return nil
}

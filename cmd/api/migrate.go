package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"collabhub-realtime/internal/config"
	"collabhub-realtime/internal/pkg/chat/persistence/repository/adapter"
)

func migrateCommand() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the conversation store schema",
		Flags: append(storeFlags(&cfg), logFlags(&cfg)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.ConfigureLogging(); err != nil {
				return err
			}
			ctx = config.WithContext(ctx, &cfg)

			store, err := adapter.Open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info("Running migrations...", "store", cfg.StoreType)
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}

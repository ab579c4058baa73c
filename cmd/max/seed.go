package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/seed"
	"github.com/ayushsreejith06/max/internal/store"
)

var seedCmd = &cobra.Command{
	Use:               "seed <file.yaml>",
	Short:             "Load sectors and agents into the database",
	GroupID:           "system",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("MAX_DATABASE_URL is required to seed")
		}
		st, err := openStore(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if err != nil {
			return err
		}
		defer st.Close()
		return applySeed(context.Background(), st, args[0])
	},
}

func applySeed(ctx context.Context, st store.Store, path string) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, st, f, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("applying seed %s: %w", path, err)
	}
	if jsonOutput {
		printJSON(res)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Seeded %s: %d sectors created, %d updated; %d agents created, %d updated\n",
		path, res.SectorsCreated, res.SectorsUpdated, res.AgentsCreated, res.AgentsUpdated)
	return nil
}

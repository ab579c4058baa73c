package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/export"
)

var exportCmd = &cobra.Command{
	Use:               "export",
	Short:             "Export sectors, agents and discussions as JSONL",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	Long: `Export sectors, agents and discussions as JSONL.

By default the snapshot is written to stdout or --output. With --push it is
sent to the configured S3 and git destinations instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("MAX_DATABASE_URL is required to export")
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if push, _ := cmd.Flags().GetBool("push"); push {
			dests := exportDestinations(ctx, cfg, logger)
			if len(dests) == 0 {
				return fmt.Errorf("no export destinations configured (set MAX_EXPORT_S3_BUCKET or MAX_EXPORT_GIT_REPO)")
			}
			sched := export.NewScheduler(st, dests, 0, logger)
			if res := sched.ExportOnce(ctx); res.Failed > 0 {
				return fmt.Errorf("export reached %d of %d destinations", res.Written, len(dests))
			}
			return nil
		}

		var w io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" && path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}
		return export.ExportJSONL(ctx, st, w)
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	exportCmd.Flags().Bool("push", false, "send to the configured S3 and git destinations")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/ayushsreejith06/max/internal/config"
	"github.com/ayushsreejith06/max/internal/engine"
	"github.com/ayushsreejith06/max/internal/events"
	"github.com/ayushsreejith06/max/internal/execution"
	"github.com/ayushsreejith06/max/internal/export"
	"github.com/ayushsreejith06/max/internal/gate"
	"github.com/ayushsreejith06/max/internal/hooks"
	"github.com/ayushsreejith06/max/internal/market"
	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
	"github.com/ayushsreejith06/max/internal/proposal"
	"github.com/ayushsreejith06/max/internal/proposal/bedrock"
	"github.com/ayushsreejith06/max/internal/proposal/openai"
	"github.com/ayushsreejith06/max/internal/server"
	"github.com/ayushsreejith06/max/internal/store"
	"github.com/ayushsreejith06/max/internal/store/memory"
	"github.com/ayushsreejith06/max/internal/store/postgres"
	"github.com/ayushsreejith06/max/internal/telemetry"
)

const instrumentationName = "github.com/ayushsreejith06/max"

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the MAX server",
	GroupID:           "system",
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tuning, err := config.LoadTuning(cfg.TuningFile)
		if err != nil {
			return err
		}

		otelCfg, err := telemetry.LoadConfig()
		if err != nil {
			return err
		}
		shutdownTelemetry, err := telemetry.Init(ctx, otelCfg)
		if err != nil {
			return err
		}
		if otelCfg.Enabled() {
			logger.Info("telemetry enabled", "endpoint", otelCfg.Endpoint)
		}

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("seed"); path != "" {
			if err := applySeed(ctx, st, path); err != nil {
				st.Close()
				return err
			}
		}

		// Events go to SSE subscribers always and to NATS when configured.
		hub := server.NewHub()
		pubs := []events.Publisher{hub}
		if cfg.NATSURL != "" {
			natsPub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			pubs = append(pubs, natsPub)
			logger.Info("NATS events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("NATS events disabled (MAX_NATS_URL not set)")
		}
		publisher := events.NewFanout(pubs...)

		source, err := buildSource(ctx, cfg)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		logger.Info("proposal source", "provider", cfg.ProposalProvider, "retries", cfg.ProposalRetries)

		tracker := presence.New()
		tracker.StartReaper(&presence.ReaperConfig{
			IdleThreshold: cfg.PresenceIdle,
			OnIdle: func(agentID, sectorID string) {
				_ = publisher.Publish(context.Background(), events.TopicAgentStatus, events.AgentStatus{
					AgentID:  agentID,
					SectorID: sectorID,
					Status:   model.AgentOffline,
					LastSeen: time.Now().UTC(),
				})
			},
		})

		backlog := execution.New(st, publisher)
		eng := engine.New(st, source, backlog, tuning,
			engine.WithPublisher(publisher),
			engine.WithPresence(tracker),
			engine.WithLogger(logger),
			engine.WithMeter(otel.Meter(instrumentationName)),
			engine.WithTracer(otel.Tracer(instrumentationName)),
		)
		g := gate.New(st, tuning.Gate,
			gate.WithPublisher(publisher),
			gate.WithLogger(logger),
		)

		srv := server.New(st, eng, g, hub)
		srv.Presence = tracker

		hooksCtx, hooksCancel := context.WithCancel(context.Background())
		defer hooksCancel()
		if cfg.ExecutionHook != "" {
			h := hooks.NewHandler(backlog, cfg.ExecutionHook, cfg.ExecutionHookTimeout, logger)
			go func() {
				if err := h.StartSubscriber(hooksCtx, hub); err != nil {
					logger.Error("execution hook subscriber error", "err", err)
				}
			}()
		}

		var sweeper *engine.Sweeper
		if cfg.SweepInterval > 0 {
			sweeper = engine.NewSweeper(eng, cfg.SweepInterval, logger)
			sweeper.Start()
			logger.Info("sweeper started", "interval", cfg.SweepInterval, "pending_timeout", tuning.Rounds.PendingTimeout)
		}

		var sim *market.Simulator
		if cfg.MarketInterval > 0 {
			sim = market.New(st, cfg.MarketInterval,
				market.WithPublisher(publisher),
				market.WithLogger(logger),
			)
			sim.Start(cfg.MarketBackfill)
			logger.Info("market simulator started", "interval", cfg.MarketInterval, "backfill", cfg.MarketBackfill)
		}

		var scheduler *export.Scheduler
		if cfg.ExportInterval > 0 {
			if dests := exportDestinations(ctx, cfg, logger); len(dests) > 0 {
				scheduler = export.NewScheduler(st, dests, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			}
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "auth", cfg.AuthToken != "")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		hooksCancel()
		if sweeper != nil {
			sweeper.Stop()
		}
		if sim != nil {
			sim.Stop()
			logger.Info("market simulator stopped")
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}
		tracker.Stop()

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore connects to Postgres when a database URL is configured and
// falls back to the in-memory store otherwise.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("MAX_DATABASE_URL not set, using in-memory store")
		return memory.New(), nil
	}
	pg, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// buildSource picks the proposal backend and wraps it with retries.
func buildSource(ctx context.Context, cfg *config.Config) (proposal.Source, error) {
	var src proposal.Source
	switch cfg.ProposalProvider {
	case config.ProviderBedrock:
		b, err := bedrock.NewFromRegion(ctx, cfg.BedrockRegion, bedrock.Options{ModelID: cfg.BedrockModel})
		if err != nil {
			return nil, fmt.Errorf("bedrock source: %w", err)
		}
		src = b
	case config.ProviderOpenAI:
		src = openai.New(openai.Options{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			JSONMode: cfg.OpenAIBaseURL == "",
		})
	default:
		return proposal.HeuristicSource{}, nil
	}
	return proposal.WithRetry(src, uint(cfg.ProposalRetries)), nil
}

// exportDestinations builds every configured export target. A target that
// fails to initialise is logged and skipped.
func exportDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []export.Destination {
	var dests []export.Destination
	if cfg.ExportS3Bucket != "" {
		d, err := export.NewS3Destination(ctx, export.S3Options{
			Bucket:   cfg.ExportS3Bucket,
			Prefix:   cfg.ExportS3Prefix,
			Region:   cfg.ExportS3Region,
			Endpoint: cfg.ExportS3Endpoint,
			History:  cfg.ExportS3History,
		})
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("S3 export enabled", "bucket", cfg.ExportS3Bucket, "prefix", cfg.ExportS3Prefix)
		}
	}
	if cfg.ExportGitRepo != "" {
		dests = append(dests, export.NewGitDestination(export.GitOptions{
			Repo:   cfg.ExportGitRepo,
			File:   cfg.ExportGitFile,
			Branch: cfg.ExportGitBranch,
			Remote: cfg.ExportGitRemote,
		}))
		logger.Info("git export enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
	}
	return dests
}

func init() {
	serveCmd.Flags().String("seed", "", "YAML file of sectors and agents to load at startup")
}

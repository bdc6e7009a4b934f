package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/early-design-app/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/early-design-app/internal/adapter/kafka"
	"github.com/couchcryptid/early-design-app/internal/adapter/pollination"
	"github.com/couchcryptid/early-design-app/internal/assets"
	"github.com/couchcryptid/early-design-app/internal/config"
	"github.com/couchcryptid/early-design-app/internal/dashboard"
	"github.com/couchcryptid/early-design-app/internal/observability"
	"github.com/couchcryptid/early-design-app/internal/scratch"
	"github.com/couchcryptid/early-design-app/internal/session"
)

const sessionSweepInterval = time.Minute

type publisher interface {
	dashboard.Publisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := scratch.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open scratch storage", "error", err)
		os.Exit(1)
	}
	logger.Info("scratch storage ready", "driver", store.Driver())

	recipe, err := assets.DefaultRecipe(cfg.DefaultRecipeFile)
	if err != nil {
		logger.Error("failed to load default recipe", "error", err)
		os.Exit(1)
	}
	inputs, err := assets.DefaultInputs(cfg.DefaultInputsFile)
	if err != nil {
		logger.Error("failed to load default inputs", "error", err)
		os.Exit(1)
	}

	client := pollination.NewClient(cfg.PollinationURL, cfg.PollinationAPIKey, cfg.ProjectOwner, cfg.ProjectName, cfg.PollinationTimeout, metrics, logger)
	cloud := pollination.WithRecipeCache(client, cfg.RecipeCacheSize)
	if cfg.PollinationAPIKey == "" {
		logger.Warn("POLLINATION_API_KEY is not set; cloud requests are anonymous")
	}

	// Activity events are feature-flagged via KAFKA_ENABLED.
	var events publisher = kafkaadapter.Nop{}
	if cfg.KafkaEnabled {
		events = kafkaadapter.NewPublisher(cfg, logger)
		logger.Info("activity events enabled", "topic", cfg.KafkaActivityTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("activity events disabled")
	}

	svc, err := dashboard.New(cloud, store, events, dashboard.Options{
		DefaultRecipe: recipe,
		DefaultInputs: inputs,
		ArtifactMatch: cfg.ArtifactFileMatch,
		EPWCacheSize:  cfg.EPWCacheSize,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	sessions := session.NewStore(cfg.SessionTTL, nil, logger, metrics)
	sessions.OnRelease(svc.Release)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, sessions, svc, logger)

	// Start HTTP server. /readyz reports 503 until the sample is warm.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go func() {
		if err := svc.Warm(ctx); err != nil {
			logger.Error("failed to warm sample weather file", "error", err)
			stop()
		}
	}()

	go sessions.Run(ctx, sessionSweepInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	svc.Close()
	if err := events.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/firewatch-analytics/internal/acquire"
	archiveadapter "github.com/couchcryptid/firewatch-analytics/internal/adapter/archive"
	firmsadapter "github.com/couchcryptid/firewatch-analytics/internal/adapter/firms"
	"github.com/couchcryptid/firewatch-analytics/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/firewatch-analytics/internal/adapter/kafka"
	"github.com/couchcryptid/firewatch-analytics/internal/analytics"
	"github.com/couchcryptid/firewatch-analytics/internal/cache"
	"github.com/couchcryptid/firewatch-analytics/internal/config"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
	"github.com/couchcryptid/firewatch-analytics/internal/scheduler"
	"github.com/couchcryptid/firewatch-analytics/internal/service"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := firmsadapter.NewClient(cfg.FIRMSAPIKey, cfg.FIRMSBaseURL, cfg.FIRMSArea, cfg.FetchTimeout, logger)

	// Archive substitution is feature-flagged via ARCHIVE_PATH.
	var archive acquire.ArchiveFetcher
	if cfg.ArchivePath != "" {
		archive = archiveadapter.NewLoader(cfg.ArchivePath, cfg.ArchiveStart, cfg.ArchiveEnd, logger)
		logger.Info("archive substitution enabled", "path", cfg.ArchivePath,
			"start", cfg.ArchiveStart, "end", cfg.ArchiveEnd)
	} else {
		logger.Info("archive substitution disabled")
	}

	manager := acquire.NewManager(client, archive, acquire.Options{
		RateLimitDelay:   cfg.RateLimitDelay,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
	}, logger, metrics)

	var publisher service.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	st := store.New(metrics)
	viewCache := cache.New(metrics, nil)

	svc := service.New(manager, st, viewCache, publisher, service.Options{
		Sources:         cfg.Sources,
		HistoricalStart: cfg.HistoricalStart,
		HistoricalEnd:   cfg.HistoricalEnd,
		CacheTTL:        cfg.CacheTTL,
		Hotspots: analytics.HotspotPolicy{
			GridSize:        cfg.HotspotGridSize,
			MediumThreshold: cfg.HotspotMediumThreshold,
			HighThreshold:   cfg.HotspotHighThreshold,
			Limit:           analytics.DefaultHotspotPolicy().Limit,
		},
	}, logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, svc, logger)
	sched := scheduler.New(svc, cfg.RefreshInterval, cfg.RefreshDays, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load the historical dataset in the background; queries return 503
	// until it lands.
	go func() {
		report, err := svc.LoadHistorical(ctx)
		if err != nil {
			logger.Error("historical load failed", "error", err)
			return
		}
		if err := sched.Start(); err != nil {
			logger.Error("scheduler start failed", "error", err)
		}
		logger.Info("serving", "records", report.Total)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

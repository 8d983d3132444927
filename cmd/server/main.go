package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/iran-tracker-data/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/iran-tracker-data/internal/adapter/kafka"
	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/filter"
	"github.com/couchcryptid/iran-tracker-data/internal/observability"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ref, err := pipeline.LoadReference(cfg)
	if err != nil {
		logger.Error("failed to load reference tables", "error", err)
		os.Exit(1)
	}

	opts := []pipeline.Option{pipeline.WithInterval(cfg.RefreshInterval)}

	// Kafka publishing is enabled by KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publishing enabled",
			"brokers", cfg.KafkaBrokers,
			"incident_topic", cfg.KafkaIncidentTopic,
			"impact_topic", cfg.KafkaImpactTopic,
		)
	} else {
		logger.Info("kafka publishing disabled")
	}

	store := pipeline.NewStore()
	r := pipeline.New(store, pipeline.SourcesFromConfig(cfg, logger), ref, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:     r,
		Snapshots: store,
		Filters:   filter.NewStore(),
		Refresher: r,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := r.Run(ctx); err != nil {
			logger.Error("refresh loop error", "error", err)
		}
	}()

	if paths := pipeline.WatchPaths(cfg); cfg.WatchLocal && len(paths) > 0 {
		w, err := source.NewWatcher(paths, logger)
		if err != nil {
			logger.Error("file watcher disabled", "error", err)
		} else {
			go func() {
				if err := r.Watch(ctx, w); err != nil {
					logger.Error("file watcher error", "error", err)
				}
			}()
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

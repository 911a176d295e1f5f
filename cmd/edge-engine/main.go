// Command edge-engine is the detection worker: it consumes odds change
// notifications from Redis Streams, runs detection per trigger, drives the
// lifecycle loops on tickers, publishes edge events, dispatches alerts, and
// serves health plus Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/alerts"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/archive"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/config"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/consumer"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/detector"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/engine"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/lifecycle"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/metrics"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/publisher"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/store/postgres"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, "edge-engine")
	logger.Info().Str("config", *configPath).Msg("edge-engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Edge store
	pg, err := postgres.NewClient(cfg.Postgres.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime.Duration,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pg.Close()

	if err := pg.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Msg("connected to postgres")

	// Streams + alert dedup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	m := metrics.New()

	consumerID := cfg.Streams.ConsumerID
	if consumerID == "" {
		if host, hostErr := os.Hostname(); hostErr == nil {
			consumerID = host
		} else {
			consumerID = "edge-engine-1"
		}
	}

	streamConsumer := consumer.NewStreamConsumer(redisClient, consumerID, cfg.Streams.ConsumerGroup, consumer.Options{
		BatchSize:    cfg.Streams.BatchSize,
		BlockTimeout: cfg.Streams.BlockTimeout.Duration,
	})
	streamPublisher := publisher.NewStreamPublisher(redisClient, cfg.Streams.Detected, cfg.Streams.Updated)

	var notifier contracts.Notifier
	if cfg.Alerts.Enabled {
		notifier = alerts.New(redisClient, alerts.Config{
			WebhookURL:    cfg.Alerts.SlackWebhookURL,
			MinConfidence: cfg.Alerts.MinConfidence,
			Signals:       cfg.Alerts.Signals,
			DedupTTL:      cfg.Alerts.DedupTTL.Duration,
		}, m, logger)
		logger.Info().Float64("min_confidence", cfg.Alerts.MinConfidence).Msg("alerts enabled")
	}

	var archiver contracts.Archiver
	if cfg.Archive.Enabled {
		archiver, err = archive.New(ctx, archive.Config{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
			Prefix:         cfg.Archive.Prefix,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build archiver")
		}
		logger.Info().Str("bucket", cfg.Archive.Bucket).Msg("archival enabled")
	}

	detectionEngine := engine.New(
		streamConsumer,
		pg,
		pg,
		cfg.Detector,
		engine.Config{
			ChangesStream: cfg.Streams.Changes,
			Debounce:      cfg.Engine.DetectionDebounce.Duration,
		},
		streamPublisher,
		notifier,
		m,
		logger,
	)

	sharp := detector.NewStaticSharpBooks(cfg.Detector.SharpBooks)
	lifecycleManager := lifecycle.NewManager(
		pg,
		pg,
		sharp,
		lifecycle.Config{
			FadingRatio: cfg.Lifecycle.FadingRatio,
			Retention:   time.Duration(cfg.Lifecycle.RetentionDays) * 24 * time.Hour,
		},
		archiver,
		streamPublisher,
		logger,
	)

	// Detection loop
	errChan := make(chan error, 1)
	go func() {
		errChan <- detectionEngine.Start(ctx)
	}()

	go runLifecycleLoops(ctx, cfg, lifecycleManager, m, logger)
	go runStatsLoop(ctx, cfg, detectionEngine, pg, m, logger)

	// Health + metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Engine.MetricsPort),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Engine.MetricsPort).Msg("metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	logger.Info().
		Str("stream", cfg.Streams.Changes).
		Str("group", cfg.Streams.ConsumerGroup).
		Str("consumer_id", consumerID).
		Msg("edge-engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error().Err(err).Msg("detection engine failed")
			cancel()
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
}

// runLifecycleLoops drives the update, expire and cleanup passes on their
// configured tickers until the context ends.
func runLifecycleLoops(
	ctx context.Context,
	cfg *config.Config,
	manager *lifecycle.Manager,
	m *metrics.EngineMetrics,
	logger zerolog.Logger,
) {
	update := time.NewTicker(cfg.Lifecycle.UpdateInterval.Duration)
	expire := time.NewTicker(cfg.Lifecycle.ExpireInterval.Duration)
	cleanup := time.NewTicker(cfg.Lifecycle.CleanupInterval.Duration)
	defer update.Stop()
	defer expire.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-update.C:
			report, err := manager.UpdateEdges(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("lifecycle update failed")
				continue
			}
			kinds := make([]string, 0, len(report.Failed))
			for _, f := range report.Failed {
				kinds = append(kinds, f.Kind)
			}
			// The manager logs the pass summary itself
			m.RecordLifecycleRun(report.Faded, report.Expired, kinds)

		case <-expire.C:
			n, err := manager.ExpireStartedGames(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("expire pass failed")
				continue
			}
			if n > 0 {
				m.LifecycleTransitions.WithLabelValues("expired").Add(float64(n))
				logger.Info().Int64("expired", n).Msg("expired edges for started games")
			}

		case <-cleanup.C:
			report, err := manager.CleanupOldEdges(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("cleanup pass failed")
				continue
			}
			if report.Deleted > 0 {
				logger.Info().
					Int("archived", report.Archived).
					Int64("deleted", report.Deleted).
					Str("object_key", report.ObjectKey).
					Msg("cleanup pass complete")
			}
		}
	}
}

// runStatsLoop logs engine counters and refreshes the per-status gauge.
func runStatsLoop(
	ctx context.Context,
	cfg *config.Config,
	detectionEngine *engine.Engine,
	pg *postgres.Client,
	m *metrics.EngineMetrics,
	logger zerolog.Logger,
) {
	ticker := time.NewTicker(cfg.Engine.StatsInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			detected, errCount := detectionEngine.GetMetrics()
			logger.Info().
				Int64("detected", detected).
				Int64("errors", errCount).
				Msg("engine stats")

			counts, err := pg.CountEdgesByStatus(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to count edges by status")
				continue
			}
			byStatus := make(map[string]int64, len(counts))
			for status, n := range counts {
				byStatus[string(status)] = n
			}
			m.UpdateStatusCounts(byStatus)
		}
	}
}

func newLogger(cfg *config.Config, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger()
}

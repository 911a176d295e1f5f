// Command edge-api serves the HTTP API: edge reads, manual detection and
// lifecycle triggers, and the probability composite endpoint.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/alerts"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/api"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/archive"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/composite"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/config"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/detector"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/engine"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/lifecycle"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/metrics"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/pillars"
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

	logger := newLogger(cfg, "edge-api")
	logger.Info().Str("config", *configPath).Msg("edge-api starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Manual detect triggers publish and alert exactly like the worker path
	streamPublisher := publisher.NewStreamPublisher(redisClient, cfg.Streams.Detected, cfg.Streams.Updated)

	var notifier contracts.Notifier
	if cfg.Alerts.Enabled {
		notifier = alerts.New(redisClient, alerts.Config{
			WebhookURL:    cfg.Alerts.SlackWebhookURL,
			MinConfidence: cfg.Alerts.MinConfidence,
			Signals:       cfg.Alerts.Signals,
			DedupTTL:      cfg.Alerts.DedupTTL.Duration,
		}, m, logger)
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
	}

	detectionEngine := engine.New(
		nil, // no stream loop; detection runs on demand
		pg,
		pg,
		cfg.Detector,
		engine.Config{ChangesStream: cfg.Streams.Changes},
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

	comp, err := composite.New(cfg.Composite.Weights)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid pillar weights")
	}

	pillarClient := pillars.NewClient(
		cfg.Pillars.BaseURL,
		cfg.Pillars.Timeout.Duration,
		cfg.Pillars.MaxRetries,
		cfg.Pillars.RetryBase.Duration,
		logger,
	)

	handler := api.NewHandler(pg, detectionEngine, lifecycleManager, comp, pillarClient, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.API.RequestTimeout.Duration))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.API.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/edges", handler.ListEdges)
		r.Get("/edges/{edgeID}", handler.GetEdge)

		r.Get("/games/{gameID}/edges", handler.GetGameEdges)
		r.Post("/games/{gameID}/detect", handler.TriggerDetection)
		r.Get("/games/{gameID}/composite", handler.GetComposite)

		r.Post("/lifecycle/run", handler.RunLifecycle)
		r.Post("/lifecycle/expire-started", handler.ExpireStarted)
		r.Post("/lifecycle/cleanup", handler.RunCleanup)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.API.Port).Msg("edge-api listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
			if err := srv.Close(); err != nil {
				logger.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	logger.Info().Msg("shutdown complete")
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

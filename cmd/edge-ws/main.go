// Command edge-ws is the websocket broadcaster: it consumes published edge
// events from Redis Streams and fans them out to subscribed clients.
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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/config"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, "edge-ws")
	logger.Info().Str("config", *configPath).Msg("edge-ws starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	consumerID := cfg.Streams.ConsumerID
	if consumerID == "" {
		if host, hostErr := os.Hostname(); hostErr == nil {
			consumerID = host
		} else {
			consumerID = "edge-ws-1"
		}
	}

	streams := []string{cfg.Streams.Detected, cfg.Streams.Updated}
	feed := ws.NewFeed(redisClient, hub, cfg.WS.ConsumerGroup, consumerID, streams, logger)
	go func() {
		if err := feed.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("feed failed")
		}
	}()

	handler := ws.NewHandler(ctx, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/health", handler.HandleHealth)
	mux.HandleFunc("/stats", handler.HandleStats)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WS.Port),
		Handler: mux,
	}

	go func() {
		logger.Info().
			Int("port", cfg.WS.Port).
			Strs("streams", streams).
			Str("group", cfg.WS.ConsumerGroup).
			Msg("websocket server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server shutdown failed")
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

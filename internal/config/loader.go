package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the final configuration: built-in defaults, then the TOML file
// at path when one exists, then .env, then plain environment variables. The
// result is validated before returning.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		}
	}

	// Load .env if present; missing files are fine
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overwrites config fields from well-known environment
// variables when set, so secrets never need to live in the TOML file
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setBool(&cfg.LogPretty, "LOG_PRETTY")

	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt(&cfg.Postgres.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.Postgres.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setDuration(&cfg.Postgres.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")

	setStr(&cfg.Redis.Addr, "REDIS_URL")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setStr(&cfg.Streams.Changes, "CHANGES_STREAM")
	setStr(&cfg.Streams.Detected, "DETECTED_STREAM")
	setStr(&cfg.Streams.Updated, "UPDATED_STREAM")
	setStr(&cfg.Streams.ConsumerGroup, "CONSUMER_GROUP")
	setStr(&cfg.Streams.ConsumerID, "CONSUMER_ID")
	setInt64(&cfg.Streams.BatchSize, "STREAM_BATCH_SIZE")
	setDuration(&cfg.Streams.BlockTimeout, "STREAM_BLOCK_TIMEOUT")

	setStringSlice(&cfg.Detector.SharpBooks, "SHARP_BOOKS")

	setDuration(&cfg.Lifecycle.UpdateInterval, "LIFECYCLE_UPDATE_INTERVAL")
	setDuration(&cfg.Lifecycle.ExpireInterval, "LIFECYCLE_EXPIRE_INTERVAL")
	setDuration(&cfg.Lifecycle.CleanupInterval, "LIFECYCLE_CLEANUP_INTERVAL")
	setInt(&cfg.Lifecycle.RetentionDays, "EDGE_RETENTION_DAYS")
	setFloat64(&cfg.Lifecycle.FadingRatio, "EDGE_FADING_RATIO")

	setStr(&cfg.Pillars.BaseURL, "PILLAR_SERVICE_URL")
	setInt(&cfg.Pillars.MaxRetries, "PILLAR_MAX_RETRIES")
	setDuration(&cfg.Pillars.Timeout, "PILLAR_TIMEOUT")
	setDuration(&cfg.Pillars.RetryBase, "PILLAR_RETRY_BASE")

	setBool(&cfg.Alerts.Enabled, "ALERTS_ENABLED")
	setStr(&cfg.Alerts.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	setFloat64(&cfg.Alerts.MinConfidence, "ALERT_MIN_CONFIDENCE")
	setStringSlice(&cfg.Alerts.Signals, "ALERT_SIGNALS")
	setDuration(&cfg.Alerts.DedupTTL, "ALERT_DEDUP_TTL")

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.Archive.Region, "S3_REGION")
	setStr(&cfg.Archive.Bucket, "S3_BUCKET")
	setStr(&cfg.Archive.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	setInt(&cfg.API.Port, "API_PORT")
	setStringSlice(&cfg.API.CORSOrigins, "CORS_ORIGINS")

	setInt(&cfg.WS.Port, "WS_PORT")
	setStr(&cfg.WS.ConsumerGroup, "WS_CONSUMER_GROUP")

	setInt(&cfg.Engine.MetricsPort, "METRICS_PORT")
	setDuration(&cfg.Engine.StatsInterval, "STATS_INTERVAL")
	setDuration(&cfg.Engine.DetectionDebounce, "DETECTION_DEBOUNCE")
}

// Typed env helpers. Each mutates its target only when the variable is set
// and parses cleanly.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

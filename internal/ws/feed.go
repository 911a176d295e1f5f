package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

const (
	feedBatchSize = 100
	feedBlock     = 1 * time.Second
)

// Feed relays edge events from the outbound Redis streams into the hub.
// Each stream gets its own consumer goroutine under a shared group.
type Feed struct {
	client     *redis.Client
	hub        *Hub
	group      string
	consumerID string
	streams    []string
	logger     zerolog.Logger
}

// NewFeed creates a feed over the given streams
func NewFeed(client *redis.Client, hub *Hub, group, consumerID string, streams []string, logger zerolog.Logger) *Feed {
	return &Feed{
		client:     client,
		hub:        hub,
		group:      group,
		consumerID: consumerID,
		streams:    streams,
		logger:     logger.With().Str("component", "ws-feed").Logger(),
	}
}

// Start consumes every configured stream until the context ends
func (f *Feed) Start(ctx context.Context) error {
	for _, stream := range f.streams {
		f.createGroup(ctx, stream)
	}
	for _, stream := range f.streams {
		go f.consume(ctx, stream)
	}

	f.logger.Info().Strs("streams", f.streams).Msg("feed started")
	<-ctx.Done()
	return nil
}

func (f *Feed) createGroup(ctx context.Context, stream string) {
	err := f.client.XGroupCreateMkStream(ctx, stream, f.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		f.logger.Warn().Err(err).Str("stream", stream).Msg("failed to create consumer group")
	}
}

func (f *Feed) consume(ctx context.Context, stream string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := f.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    f.group,
				Consumer: f.consumerID,
				Streams:  []string{stream, ">"},
				Count:    feedBatchSize,
				Block:    feedBlock,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn().Err(err).Str("stream", stream).Msg("stream read error")
				time.Sleep(1 * time.Second)
				continue
			}

			for _, s := range streams {
				for _, msg := range s.Messages {
					f.processMessage(ctx, s.Stream, msg)
				}
			}
		}
	}
}

// processMessage parses one entry and broadcasts it. Malformed entries are
// acked so they never clog the pending list.
func (f *Feed) processMessage(ctx context.Context, stream string, msg redis.XMessage) {
	defer f.ack(ctx, stream, msg.ID)

	raw, ok := msg.Values["edge"].(string)
	if !ok {
		f.logger.Warn().Str("stream", stream).Str("message_id", msg.ID).Msg("missing 'edge' field")
		return
	}

	var event models.EdgeEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		f.logger.Warn().Err(err).Str("stream", stream).Str("message_id", msg.ID).Msg("failed to parse edge event")
		return
	}

	f.hub.Broadcast(event)
}

func (f *Feed) ack(ctx context.Context, stream, messageID string) {
	if err := f.client.XAck(ctx, stream, f.group, messageID).Err(); err != nil {
		f.logger.Warn().Err(err).Str("stream", stream).Str("message_id", messageID).Msg("failed to ack")
	}
}

// Package consumer reads odds change events from Redis Streams.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// ErrMalformedEvent marks stream entries that cannot be decoded. Such
// entries are acked immediately so they never sit in the pending list.
var ErrMalformedEvent = errors.New("malformed change event")

// Options tunes the read loop. Zero fields fall back to defaults.
type Options struct {
	BatchSize    int64
	BlockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = 1 * time.Second
	}
	return o
}

// StreamConsumer consumes change events through a consumer group, so
// multiple engine instances split the stream without double-processing.
type StreamConsumer struct {
	client     *redis.Client
	consumerID string
	groupName  string
	opts       Options
}

// Message is one stream entry with its parsed change event.
type Message struct {
	ID        string
	StreamKey string
	Change    models.ChangeEvent
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(client *redis.Client, consumerID, groupName string, opts Options) *StreamConsumer {
	return &StreamConsumer{
		client:     client,
		consumerID: consumerID,
		groupName:  groupName,
		opts:       opts.withDefaults(),
	}
}

// ConsumeStream starts consuming from a stream and returns channels for
// messages and errors. Both close when the context ends.
func (c *StreamConsumer) ConsumeStream(ctx context.Context, streamKey string) (<-chan Message, <-chan error) {
	messageCh := make(chan Message, 100)
	errorCh := make(chan error, 10)

	// Create consumer group if it doesn't exist
	err := c.client.XGroupCreateMkStream(ctx, streamKey, c.groupName, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		errorCh <- fmt.Errorf("failed to create consumer group: %w", err)
		close(messageCh)
		close(errorCh)
		return messageCh, errorCh
	}

	go func() {
		defer close(messageCh)
		defer close(errorCh)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    c.groupName,
					Consumer: c.consumerID,
					Streams:  []string{streamKey, ">"},
					Count:    c.opts.BatchSize,
					Block:    c.opts.BlockTimeout,
				}).Result()

				if err != nil {
					if err == redis.Nil {
						// No messages, continue
						continue
					}
					if ctx.Err() != nil {
						return
					}
					errorCh <- fmt.Errorf("error reading from stream: %w", err)
					time.Sleep(1 * time.Second)
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						msg, err := c.parseMessage(streamKey, message)
						if err != nil {
							// Ack malformed entries; they will never parse on redelivery either
							if ackErr := c.AckMessage(ctx, streamKey, message.ID); ackErr != nil {
								errorCh <- fmt.Errorf("error acking malformed message %s: %w", message.ID, ackErr)
							}
							errorCh <- fmt.Errorf("message %s: %w", message.ID, err)
							continue
						}

						messageCh <- msg
					}
				}
			}
		}
	}()

	return messageCh, errorCh
}

// parseMessage extracts the change event carried in the entry's data field
func (c *StreamConsumer) parseMessage(streamKey string, xmsg redis.XMessage) (Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("%w: missing 'data' field", ErrMalformedEvent)
	}

	var change models.ChangeEvent
	if err := json.Unmarshal([]byte(raw), &change); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return Message{
		ID:        xmsg.ID,
		StreamKey: streamKey,
		Change:    change,
	}, nil
}

// AckMessage acknowledges a message as processed
func (c *StreamConsumer) AckMessage(ctx context.Context, streamKey, messageID string) error {
	return c.client.XAck(ctx, streamKey, c.groupName, messageID).Err()
}

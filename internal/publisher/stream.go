// Package publisher emits edge events onto Redis Streams.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// streamAdder is the slice of go-redis used to append stream entries
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// streamMaxLen caps each event stream; XAdd trims approximately so Redis
// never grows unbounded when no consumer is draining.
const streamMaxLen = 10000

// StreamPublisher writes edge events to the detected and updated streams.
// Detections go to both a sport-suffixed stream and the global one so
// consumers can subscribe narrowly or to everything.
type StreamPublisher struct {
	client         streamAdder
	detectedStream string
	updatedStream  string
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(client streamAdder, detectedStream, updatedStream string) *StreamPublisher {
	return &StreamPublisher{
		client:         client,
		detectedStream: detectedStream,
		updatedStream:  updatedStream,
	}
}

// PublishDetected announces a freshly upserted edge on the sport-specific
// stream and the global stream.
func (p *StreamPublisher) PublishDetected(ctx context.Context, edge models.LiveEdge) error {
	payload, err := p.marshalEvent(models.EdgeEventDetected, edge)
	if err != nil {
		return err
	}

	sportStream := fmt.Sprintf("%s.%s", p.detectedStream, edge.SportKey)
	if err := p.add(ctx, sportStream, payload); err != nil {
		return err
	}
	return p.add(ctx, p.detectedStream, payload)
}

// PublishTransition announces a lifecycle status change on the updated stream
func (p *StreamPublisher) PublishTransition(ctx context.Context, edge models.LiveEdge, eventType string) error {
	payload, err := p.marshalEvent(eventType, edge)
	if err != nil {
		return err
	}
	return p.add(ctx, p.updatedStream, payload)
}

func (p *StreamPublisher) marshalEvent(eventType string, edge models.LiveEdge) (string, error) {
	event := models.EdgeEvent{
		Type:      eventType,
		SportKey:  edge.SportKey,
		GameID:    edge.GameID,
		Edge:      edge,
		EmittedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal edge event: %w", err)
	}
	return string(payload), nil
}

func (p *StreamPublisher) add(ctx context.Context, stream, payload string) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"edge": payload,
		},
	}).Result()

	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ contracts.EdgePublisher = (*StreamPublisher)(nil)

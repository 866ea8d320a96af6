// Package pubsub relays workflow notifications between server processes
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is used when no channel is configured
const DefaultChannel = "service-requests:notifications"

const (
	publishTimeout = 2 * time.Second
	outboxSize     = 256
)

// Envelope is the wire form of a notification on the Redis channel
type Envelope struct {
	Origin    string          `json:"origin"`
	ID        string          `json:"id"`
	Type      event.Type      `json:"type"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// RedisBridge publishes local events to a Redis channel and rebroadcasts
// events published by other processes to the local notification sink.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	origin  string
	sink    port.Broadcaster
	logger  *zap.Logger

	// publish is swapped in tests
	publish func(ctx context.Context, payload string) error

	mu      sync.Mutex
	pubsub  *redis.PubSub
	done    chan struct{}
	outbox  chan string
	flushed chan struct{}
	cancel  context.CancelFunc
}

// NewRedisBridge creates a bridge with a fresh origin id
func NewRedisBridge(client redis.UniversalClient, channel string, sink port.Broadcaster, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		sink:    sink,
		logger:  logger,
	}
	b.publish = b.publishToRedis
	return b
}

// Name returns the worker name
func (b *RedisBridge) Name() string {
	return "redis-bridge"
}

// Origin returns the id stamped on envelopes from this process
func (b *RedisBridge) Origin() string {
	return b.origin
}

// HandleEvent queues a local event for publishing and returns without
// waiting on Redis. Remote events are not republished, and events arriving
// while the bridge is stopped are dropped.
func (b *RedisBridge) HandleEvent(_ context.Context, evt *event.Event) error {
	if evt.IsRemote() {
		return nil
	}

	payload, err := b.encode(evt)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.outbox == nil {
		return nil
	}
	select {
	case b.outbox <- payload:
		return nil
	default:
		b.logger.Error("Publish queue full, dropping notification",
			zap.String("channel", b.channel),
			zap.String("event_type", evt.Type.String()))
		return fmt.Errorf("redis publish queue full")
	}
}

// Start subscribes to the channel and relays remote envelopes until Stop
func (b *RedisBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return fmt.Errorf("redis bridge already started")
	}

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	b.pubsub = ps
	b.done = make(chan struct{})
	b.startPublisher()

	go func(ch <-chan *redis.Message, done chan struct{}) {
		defer close(done)
		for msg := range ch {
			b.deliver(msg.Payload)
		}
	}(ps.Channel(), b.done)

	b.logger.Info("Redis bridge subscribed",
		zap.String("channel", b.channel),
		zap.String("origin", b.origin))
	return nil
}

// Stop unsubscribes, waits for the relay loop to exit and flushes queued
// publishes for up to publishTimeout.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	out, flushed, cancel := b.outbox, b.flushed, b.cancel
	b.pubsub, b.done = nil, nil
	b.outbox, b.flushed, b.cancel = nil, nil, nil
	b.mu.Unlock()

	if out != nil {
		close(out)
		select {
		case <-flushed:
		case <-time.After(publishTimeout):
			b.logger.Error("Redis publish queue not drained, abandoning pending notifications")
			cancel()
			<-flushed
		}
		cancel()
	}

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	if err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis unsubscribe: %w", err)
	}
	return nil
}

// startPublisher runs the single goroutine that drains the outbox in order.
// Callers hold b.mu.
func (b *RedisBridge) startPublisher() {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, outboxSize)
	flushed := make(chan struct{})
	b.outbox, b.flushed, b.cancel = out, flushed, cancel

	go func() {
		defer close(flushed)
		for payload := range out {
			pubCtx, pubCancel := context.WithTimeout(ctx, publishTimeout)
			if err := b.publish(pubCtx, payload); err != nil {
				b.logger.Error("Failed to publish notification",
					zap.String("channel", b.channel),
					zap.Error(err))
			}
			pubCancel()
		}
	}()
}

func (b *RedisBridge) publishToRedis(ctx context.Context, payload string) error {
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBridge) encode(evt *event.Event) (string, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	payload, err := json.Marshal(Envelope{
		Origin:    b.origin,
		ID:        evt.ID,
		Type:      evt.Type,
		RequestID: evt.RequestID,
		Data:      data,
		Timestamp: evt.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(payload), nil
}

// deliver rebroadcasts an envelope from another process
func (b *RedisBridge) deliver(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Error("Discarding malformed notification", zap.Error(err))
		return
	}
	if env.Origin == b.origin {
		return
	}
	if !env.Type.IsValid() {
		b.logger.Error("Discarding notification with unknown type", zap.String("type", string(env.Type)))
		return
	}
	b.sink.Broadcast(env.Type.String(), env.Data)
}

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	eventType string
	data      interface{}
}

type fakeSink struct {
	mu   sync.Mutex
	sent []broadcast
}

func (f *fakeSink) Broadcast(eventType string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, broadcast{eventType, data})
}

func (f *fakeSink) SubscriberCount() int { return 0 }

func (f *fakeSink) snapshot() []broadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcast(nil), f.sent...)
}

func TestRedisBridge_EncodeDeliverRoundTrip(t *testing.T) {
	sinkA, sinkB := &fakeSink{}, &fakeSink{}
	a := NewRedisBridge(nil, "", sinkA, nil)
	b := NewRedisBridge(nil, "", sinkB, nil)
	assert.NotEqual(t, a.Origin(), b.Origin())
	assert.Equal(t, DefaultChannel, a.channel)

	evt := event.NewEvent(event.TypeRequestClassified, "req-1", map[string]string{"status": "classified"})
	payload, err := a.encode(evt)
	require.NoError(t, err)

	// own messages are ignored
	a.deliver(payload)
	assert.Empty(t, sinkA.snapshot())

	b.deliver(payload)
	sent := sinkB.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "request_classified", sent[0].eventType)

	raw, ok := sent[0].data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"classified"}`, string(raw))
}

func TestRedisBridge_DeliverRejectsGarbage(t *testing.T) {
	sink := &fakeSink{}
	b := NewRedisBridge(nil, "chan", sink, nil)

	b.deliver("not json")
	b.deliver(`{"origin":"other","type":"something_else","data":{}}`)
	assert.Empty(t, sink.snapshot())
}

func TestRedisBridge_SkipsRemoteEvents(t *testing.T) {
	b := NewRedisBridge(nil, "chan", &fakeSink{}, nil)
	evt := event.NewEvent(event.TypeRequestCreated, "req-1", nil).WithOrigin("elsewhere")
	assert.NoError(t, b.HandleEvent(t.Context(), evt))
}

func TestRedisBridge_StopWithoutStart(t *testing.T) {
	b := NewRedisBridge(nil, "chan", &fakeSink{}, nil)
	assert.NoError(t, b.Stop())
	assert.Equal(t, "redis-bridge", b.Name())
}

// runPublisher starts the outbox drain without a Redis subscription
func runPublisher(b *RedisBridge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startPublisher()
}

func TestRedisBridge_PublishDoesNotBlockCaller(t *testing.T) {
	b := NewRedisBridge(nil, "chan", &fakeSink{}, nil)

	release := make(chan struct{})
	var mu sync.Mutex
	var published []string
	b.publish = func(ctx context.Context, payload string) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		var env Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return err
		}
		mu.Lock()
		published = append(published, env.RequestID)
		mu.Unlock()
		return nil
	}
	runPublisher(b)

	start := time.Now()
	for i := 0; i < 5; i++ {
		evt := event.NewEvent(event.TypeRequestRegistered, fmt.Sprintf("req-%d", i), nil)
		require.NoError(t, b.HandleEvent(t.Context(), evt))
	}
	assert.Less(t, time.Since(start), publishTimeout, "HandleEvent waited on Redis")

	close(release)
	require.NoError(t, b.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"req-0", "req-1", "req-2", "req-3", "req-4"}, published)
}

func TestRedisBridge_QueueFullDrops(t *testing.T) {
	b := NewRedisBridge(nil, "chan", &fakeSink{}, nil)
	b.publish = func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}
	runPublisher(b)
	t.Cleanup(func() { _ = b.Stop() })

	var failed int
	for i := 0; i < outboxSize+2; i++ {
		if err := b.HandleEvent(t.Context(), event.NewEvent(event.TypeRequestCreated, "req-1", nil)); err != nil {
			failed++
		}
	}
	// the publisher holds at most one payload outside the queue
	assert.GreaterOrEqual(t, failed, 1)
}

func TestRedisBridge_StoppedBridgeDropsEvents(t *testing.T) {
	b := NewRedisBridge(nil, "chan", &fakeSink{}, nil)
	called := false
	b.publish = func(context.Context, string) error {
		called = true
		return nil
	}

	assert.NoError(t, b.HandleEvent(t.Context(), event.NewEvent(event.TypeRequestCreated, "req-1", nil)))

	runPublisher(b)
	require.NoError(t, b.Stop())
	assert.NoError(t, b.HandleEvent(t.Context(), event.NewEvent(event.TypeRequestCreated, "req-1", nil)))
	assert.False(t, called)
}

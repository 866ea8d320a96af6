//go:build integration
// +build integration

package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a Redis server at REDIS_ADDR (default localhost:6379)
func TestRedisBridge_CrossProcess(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	channel := "test:" + t.Name()
	sinkA, sinkB := &fakeSink{}, &fakeSink{}
	a := NewRedisBridge(client, channel, sinkA, nil)
	b := NewRedisBridge(client, channel, sinkB, nil)

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	t.Cleanup(func() {
		_ = a.Stop()
		_ = b.Stop()
	})

	evt := event.NewEvent(event.TypeRequestCreated, "req-1", map[string]string{"id": "req-1"})
	require.NoError(t, a.HandleEvent(ctx, evt))

	assert.Eventually(t, func() bool { return len(sinkB.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, sinkA.snapshot())
}

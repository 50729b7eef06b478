package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"smart-supermarket/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := startHub(t)
	a := &Client{Hub: hub, ID: "a", Send: make(chan []byte, 1)}
	b := &Client{Hub: hub, ID: "b", Send: make(chan []byte, 1)}
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(context.Background(), "journey", map[string]string{"state": "ANONYMOUS"})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.Send:
			var env struct {
				Type string            `json:"type"`
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &env))
			assert.Equal(t, "journey", env.Type)
			assert.Equal(t, "ANONYMOUS", env.Data["state"])
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.ID)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{Hub: hub, ID: "slow", Send: make(chan []byte, 1)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(context.Background(), "journey", 1)
	hub.Broadcast(context.Background(), "journey", 2)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open, "send channel closed on unregister")
}

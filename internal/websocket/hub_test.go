package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_SendToOwnerReachesEverySession(t *testing.T) {
	hub := startHub(t)
	tab1 := NewClient(hub, nil, "user:1")
	tab2 := NewClient(hub, nil, "user:1")
	other := NewClient(hub, nil, "user:2")
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)

	require.Eventually(t, func() bool {
		return hub.SessionCount("user:1") == 2 && hub.IsOwnerOnline("user:2")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendToOwner("user:1", map[string]string{"type": "cart_updated"}))

	for _, c := range []*Client{tab1, tab2} {
		select {
		case msg := <-c.Send:
			var decoded map[string]string
			require.NoError(t, json.Unmarshal(msg, &decoded))
			assert.Equal(t, "cart_updated", decoded["type"])
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
	assert.Empty(t, other.Send)
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "session:abc")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsOwnerOnline("session:abc") }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return !hub.IsOwnerOnline("session:abc") }, time.Second, 5*time.Millisecond)

	_, ok := <-client.Send
	assert.False(t, ok)
}

func TestHub_HandleClientMessage(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	var got []string
	hub.SetMessageHandler(func(owner string, message []byte) {
		mu.Lock()
		got = append(got, owner+"|"+string(message))
		mu.Unlock()
	})

	client := NewClient(hub, nil, "user:7")
	hub.HandleClientMessage(client, []byte(`{"type":"SELECT_ALL"}`))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`user:7|{"type":"SELECT_ALL"}`}, got)
}

func TestHub_HandleClientMessage_RateLimited(t *testing.T) {
	hub := NewHub()

	calls := 0
	hub.SetMessageHandler(func(string, []byte) { calls++ })

	client := NewClient(hub, nil, "user:7")
	for i := 0; i < maxMessagesPerSecond+5; i++ {
		hub.HandleClientMessage(client, []byte(`{}`))
	}
	assert.Equal(t, maxMessagesPerSecond, calls)
}

func TestHub_HandleClientMessage_NoHandler(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil, "user:7")
	assert.NotPanics(t, func() {
		hub.HandleClientMessage(client, []byte(`{}`))
	})
}

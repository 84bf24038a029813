package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, userID uint) *Client {
	return &Client{UserID: userID, Hub: h, Send: make(chan []byte, 8)}
}

func TestHubRegistry(t *testing.T) {
	t.Run("register and close", func(t *testing.T) {
		h := NewHub()
		c := newTestClient(h, 1)
		h.Register(c)
		assert.Equal(t, 1, h.ClientCount())
		c.Close()
		assert.Equal(t, 0, h.ClientCount())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		h := NewHub()
		c := newTestClient(h, 1)
		h.Register(c)
		c.Close()
		c.Close()
		assert.Equal(t, 0, h.ClientCount())
	})

	t.Run("multiple connections per user", func(t *testing.T) {
		h := NewHub()
		a, b := newTestClient(h, 1), newTestClient(h, 1)
		h.Register(a)
		h.Register(b)
		h.BroadcastToUser(1, map[string]string{"hello": "there"})
		assert.Len(t, a.Send, 1)
		assert.Len(t, b.Send, 1)
	})
}

func TestEnqueue(t *testing.T) {
	t.Run("marshals payload", func(t *testing.T) {
		c := newTestClient(nil, 1)
		c.Enqueue(map[string]int{"n": 7})
		raw := <-c.Send
		var got map[string]int
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, 7, got["n"])
	})

	t.Run("drops when the buffer is full", func(t *testing.T) {
		c := &Client{UserID: 1, Send: make(chan []byte, 1)}
		c.Enqueue("a")
		c.Enqueue("b") // dropped, not blocked
		assert.Len(t, c.Send, 1)
	})

	t.Run("enqueue after close is a no-op", func(t *testing.T) {
		c := newTestClient(nil, 1)
		c.Close()
		assert.NotPanics(t, func() { c.Enqueue("late") })
	})
}

func TestBroadcastAll(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(h, 1), newTestClient(h, 2)
	h.Register(a)
	h.Register(b)
	h.BroadcastAll("ping")
	assert.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 1)
}

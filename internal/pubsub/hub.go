// Package pubsub is the minimal in-process channel registry PUBLISH and
// SUBSCRIBE share: just enough bookkeeping for PUBLISH to have receivers to
// count and deliver to. There is no persistence, no pattern matching, and no
// cross-process fan-out.
package pubsub

import (
	"sync"

	"github.com/FX-HAO/pusher/internal/client"
)

// Hub maps a channel name to the set of clients currently subscribed to it.
// All methods lock internally: subscriptions change from the reactor
// goroutine only (the callers are the command table and the client close
// hook that internal/server wires to UnsubscribeAll), but the lock keeps the
// type safe to reuse from tests that drive it directly.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[uint64]*client.Client
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[uint64]*client.Client)}
}

// Subscribe adds c to channel's subscriber set. Subscribing twice to the
// same channel is a no-op.
func (h *Hub) Subscribe(channel string, c *client.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[uint64]*client.Client)
		h.channels[channel] = subs
	}
	subs[c.ID()] = c
}

// Unsubscribe removes c from channel's subscriber set, dropping the channel
// entirely once its last subscriber leaves.
func (h *Hub) Unsubscribe(channel string, c *client.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[channel]
	if subs == nil {
		return
	}
	delete(subs, c.ID())
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// UnsubscribeAll removes c from every channel it is subscribed to, used when
// a client disconnects so it can't be handed a dangling reply target.
func (h *Hub) UnsubscribeAll(c *client.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, subs := range h.channels {
		if _, ok := subs[c.ID()]; ok {
			delete(subs, c.ID())
			if len(subs) == 0 {
				delete(h.channels, name)
			}
		}
	}
}

// Publish delivers message to every current subscriber of channel via the
// same buffered AddReplyString path an ordinary command reply uses, and
// returns the number of receivers, matching real Redis's PUBLISH return
// value.
func (h *Hub) Publish(channel string, message []byte) int {
	h.mu.Lock()
	subs := make([]*client.Client, 0, len(h.channels[channel]))
	for _, c := range h.channels[channel] {
		subs = append(subs, c)
	}
	h.mu.Unlock()

	line := make([]byte, 0, len(message)+3)
	line = append(line, '+')
	line = append(line, message...)
	line = append(line, '\r', '\n')

	delivered := 0
	for _, c := range subs {
		if err := c.AddReplyString(line); err == nil {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount reports how many clients are currently subscribed to
// channel, used by tests to assert on Subscribe/Unsubscribe bookkeeping
// without depending on Publish's delivery side effects.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

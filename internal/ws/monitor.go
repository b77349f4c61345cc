package ws

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives the liveness monitor and the typing-state expiry until the
// context is canceled. Call it in its own goroutine.
//
// Each sweep terminates connections that never answered the previous probe,
// then marks the rest pending and pings them. A half-open connection is
// reclaimed within roughly two intervals.
func (h *Hub) Run(ctx context.Context) {
	pingTicker := time.NewTicker(h.opts.PingInterval)
	typingTicker := time.NewTicker(time.Second)
	defer pingTicker.Stop()
	defer typingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-pingTicker.C:
			h.sweepConnections()
		case <-typingTicker.C:
			h.expireTyping()
		}
	}
}

func (h *Hub) sweepConnections() {
	h.mu.Lock()
	var dead, probe []*Client
	for client, state := range h.sessions {
		if !state.alive {
			dead = append(dead, client)
			continue
		}
		state.alive = false
		probe = append(probe, client)
	}
	for _, client := range dead {
		h.evictLocked(client, "liveness probe missed")
	}
	h.mu.Unlock()

	for _, client := range dead {
		client.close()
	}
	for _, client := range probe {
		if err := client.ping(); err != nil {
			h.Disconnect(client, "ping failed: "+err.Error())
		}
	}

	if len(dead) > 0 {
		h.logger.Info("evicted unresponsive connections", zap.Int("count", len(dead)))
	}
}

// expireTyping drops typing entries whose deadline passed and rebroadcasts
// the set when it changed. This is the server-side backstop for clients
// whose isTyping:false event was lost.
func (h *Hub) expireTyping() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	changed := false
	for username, deadline := range h.typing {
		if now.After(deadline) {
			delete(h.typing, username)
			changed = true
		}
	}
	if changed {
		h.broadcastTypingLocked()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions))
	for client := range h.sessions {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Disconnect(client, "server shutting down")
	}
}

// Package hub fans broadcast messages out to the WebSocket clients
// joined to a house. Recipients are resolved per broadcast from the
// session registry, so a client that joins, leaves or disconnects is
// reflected immediately.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
	"github.com/hallfield/homehub-core/internal/session"
)

// Sender delivers a pre-encoded message to one client. Implementations
// must not block indefinitely; a slow or dead client should fail fast.
type Sender interface {
	Send(data []byte) error
}

// Hub routes broadcasts to the clients joined to a house.
type Hub struct {
	sessions *session.Registry
	logger   *logging.Logger

	mu      sync.RWMutex
	senders map[string]Sender // session id → transport
}

// New creates a hub resolving audiences from the given registry.
func New(sessions *session.Registry, logger *logging.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		logger:   logger,
		senders:  make(map[string]Sender),
	}
}

// Register attaches a client transport under its session id.
func (h *Hub) Register(sessionID string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.senders[sessionID] = s
}

// Unregister detaches a client transport. Idempotent.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.senders, sessionID)
}

// Publish sends message to every session joined to houseID, skipping
// excludeSessionID (the command originator, which gets a direct response
// instead). A failed delivery to one client is logged and never affects
// the others.
func (h *Hub) Publish(ctx context.Context, houseID int64, message any, excludeSessionID string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding broadcast: %w", err)
	}

	audience, err := h.sessions.ListByHouse(ctx, houseID)
	if err != nil {
		return fmt.Errorf("resolving audience: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range audience {
		if s.ID == excludeSessionID {
			continue
		}
		sender, ok := h.senders[s.ID]
		if !ok {
			continue // connection already gone
		}
		if err := sender.Send(data); err != nil {
			h.logger.Warn("broadcast delivery failed",
				"session_id", s.ID, "house_id", houseID, "error", err)
		}
	}
	return nil
}

// Package realtime pushes order change hints to connected browsers.
package realtime

import (
	"encoding/json"
	"sync"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"

	"github.com/rs/zerolog/log"
)

// sendBuffer is how many events a slow client may fall behind before events
// to it are dropped.
const sendBuffer = 32

// subscriber is one open connection.
type subscriber struct {
	userID string
	role   auth.Role
	send   chan []byte
}

// wants reports whether the subscriber should hear about ev.
func (s *subscriber) wants(ev models.OrderEvent) bool {
	switch s.role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDriver:
		if ev.DriverID != nil && *ev.DriverID == s.userID {
			return true
		}
		return ev.PoolChanged
	}
	return ev.CustomerID == s.userID
}

// Hub fans events out to subscribers. Delivery is best effort: a full buffer
// drops the event for that subscriber only.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) subscribe(sess auth.Session) *subscriber {
	s := &subscriber{userID: sess.UserID, role: sess.Role, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of open connections.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish implements the order and payment services' Publisher.
func (h *Hub) Publish(ev models.OrderEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Msg("Failed to encode order event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.send <- payload:
		default:
			log.Warn().Str("user_id", s.userID).Str("order_id", ev.OrderID).Msg("Dropping event for slow subscriber")
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// Hub in-process room registry, room = user id.
// Delivery is at-most-once: an event for a room with no session is lost.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Session]struct{}
	metrics *Metrics
}

// NewHub create a Hub, m may be nil
func NewHub(m *Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Session]struct{}),
		metrics: m,
	}
}

// Join add s to the room of userID
func (h *Hub) Join(userID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[userID] = room
	}
	if _, dup := room[s]; dup {
		return
	}
	room[s] = struct{}{}
	h.metrics.joined()
}

// Leave remove s from its room, no-op if absent
func (h *Hub) Leave(userID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(userID, s)
}

func (h *Hub) leaveLocked(userID string, s *Session) bool {
	room, ok := h.rooms[userID]
	if !ok {
		return false
	}
	if _, ok := room[s]; !ok {
		return false
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, userID)
	}
	h.metrics.left()
	return true
}

// Sessions number of sessions joined to the room of userID
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Publish queue {event, payload} on every session of userID. A session that
// is closed or whose queue is full is dropped and closed; Publish never waits on a socket.
func (h *Hub) Publish(_ context.Context, userID string, event domain.Event, payload any) error {
	frame, err := json.Marshal(domain.Envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	h.metrics.published(string(event))

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[userID]))
	for s := range h.rooms[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var failed []*Session
	for _, s := range targets {
		if err := s.Send(frame); err != nil {
			logger.Log.Warn("hub: send failed, dropping session",
				zap.String("userID", userID), zap.String("session", s.ID), zap.Error(err))
			failed = append(failed, s)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, s := range failed {
			if h.leaveLocked(userID, s) {
				h.metrics.drop()
			}
		}
		h.mu.Unlock()
		for _, s := range failed {
			s.Close()
		}
	}
	return nil
}

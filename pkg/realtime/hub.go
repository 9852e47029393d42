package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// Hub is the process-local room registry. It implements Publisher and Directory.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Session]struct{}),
		logger: logger,
	}
}

// Join subscribes s to room.
func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	h.mu.Unlock()

	s.addRoom(room)
}

// Leave unsubscribes s from room.
func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	h.removeLocked(s, room)
	h.mu.Unlock()

	s.removeRoom(room)
}

// Disconnect unsubscribes s from every room and returns the rooms it was in.
func (h *Hub) Disconnect(s *Session) []string {
	rooms := s.takeRooms()

	h.mu.Lock()
	for _, room := range rooms {
		h.removeLocked(s, room)
	}
	h.mu.Unlock()

	return rooms
}

func (h *Hub) removeLocked(s *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Subscribers implements Directory.
func (h *Hub) Subscribers(room string) []domain.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]domain.Identity, 0, len(members))
	for s := range members {
		out = append(out, s.Identity)
	}
	return out
}

// Publish implements Publisher for subscribers connected to this process.
func (h *Hub) Publish(_ context.Context, room, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	h.Deliver(room, Frame{Event: event, Data: payload})
	return nil
}

// Deliver writes frame to every local subscriber of room. A failing
// connection is logged and skipped; its read loop will tear it down.
// A member:removed frame to a workspace room also unsubscribes the removed
// user's sessions from that room.
func (h *Hub) Deliver(room string, frame Frame) {
	h.write(room, frame)
	if frame.Event == EventMemberRemoved && IsWorkspaceRoom(room) {
		h.evictRemovedMember(room, frame.Data)
	}
}

// evictRemovedMember drops the removed user's sessions from room and sends
// the remaining subscribers the new presence list.
func (h *Hub) evictRemovedMember(room string, data json.RawMessage) {
	var removed struct {
		UserID uuid.UUID `json:"userId"`
	}
	if err := json.Unmarshal(data, &removed); err != nil || removed.UserID == uuid.Nil {
		h.logger.Warn("member:removed without user id", "room", room)
		return
	}

	var evicted []*Session
	h.mu.Lock()
	for s := range h.rooms[room] {
		if s.Identity.UserID == removed.UserID {
			evicted = append(evicted, s)
		}
	}
	for _, s := range evicted {
		h.removeLocked(s, room)
	}
	h.mu.Unlock()

	if len(evicted) == 0 {
		return
	}
	for _, s := range evicted {
		s.removeRoom(room)
	}
	h.logger.Info("removed member unsubscribed",
		"room", room,
		"user_id", removed.UserID,
		"sessions", len(evicted),
	)

	payload, err := json.Marshal(Presence(h.Subscribers(room)))
	if err != nil {
		return
	}
	h.write(room, Frame{Event: EventWorkspaceUsers, Data: payload})
}

func (h *Hub) write(room string, frame Frame) {
	h.mu.RLock()
	members := make([]*Session, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		if err := s.peer.writeFrame(frame); err != nil {
			h.logger.Warn("realtime delivery failed",
				"room", room,
				"event", frame.Event,
				"connection_id", s.ID,
				"error", err,
			)
		}
	}
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

var (
	_ Publisher = (*Hub)(nil)
	_ Directory = (*Hub)(nil)
)

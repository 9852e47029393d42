package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// peer writes frames to one client.
type peer interface {
	writeFrame(Frame) error
}

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

const writeTimeout = 10 * time.Second

type wsPeer struct {
	mu       sync.Mutex
	encoder  *json.Encoder
	deadline deadlineSetter
}

func newWSPeer(encoder *json.Encoder, deadline deadlineSetter) *wsPeer {
	return &wsPeer{encoder: encoder, deadline: deadline}
}

func (p *wsPeer) writeFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deadline != nil {
		_ = p.deadline.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return p.encoder.Encode(frame)
}

// Session is one authenticated connection.
type Session struct {
	ID       uuid.UUID
	Identity domain.Identity

	peer peer

	mu        sync.Mutex
	rooms     map[string]struct{}
	workspace string
}

func newSession(identity domain.Identity, p peer) *Session {
	return &Session{
		ID:       uuid.New(),
		Identity: identity,
		peer:     p,
		rooms:    make(map[string]struct{}),
	}
}

func (s *Session) addRoom(room string) {
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	if IsWorkspaceRoom(room) {
		s.workspace = room
	}
	s.mu.Unlock()
}

func (s *Session) removeRoom(room string) {
	s.mu.Lock()
	delete(s.rooms, room)
	if s.workspace == room {
		s.workspace = ""
	}
	s.mu.Unlock()
}

// takeRooms empties the room set and returns what it held.
func (s *Session) takeRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.rooms = make(map[string]struct{})
	s.workspace = ""
	return rooms
}

// CurrentWorkspace returns the workspace room most recently joined, or "".
func (s *Session) CurrentWorkspace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// InRoom reports whether the session is subscribed to room.
func (s *Session) InRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[room]
	return ok
}

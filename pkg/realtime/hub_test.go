package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

type recordingPeer struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (p *recordingPeer) writeFrame(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, f)
	return nil
}

func (p *recordingPeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.Event
	}
	return out
}

func newTestSession(email string) (*Session, *recordingPeer) {
	p := &recordingPeer{}
	return newSession(domain.Identity{UserID: uuid.New(), Email: email}, p), p
}

func TestHub_PublishReachesOnlyRoomSubscribers(t *testing.T) {
	hub := NewHub(nil)
	room := WorkspaceRoom(uuid.New())

	inside, insidePeer := newTestSession("in@example.com")
	outside, outsidePeer := newTestSession("out@example.com")
	hub.Join(inside, room)
	hub.Join(outside, UserRoom(outside.Identity.UserID))

	if err := hub.Publish(context.Background(), room, EventTaskCreated, map[string]string{"id": "1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := insidePeer.events(); len(got) != 1 || got[0] != EventTaskCreated {
		t.Errorf("inside events = %v, want [%s]", got, EventTaskCreated)
	}
	if got := outsidePeer.events(); len(got) != 0 {
		t.Errorf("outside events = %v, want none", got)
	}
}

func TestHub_DeliverySkipsFailingPeer(t *testing.T) {
	hub := NewHub(nil)
	room := WorkspaceRoom(uuid.New())

	broken, brokenPeer := newTestSession("broken@example.com")
	brokenPeer.err = errors.New("closed")
	healthy, healthyPeer := newTestSession("ok@example.com")
	hub.Join(broken, room)
	hub.Join(healthy, room)

	_ = hub.Publish(context.Background(), room, EventActivityNew, struct{}{})

	if got := healthyPeer.events(); len(got) != 1 {
		t.Errorf("healthy peer got %d frames, want 1", len(got))
	}
}

func TestHub_DisconnectLeavesEveryRoom(t *testing.T) {
	hub := NewHub(nil)
	s, _ := newTestSession("a@example.com")
	w1 := WorkspaceRoom(uuid.New())
	w2 := WorkspaceRoom(uuid.New())

	hub.Join(s, UserRoom(s.Identity.UserID))
	hub.Join(s, w1)
	hub.Join(s, w2)
	if s.CurrentWorkspace() != w2 {
		t.Errorf("CurrentWorkspace() = %q, want %q", s.CurrentWorkspace(), w2)
	}

	rooms := hub.Disconnect(s)
	if len(rooms) != 3 {
		t.Errorf("Disconnect returned %d rooms, want 3", len(rooms))
	}
	if hub.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d, want 0 after disconnect", hub.RoomCount())
	}
	if len(hub.Subscribers(w1)) != 0 {
		t.Error("session still subscribed after disconnect")
	}
}

func TestHub_LeaveClearsCurrentWorkspace(t *testing.T) {
	hub := NewHub(nil)
	s, _ := newTestSession("a@example.com")
	room := WorkspaceRoom(uuid.New())

	hub.Join(s, room)
	hub.Leave(s, room)

	if s.CurrentWorkspace() != "" {
		t.Errorf("CurrentWorkspace() = %q, want empty", s.CurrentWorkspace())
	}
	if s.InRoom(room) {
		t.Error("InRoom() = true after Leave")
	}
}

func TestPresence_DeduplicatesByUser(t *testing.T) {
	alice := domain.Identity{UserID: uuid.New(), Email: "alice@example.com"}
	bob := domain.Identity{UserID: uuid.New(), Email: "bob@example.com"}

	users := Presence([]domain.Identity{bob, alice, alice, bob, alice})
	if len(users) != 2 {
		t.Fatalf("Presence returned %d users, want 2", len(users))
	}
	if users[0].Email != "alice@example.com" || users[1].Email != "bob@example.com" {
		t.Errorf("Presence order = %v", users)
	}

	data, _ := json.Marshal(users[0])
	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	if _, ok := decoded["userId"]; !ok {
		t.Errorf("presence entry should use camelCase keys: %s", data)
	}
}

func TestHub_MemberRemovedEvictsSessions(t *testing.T) {
	hub := NewHub(nil)
	orgID := uuid.New()
	room := WorkspaceRoom(orgID)

	stay, stayPeer := newTestSession("alice@example.com")
	gone, gonePeer := newTestSession("bob@example.com")
	goneTab2 := newSession(gone.Identity, &recordingPeer{})
	hub.Join(stay, room)
	hub.Join(gone, room)
	hub.Join(goneTab2, room)
	hub.Join(gone, UserRoom(gone.Identity.UserID))

	if err := hub.Publish(context.Background(), room, EventMemberRemoved, map[string]any{
		"organizationId": orgID,
		"userId":         gone.Identity.UserID,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The removed user still sees their own removal.
	if got := gonePeer.events(); len(got) != 1 || got[0] != EventMemberRemoved {
		t.Errorf("removed user events = %v, want [%s]", got, EventMemberRemoved)
	}
	if gone.InRoom(room) || goneTab2.InRoom(room) {
		t.Error("removed user's sessions are still in the workspace room")
	}
	if !gone.InRoom(UserRoom(gone.Identity.UserID)) {
		t.Error("personal room was dropped")
	}
	subs := hub.Subscribers(room)
	if len(subs) != 1 || subs[0].UserID != stay.Identity.UserID {
		t.Errorf("subscribers = %v, want alice only", subs)
	}

	stayPeer.mu.Lock()
	frames := append([]Frame(nil), stayPeer.frames...)
	stayPeer.mu.Unlock()
	if len(frames) != 2 || frames[1].Event != EventWorkspaceUsers {
		t.Fatalf("remaining member frames = %v", stayPeer.events())
	}
	var users []PresenceUser
	if err := json.Unmarshal(frames[1].Data, &users); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if len(users) != 1 || users[0].Email != "alice@example.com" {
		t.Errorf("presence = %+v, want alice only", users)
	}

	// Later workspace events no longer reach the removed user.
	if err := hub.Publish(context.Background(), room, EventTaskCreated, map[string]string{"id": "1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := gonePeer.events(); len(got) != 1 {
		t.Errorf("removed user received %v after removal", got)
	}
}

func TestRedisRelay_MemberRemovedEvictsRemoteSessions(t *testing.T) {
	hub := NewHub(nil)
	room := WorkspaceRoom(uuid.New())
	gone, _ := newTestSession("bob@example.com")
	hub.Join(gone, room)

	relay := NewRedisRelay(nil, hub, RelayConfig{InstanceID: "node-b"})
	b, _ := json.Marshal(relayEnvelope{
		Origin: "node-a",
		Room:   room,
		Event:  EventMemberRemoved,
		Data:   json.RawMessage(`{"userId":"` + gone.Identity.UserID.String() + `"}`),
	})
	relay.handleMessage(b)

	if gone.InRoom(room) {
		t.Error("relayed removal left the session subscribed")
	}
}

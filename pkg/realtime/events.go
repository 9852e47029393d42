// Package realtime fans out workspace events to connected clients and tracks
// who is present in each workspace.
package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// Server to client events.
const (
	EventWorkspaceUsers     = "workspace:users"
	EventTaskCreated        = "task:created"
	EventTaskUpdated        = "task:updated"
	EventTaskDeleted        = "task:deleted"
	EventNotificationInvite = "notification:invite"
	EventNotificationAssign = "notification:assign"
	EventActivityNew        = "activity:new"
	EventMemberJoined       = "member:joined"
	EventMemberUpdated      = "member:updated"
	EventMemberRemoved      = "member:removed"
	EventError              = "error"
)

// Client to server events.
const (
	EventJoinWorkspace  = "join_workspace"
	EventLeaveWorkspace = "leave_workspace"
)

const (
	workspaceRoomPrefix = "workspace:"
	userRoomPrefix      = "user:"
)

// WorkspaceRoom names the room shared by the members of an organization.
func WorkspaceRoom(orgID uuid.UUID) string {
	return workspaceRoomPrefix + orgID.String()
}

// UserRoom names the personal room of a user across all their connections.
func UserRoom(userID uuid.UUID) string {
	return userRoomPrefix + userID.String()
}

// IsWorkspaceRoom reports whether room was produced by WorkspaceRoom.
func IsWorkspaceRoom(room string) bool {
	return strings.HasPrefix(room, workspaceRoomPrefix)
}

// Frame is the JSON envelope exchanged on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresenceUser is one entry of a workspace:users frame.
type PresenceUser struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

// Publisher delivers an event to every subscriber of a room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, data any) error
}

// Directory enumerates the identities subscribed to a room, one per connection.
type Directory interface {
	Subscribers(room string) []domain.Identity
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

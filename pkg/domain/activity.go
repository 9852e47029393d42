package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityAction names the kind of mutation recorded in the activity log.
type ActivityAction string

const (
	ActionTaskCreate         ActivityAction = "TASK_CREATE"
	ActionTaskUpdate         ActivityAction = "TASK_UPDATE"
	ActionTaskDelete         ActivityAction = "TASK_DELETE"
	ActionMemberAdd          ActivityAction = "MEMBER_ADD"
	ActionMemberRemove       ActivityAction = "MEMBER_REMOVE"
	ActionMemberLeave        ActivityAction = "MEMBER_LEAVE"
	ActionMemberRoleUpdate   ActivityAction = "MEMBER_ROLE_UPDATE"
	ActionInvitationSend     ActivityAction = "INVITATION_SEND"
	ActionInvitationResend   ActivityAction = "INVITATION_RESEND"
	ActionInvitationRevoke   ActivityAction = "INVITATION_REVOKE"
	ActionOrganizationUpdate ActivityAction = "ORGANIZATION_UPDATE"
)

// EntityType names the kind of record an activity refers to.
type EntityType string

const (
	EntityTask         EntityType = "TASK"
	EntityMember       EntityType = "MEMBER"
	EntityInvitation   EntityType = "INVITATION"
	EntityOrganization EntityType = "ORGANIZATION"
)

// ActivityLogEntry is one immutable audit record.
type ActivityLogEntry struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	UserID         uuid.UUID      `json:"userId"`
	UserEmail      string         `json:"userEmail"`
	Action         ActivityAction `json:"action"`
	EntityType     EntityType     `json:"entityType"`
	EntityID       string         `json:"entityId"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role inside one organization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// IsAssignable reports whether r may be granted through an invitation or role change.
// OWNER is only ever assigned at organization creation.
func (r Role) IsAssignable() bool {
	return r == RoleAdmin || r == RoleMember || r == RoleViewer
}

// MembershipStatus represents the state of a user's membership.
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
)

// Membership represents a user's membership in an organization.
type Membership struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organizationId"`
	UserID         uuid.UUID        `json:"userId"`
	Email          string           `json:"email"`
	Role           Role             `json:"role"`
	Status         MembershipStatus `json:"status"`
	InvitedBy      uuid.UUID        `json:"invitedBy"`
	JoinedAt       time.Time        `json:"joinedAt"`
}

// IsActive returns true if the membership is active.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the persisted state of an invitation.
// InvitationStatusExpired is derived from ExpiresAt and never written by this service.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
	InvitationStatusRevoked  InvitationStatus = "revoked"
)

// DefaultInvitationTTL is how long a sent invitation stays acceptable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invitation is a token-bearing offer for an email address to join an organization.
type Invitation struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organizationId"`
	Email          string           `json:"email"`
	InvitedBy      uuid.UUID        `json:"invitedBy"`
	Role           Role             `json:"role"`
	Token          string           `json:"-"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// IsPending reports whether the invitation has not been resolved yet.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}

// IsValid reports whether the invitation can still be accepted at now.
func (i *Invitation) IsValid(now time.Time) bool {
	return i.IsPending() && now.Before(i.ExpiresAt)
}

// EffectiveStatus folds lazy expiry into the persisted status.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.IsPending() && !now.Before(i.ExpiresAt) {
		return InvitationStatusExpired
	}
	return i.Status
}

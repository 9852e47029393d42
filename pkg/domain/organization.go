package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the subscription tier of an organization.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
)

// DefaultMaxMembers is applied when an organization is created without a limit.
const DefaultMaxMembers = 5

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness, PlanEnterprise:
		return true
	}
	return false
}

// Organization represents a workspace: the tenant boundary for members and tasks.
type Organization struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Plan       Plan      `json:"plan"`
	MaxMembers int       `json:"maxMembers"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsOwnedBy reports whether userID created the organization.
func (o *Organization) IsOwnedBy(userID uuid.UUID) bool {
	return o.OwnerID == userID
}

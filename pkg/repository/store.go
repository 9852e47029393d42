package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// OrganizationMembership pairs an organization with the caller's membership in it.
type OrganizationMembership struct {
	Organization domain.Organization
	Membership   domain.Membership
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	// UserID receives their personal tasks plus tasks in OrganizationIDs.
	UserID          uuid.UUID
	OrganizationIDs []uuid.UUID
	Status          domain.TaskStatus
}

// Tx is the set of record operations available to a unit of work.
// Lookups return the matching domain "not found" sentinel when nothing matches.
type Tx interface {
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	// LockOrganization reads an organization and holds it until the unit of work ends.
	LockOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	UpdateOrganization(ctx context.Context, org *domain.Organization) error
	// DeleteOrganization removes the organization with its memberships, invitations and tasks.
	DeleteOrganization(ctx context.Context, id uuid.UUID) error
	ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]OrganizationMembership, error)

	CreateMembership(ctx context.Context, m *domain.Membership) error
	GetActiveMembership(ctx context.Context, orgID, userID uuid.UUID) (*domain.Membership, error)
	ListActiveMemberships(ctx context.Context, orgID uuid.UUID) ([]*domain.Membership, error)
	CountActiveMemberships(ctx context.Context, orgID uuid.UUID) (int, error)
	UpdateMembershipRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	DeleteMembership(ctx context.Context, id uuid.UUID) error

	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	// LockInvitationByToken reads an invitation and holds it until the unit of work ends.
	LockInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	// FindPendingInvitation returns the pending invitation for email, regardless of expiry.
	FindPendingInvitation(ctx context.Context, orgID uuid.UUID, email string) (*domain.Invitation, error)
	ListPendingInvitations(ctx context.Context, orgID uuid.UUID) ([]*domain.Invitation, error)
	UpdateInvitation(ctx context.Context, inv *domain.Invitation) error

	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error

	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Store gives access to records outside a unit of work and runs atomic units of work.
type Store interface {
	Tx
	// Atomically runs fn so that its reads and writes commit together or not at all.
	// fn may run more than once and must not start another unit of work.
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

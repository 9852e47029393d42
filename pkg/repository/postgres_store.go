package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// PostgresStore is the Store backed by Postgres.
type PostgresStore struct {
	queries
	db *sql.DB
}

// NewPostgresStore wires the repositories over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	repos := &repositories{
		organizations: NewOrganizationsRepository(db),
		memberships:   NewMembershipsRepository(db),
		invitations:   NewInvitationsRepository(db),
		tasks:         NewTasksRepository(db),
		users:         NewUsersRepository(db),
	}
	return &PostgresStore{
		queries: queries{q: db, repos: repos},
		db:      db,
	}
}

// Atomically runs fn in a serializable transaction with bounded retry.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	return RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&queries{q: tx, repos: s.repos})
	})
}

type repositories struct {
	organizations *OrganizationsRepository
	memberships   *MembershipsRepository
	invitations   *InvitationsRepository
	tasks         *TasksRepository
	users         *UsersRepository
}

// queries binds the repositories to one Querier, either the pool or a transaction.
type queries struct {
	q     Querier
	repos *repositories
}

func (x *queries) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return x.repos.organizations.CreateTx(ctx, x.q, org)
}

func (x *queries) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return x.repos.organizations.GetByID(ctx, x.q, id)
}

func (x *queries) LockOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return x.repos.organizations.GetForUpdate(ctx, x.q, id)
}

func (x *queries) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	return x.repos.organizations.Update(ctx, x.q, org)
}

func (x *queries) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return x.repos.organizations.Delete(ctx, x.q, id)
}

func (x *queries) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]OrganizationMembership, error) {
	return x.repos.organizations.ListForUser(ctx, x.q, userID)
}

func (x *queries) CreateMembership(ctx context.Context, m *domain.Membership) error {
	return x.repos.memberships.CreateTx(ctx, x.q, m)
}

func (x *queries) GetActiveMembership(ctx context.Context, orgID, userID uuid.UUID) (*domain.Membership, error) {
	return x.repos.memberships.GetActive(ctx, x.q, orgID, userID)
}

func (x *queries) ListActiveMemberships(ctx context.Context, orgID uuid.UUID) ([]*domain.Membership, error) {
	return x.repos.memberships.ListActive(ctx, x.q, orgID)
}

func (x *queries) CountActiveMemberships(ctx context.Context, orgID uuid.UUID) (int, error) {
	return x.repos.memberships.CountActive(ctx, x.q, orgID)
}

func (x *queries) UpdateMembershipRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return x.repos.memberships.UpdateRole(ctx, x.q, id, role)
}

func (x *queries) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return x.repos.memberships.Delete(ctx, x.q, id)
}

func (x *queries) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return x.repos.invitations.CreateTx(ctx, x.q, inv)
}

func (x *queries) GetInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	return x.repos.invitations.GetByID(ctx, x.q, id)
}

func (x *queries) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	return x.repos.invitations.GetByToken(ctx, x.q, token)
}

func (x *queries) LockInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	return x.repos.invitations.GetByTokenForUpdate(ctx, x.q, token)
}

func (x *queries) FindPendingInvitation(ctx context.Context, orgID uuid.UUID, email string) (*domain.Invitation, error) {
	return x.repos.invitations.FindPending(ctx, x.q, orgID, email)
}

func (x *queries) ListPendingInvitations(ctx context.Context, orgID uuid.UUID) ([]*domain.Invitation, error) {
	return x.repos.invitations.ListPending(ctx, x.q, orgID)
}

func (x *queries) UpdateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return x.repos.invitations.Update(ctx, x.q, inv)
}

func (x *queries) CreateTask(ctx context.Context, task *domain.Task) error {
	return x.repos.tasks.CreateTx(ctx, x.q, task)
}

func (x *queries) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return x.repos.tasks.GetByID(ctx, x.q, id)
}

func (x *queries) ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	return x.repos.tasks.List(ctx, x.q, filter)
}

func (x *queries) UpdateTask(ctx context.Context, task *domain.Task) error {
	return x.repos.tasks.Update(ctx, x.q, task)
}

func (x *queries) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return x.repos.tasks.Delete(ctx, x.q, id)
}

func (x *queries) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return x.repos.users.GetByID(ctx, x.q, id)
}

func (x *queries) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return x.repos.users.GetByEmail(ctx, x.q, email)
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*queries)(nil)
)

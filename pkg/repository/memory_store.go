package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// MemoryStore is an in-process Store used for tests and local development.
// A single mutex serializes every unit of work; a failed unit of work leaves
// no trace because it runs against a copy of the state.
type MemoryStore struct {
	memTx
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.memTx = memTx{store: s}
	return s
}

// PutUser seeds a user record. Users are owned by the identity service, so the
// store has no other way to learn about them.
func (s *MemoryStore) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.state.users[u.ID] = &u
}

// Atomically runs fn against a snapshot and publishes it only if fn succeeds.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memTx{store: s, state: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

type memState struct {
	organizations map[uuid.UUID]*domain.Organization
	memberships   map[uuid.UUID]*domain.Membership
	invitations   map[uuid.UUID]*domain.Invitation
	tasks         map[uuid.UUID]*domain.Task
	users         map[uuid.UUID]*domain.User
}

func newMemState() *memState {
	return &memState{
		organizations: make(map[uuid.UUID]*domain.Organization),
		memberships:   make(map[uuid.UUID]*domain.Membership),
		invitations:   make(map[uuid.UUID]*domain.Invitation),
		tasks:         make(map[uuid.UUID]*domain.Task),
		users:         make(map[uuid.UUID]*domain.User),
	}
}

func cloneMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func (st *memState) clone() *memState {
	return &memState{
		organizations: cloneMap(st.organizations),
		memberships:   cloneMap(st.memberships),
		invitations:   cloneMap(st.invitations),
		tasks:         cloneTasks(st.tasks),
		users:         cloneMap(st.users),
	}
}

func cloneTask(task *domain.Task) *domain.Task {
	c := *task
	if task.OrganizationID != nil {
		id := *task.OrganizationID
		c.OrganizationID = &id
	}
	if task.AssignedTo != nil {
		id := *task.AssignedTo
		c.AssignedTo = &id
	}
	return &c
}

func cloneTasks(src map[uuid.UUID]*domain.Task) map[uuid.UUID]*domain.Task {
	dst := make(map[uuid.UUID]*domain.Task, len(src))
	for k, v := range src {
		dst[k] = cloneTask(v)
	}
	return dst
}

// memTx operates on a snapshot inside Atomically, or on the live state under
// the store mutex when state is nil.
type memTx struct {
	store *MemoryStore
	state *memState
}

func (t *memTx) begin(ctx context.Context) (*memState, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if t.state != nil {
		return t.state, func() {}, nil
	}
	t.store.mu.Lock()
	return t.store.state, t.store.mu.Unlock, nil
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func (t *memTx) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, exists := st.organizations[org.ID]; exists {
		return domain.ErrConflict
	}
	st.organizations[org.ID] = copyOf(org)
	return nil
}

func (t *memTx) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	org, ok := st.organizations[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	return copyOf(org), nil
}

func (t *memTx) LockOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return t.GetOrganization(ctx, id)
}

func (t *memTx) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.organizations[org.ID]; !ok {
		return domain.ErrOrganizationNotFound
	}
	st.organizations[org.ID] = copyOf(org)
	return nil
}

func (t *memTx) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.organizations[id]; !ok {
		return domain.ErrOrganizationNotFound
	}
	for mid, m := range st.memberships {
		if m.OrganizationID == id {
			delete(st.memberships, mid)
		}
	}
	for iid, inv := range st.invitations {
		if inv.OrganizationID == id {
			delete(st.invitations, iid)
		}
	}
	for tid, task := range st.tasks {
		if task.OrganizationID != nil && *task.OrganizationID == id {
			delete(st.tasks, tid)
		}
	}
	delete(st.organizations, id)
	return nil
}

func (t *memTx) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]OrganizationMembership, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []OrganizationMembership
	for _, m := range st.memberships {
		if m.UserID != userID || !m.IsActive() {
			continue
		}
		org, ok := st.organizations[m.OrganizationID]
		if !ok {
			continue
		}
		out = append(out, OrganizationMembership{Organization: *org, Membership: *m})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Membership.JoinedAt.Before(out[j].Membership.JoinedAt)
	})
	return out, nil
}

func activeMembership(st *memState, orgID, userID uuid.UUID) *domain.Membership {
	for _, m := range st.memberships {
		if m.OrganizationID == orgID && m.UserID == userID && m.IsActive() {
			return m
		}
	}
	return nil
}

func (t *memTx) CreateMembership(ctx context.Context, m *domain.Membership) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if m.IsActive() && activeMembership(st, m.OrganizationID, m.UserID) != nil {
		return domain.ErrAlreadyMember
	}
	st.memberships[m.ID] = copyOf(m)
	return nil
}

func (t *memTx) GetActiveMembership(ctx context.Context, orgID, userID uuid.UUID) (*domain.Membership, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	m := activeMembership(st, orgID, userID)
	if m == nil {
		return nil, domain.ErrMembershipNotFound
	}
	return copyOf(m), nil
}

func (t *memTx) ListActiveMemberships(ctx context.Context, orgID uuid.UUID) ([]*domain.Membership, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []*domain.Membership
	for _, m := range st.memberships {
		if m.OrganizationID == orgID && m.IsActive() {
			out = append(out, copyOf(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (t *memTx) CountActiveMemberships(ctx context.Context, orgID uuid.UUID) (int, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()
	count := 0
	for _, m := range st.memberships {
		if m.OrganizationID == orgID && m.IsActive() {
			count++
		}
	}
	return count, nil
}

func (t *memTx) UpdateMembershipRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	m, ok := st.memberships[id]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (t *memTx) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.memberships[id]; !ok {
		return domain.ErrMembershipNotFound
	}
	delete(st.memberships, id)
	return nil
}

func (t *memTx) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.invitations {
		if existing.Token == inv.Token {
			return domain.ErrConflict
		}
		if existing.IsPending() && existing.OrganizationID == inv.OrganizationID && existing.Email == inv.Email {
			return domain.ErrInvitationExists
		}
	}
	st.invitations[inv.ID] = copyOf(inv)
	return nil
}

func (t *memTx) GetInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := st.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return copyOf(inv), nil
}

func (t *memTx) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, inv := range st.invitations {
		if inv.Token == token {
			return copyOf(inv), nil
		}
	}
	return nil, domain.ErrInvalidInvitationToken
}

func (t *memTx) LockInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	return t.GetInvitationByToken(ctx, token)
}

func (t *memTx) FindPendingInvitation(ctx context.Context, orgID uuid.UUID, email string) (*domain.Invitation, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, inv := range st.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && inv.IsPending() {
			return copyOf(inv), nil
		}
	}
	return nil, domain.ErrInvitationNotFound
}

func (t *memTx) ListPendingInvitations(ctx context.Context, orgID uuid.UUID) ([]*domain.Invitation, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	var out []*domain.Invitation
	for _, inv := range st.invitations {
		if inv.OrganizationID == orgID && inv.IsPending() {
			out = append(out, copyOf(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) UpdateInvitation(ctx context.Context, inv *domain.Invitation) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	existing, ok := st.invitations[inv.ID]
	if !ok {
		return domain.ErrInvitationNotFound
	}
	existing.Status = inv.Status
	existing.ExpiresAt = inv.ExpiresAt
	return nil
}

func (t *memTx) CreateTask(ctx context.Context, task *domain.Task) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	st.tasks[task.ID] = cloneTask(task)
	return nil
}

func (t *memTx) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	task, ok := st.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

func (t *memTx) ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	orgs := make(map[uuid.UUID]bool, len(filter.OrganizationIDs))
	for _, id := range filter.OrganizationIDs {
		orgs[id] = true
	}
	var out []*domain.Task
	for _, task := range st.tasks {
		visible := (task.IsPersonal() && task.CreatedBy == filter.UserID) ||
			(!task.IsPersonal() && orgs[*task.OrganizationID])
		if !visible || (filter.Status != "" && task.Status != filter.Status) {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) UpdateTask(ctx context.Context, task *domain.Task) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	st.tasks[task.ID] = cloneTask(task)
	return nil
}

func (t *memTx) DeleteTask(ctx context.Context, id uuid.UUID) error {
	st, done, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(st.tasks, id)
	return nil
}

func (t *memTx) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	user, ok := st.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyOf(user), nil
}

func (t *memTx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	st, done, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, user := range st.users {
		if strings.EqualFold(user.Email, email) {
			return copyOf(user), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)

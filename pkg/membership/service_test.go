package membership

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/repository"
	"github.com/tendant/teamsync/pkg/sideeffect"
)

type published struct {
	room  string
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, room, event string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: room, event: event})
	return nil
}

func (p *recordingPublisher) has(room, event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.room == room && e.event == event {
			return true
		}
	}
	return false
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recordingRecorder) Record(_ context.Context, e activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingRecorder) actions() []domain.ActivityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ActivityAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	store     *repository.MemoryStore
	service   *Service
	publisher *recordingPublisher
	recorder  *recordingRecorder
	effects   *sideeffect.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryStore(),
		publisher: &recordingPublisher{},
		recorder:  &recordingRecorder{},
		effects:   sideeffect.NewRunner(nil),
	}
	f.service = NewService(Config{}, f.store, f.recorder, f.publisher, f.effects, nil)
	return f
}

func newUser(f *fixture, email, name string) domain.Identity {
	id := uuid.New()
	f.store.PutUser(domain.User{ID: id, Email: email, Name: name})
	return domain.Identity{UserID: id, Email: email}
}

func (f *fixture) addMember(t *testing.T, orgID uuid.UUID, user domain.Identity, role domain.Role) {
	t.Helper()
	ctx := context.Background()
	err := f.store.Atomically(ctx, func(tx repository.Tx) error {
		org, err := tx.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		_, err = AddMember(ctx, tx, org, user, role, org.OwnerID, org.CreatedAt)
		return err
	})
	if err != nil {
		t.Fatalf("AddMember(%s): %v", user.Email, err)
	}
}

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")

	view, err := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "  Acme  "})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if view.Name != "Acme" {
		t.Errorf("Name = %q, want Acme", view.Name)
	}
	if view.Plan != domain.PlanFree || view.MaxMembers != domain.DefaultMaxMembers {
		t.Errorf("defaults = (%s, %d), want (free, %d)", view.Plan, view.MaxMembers, domain.DefaultMaxMembers)
	}
	if view.Role != domain.RoleOwner || !view.IsOwner || view.MemberCount != 1 {
		t.Errorf("view = %+v, want OWNER with one member", view)
	}

	got, err := f.service.GetOrganization(ctx, owner, view.ID)
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if got.MemberCount != 1 || got.Role != domain.RoleOwner {
		t.Errorf("GetOrganization = %+v", got)
	}
}

func TestCreateOrganizationValidation(t *testing.T) {
	f := newFixture(t)
	owner := newUser(f, "a@x.com", "Alice")

	tests := []struct {
		name  string
		input CreateOrganizationInput
		field string
	}{
		{"short name", CreateOrganizationInput{Name: "A"}, "name"},
		{"unknown plan", CreateOrganizationInput{Name: "Acme", Plan: "gold"}, "plan"},
		{"negative limit", CreateOrganizationInput{Name: "Acme", MaxMembers: -1}, "maxMembers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateOrganization(context.Background(), owner, tt.input)
			var derr *domain.Error
			if !errors.As(err, &derr) || derr.Kind != domain.KindValidation {
				t.Fatalf("err = %v, want validation error", err)
			}
			if len(derr.Fields) != 1 || derr.Fields[0].Field != tt.field {
				t.Errorf("fields = %+v, want %s", derr.Fields, tt.field)
			}
		})
	}
}

func TestGetOrganizationRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	stranger := newUser(f, "s@x.com", "Sam")

	view, err := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if _, err := f.service.GetOrganization(ctx, stranger, view.ID); !errors.Is(err, domain.ErrNotMember) {
		t.Errorf("GetOrganization(stranger) = %v, want ErrNotMember", err)
	}
}

func TestListOrganizations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := newUser(f, "a@x.com", "Alice")
	bob := newUser(f, "b@x.com", "Bob")

	acme, _ := f.service.CreateOrganization(ctx, alice, CreateOrganizationInput{Name: "Acme"})
	if _, err := f.service.CreateOrganization(ctx, bob, CreateOrganizationInput{Name: "Globex"}); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	f.addMember(t, acme.ID, bob, domain.RoleMember)

	orgs, err := f.service.ListOrganizations(ctx, bob)
	if err != nil {
		t.Fatalf("ListOrganizations: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("len = %d, want 2", len(orgs))
	}
	for _, o := range orgs {
		switch o.Name {
		case "Acme":
			if o.Role != domain.RoleMember || o.IsOwner {
				t.Errorf("Acme view = %+v", o)
			}
		case "Globex":
			if o.Role != domain.RoleOwner || !o.IsOwner {
				t.Errorf("Globex view = %+v", o)
			}
		}
	}
}

func TestUpdateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	admin := newUser(f, "b@x.com", "Bob")
	viewer := newUser(f, "c@x.com", "Carol")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	f.addMember(t, org.ID, admin, domain.RoleAdmin)
	f.addMember(t, org.ID, viewer, domain.RoleViewer)

	name := "Acme Corp"
	updated, err := f.service.UpdateOrganization(ctx, admin, org.ID, UpdateOrganizationInput{Name: &name})
	if err != nil {
		t.Fatalf("UpdateOrganization(admin): %v", err)
	}
	if updated.Name != name {
		t.Errorf("Name = %q, want %q", updated.Name, name)
	}

	if _, err := f.service.UpdateOrganization(ctx, viewer, org.ID, UpdateOrganizationInput{Name: &name}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("UpdateOrganization(viewer) = %v, want ErrAccessDenied", err)
	}

	two := 2
	if _, err := f.service.UpdateOrganization(ctx, owner, org.ID, UpdateOrganizationInput{MaxMembers: &two}); !errors.Is(err, domain.ErrMemberLimitTooLow) {
		t.Errorf("lowering below count = %v, want ErrMemberLimitTooLow", err)
	}

	f.effects.Wait()
	if actions := f.recorder.actions(); len(actions) != 1 || actions[0] != domain.ActionOrganizationUpdate {
		t.Errorf("actions = %v, want [ORGANIZATION_UPDATE]", actions)
	}
}

func TestDeleteOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	admin := newUser(f, "b@x.com", "Bob")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	f.addMember(t, org.ID, admin, domain.RoleAdmin)

	if err := f.service.DeleteOrganization(ctx, admin, org.ID); !errors.Is(err, domain.ErrOwnerOnly) {
		t.Fatalf("DeleteOrganization(admin) = %v, want ErrOwnerOnly", err)
	}
	if err := f.service.DeleteOrganization(ctx, owner, org.ID); err != nil {
		t.Fatalf("DeleteOrganization(owner): %v", err)
	}
	if _, err := f.store.GetOrganization(ctx, org.ID); !errors.Is(err, domain.ErrOrganizationNotFound) {
		t.Errorf("GetOrganization after delete = %v, want ErrOrganizationNotFound", err)
	}
	if ok, _ := f.service.IsActiveMember(ctx, org.ID, admin.UserID); ok {
		t.Error("admin membership survived organization delete")
	}
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	member := newUser(f, "b@x.com", "Bob")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	f.addMember(t, org.ID, member, domain.RoleMember)

	members, err := f.service.ListMembers(ctx, member, org.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	names := map[string]string{}
	for _, m := range members {
		names[m.Email] = m.Name
	}
	if names["a@x.com"] != "Alice" || names["b@x.com"] != "Bob" {
		t.Errorf("names = %v", names)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	admin := newUser(f, "b@x.com", "Bob")
	member := newUser(f, "c@x.com", "Carol")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	f.addMember(t, org.ID, admin, domain.RoleAdmin)
	f.addMember(t, org.ID, member, domain.RoleMember)

	tests := []struct {
		name   string
		caller domain.Identity
		target uuid.UUID
		role   domain.Role
		want   error
	}{
		{"owner promotes member", owner, member.UserID, domain.RoleAdmin, nil},
		{"owner role is immutable", admin, owner.UserID, domain.RoleMember, domain.ErrOwnerImmutable},
		{"admin cannot change own role", admin, admin.UserID, domain.RoleViewer, domain.ErrSelfRoleChange},
		{"unknown target", owner, uuid.New(), domain.RoleMember, domain.ErrMembershipNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.UpdateMemberRole(ctx, tt.caller, org.ID, tt.target, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.service.UpdateMemberRole(ctx, owner, org.ID, member.UserID, domain.RoleOwner); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("assigning OWNER = %v, want validation error", err)
	}

	f.effects.Wait()
	if !f.publisher.has("workspace:"+org.ID.String(), "member:updated") {
		t.Error("member:updated not broadcast")
	}
}

func TestRemoveMemberAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	admin := newUser(f, "b@x.com", "Bob")
	member := newUser(f, "c@x.com", "Carol")
	viewer := newUser(f, "d@x.com", "Dan")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme"})
	f.addMember(t, org.ID, admin, domain.RoleAdmin)
	f.addMember(t, org.ID, member, domain.RoleMember)
	f.addMember(t, org.ID, viewer, domain.RoleViewer)

	if err := f.service.RemoveMember(ctx, member, org.ID, viewer.UserID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("RemoveMember(member) = %v, want ErrAccessDenied", err)
	}
	if err := f.service.RemoveMember(ctx, admin, org.ID, owner.UserID); !errors.Is(err, domain.ErrOwnerNotRemovable) {
		t.Errorf("RemoveMember(owner) = %v, want ErrOwnerNotRemovable", err)
	}
	if err := f.service.RemoveMember(ctx, admin, org.ID, admin.UserID); !errors.Is(err, domain.ErrSelfRemoval) {
		t.Errorf("RemoveMember(self) = %v, want ErrSelfRemoval", err)
	}
	if err := f.service.RemoveMember(ctx, admin, org.ID, viewer.UserID); err != nil {
		t.Fatalf("RemoveMember(viewer): %v", err)
	}

	if err := f.service.Leave(ctx, owner, org.ID); !errors.Is(err, domain.ErrOwnerCannotLeave) {
		t.Errorf("Leave(owner) = %v, want ErrOwnerCannotLeave", err)
	}
	if err := f.service.Leave(ctx, member, org.ID); err != nil {
		t.Fatalf("Leave(member): %v", err)
	}
	if err := f.service.Leave(ctx, member, org.ID); !errors.Is(err, domain.ErrMembershipNotFound) {
		t.Errorf("second Leave = %v, want ErrMembershipNotFound", err)
	}

	count, err := f.store.CountActiveMemberships(ctx, org.ID)
	if err != nil {
		t.Fatalf("CountActiveMemberships: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	f.effects.Wait()
	if !f.publisher.has("user:"+viewer.UserID.String(), "member:removed") {
		t.Error("member:removed not sent to the removed user")
	}
	actions := f.recorder.actions()
	if len(actions) != 2 || actions[0] == actions[1] {
		t.Errorf("actions = %v, want MEMBER_REMOVE and MEMBER_LEAVE", actions)
	}
}

func TestAddMemberEnforcesLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newUser(f, "a@x.com", "Alice")
	other := newUser(f, "b@x.com", "Bob")

	org, _ := f.service.CreateOrganization(ctx, owner, CreateOrganizationInput{Name: "Acme", MaxMembers: 1})

	err := f.store.Atomically(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockOrganization(ctx, org.ID)
		if err != nil {
			return err
		}
		_, err = AddMember(ctx, tx, locked, other, domain.RoleMember, owner.UserID, locked.CreatedAt)
		return err
	})
	if !errors.Is(err, domain.ErrMemberLimitReached) {
		t.Errorf("AddMember over limit = %v, want ErrMemberLimitReached", err)
	}

	err = f.store.Atomically(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockOrganization(ctx, org.ID)
		if err != nil {
			return err
		}
		_, err = AddMember(ctx, tx, locked, owner, domain.RoleMember, owner.UserID, locked.CreatedAt)
		return err
	})
	if !errors.Is(err, domain.ErrAlreadyMember) {
		t.Errorf("AddMember(existing) = %v, want ErrAlreadyMember", err)
	}
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := newUser(f, "a@x.com", "Alice")
	bob := newUser(f, "b@x.com", "Bob")

	view, err := f.service.CreateOrganization(ctx, alice, CreateOrganizationInput{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	f.addMember(t, view.ID, bob, domain.RoleViewer)

	profile, err := f.service.Profile(ctx, bob)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.Name != "Bob" || profile.Email != "b@x.com" {
		t.Errorf("profile = %+v", profile)
	}
	if len(profile.Organizations) != 1 || profile.Organizations[0].Role != domain.RoleViewer || profile.Organizations[0].IsOwner {
		t.Errorf("organizations = %+v", profile.Organizations)
	}

	unknown := domain.Identity{UserID: uuid.New(), Email: "new@x.com"}
	profile, err = f.service.Profile(ctx, unknown)
	if err != nil {
		t.Fatalf("Profile(unknown): %v", err)
	}
	if profile.Email != "new@x.com" || len(profile.Organizations) != 0 {
		t.Errorf("profile = %+v", profile)
	}
}

package rbac

import (
	"testing"

	"github.com/tendant/teamsync/pkg/domain"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		capability Capability
		want       bool
	}{
		{"owner deletes organization", domain.RoleOwner, OrganizationDelete, true},
		{"owner invites", domain.RoleOwner, MembersInvite, true},
		{"owner updates any task", domain.RoleOwner, TasksUpdateAny, true},
		{"admin cannot delete organization", domain.RoleAdmin, OrganizationDelete, false},
		{"admin updates organization", domain.RoleAdmin, OrganizationUpdate, true},
		{"admin changes roles", domain.RoleAdmin, MembersUpdateRole, true},
		{"member creates tasks", domain.RoleMember, TasksCreate, true},
		{"member updates own tasks", domain.RoleMember, TasksUpdateOwn, true},
		{"member cannot update any task", domain.RoleMember, TasksUpdateAny, false},
		{"member cannot invite", domain.RoleMember, MembersInvite, false},
		{"viewer views", domain.RoleViewer, TasksView, true},
		{"viewer cannot create", domain.RoleViewer, TasksCreate, false},
		{"unknown role", domain.Role("SUPERUSER"), TasksView, false},
		{"empty role", domain.Role(""), OrganizationDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.capability); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.capability, got, tt.want)
			}
		})
	}
}

func TestOwnerIsSupersetOfAdmin(t *testing.T) {
	for _, c := range Capabilities(domain.RoleAdmin) {
		if !HasPermission(domain.RoleOwner, c) {
			t.Errorf("owner lacks admin capability %s", c)
		}
	}
	if len(Capabilities(domain.RoleOwner)) != len(Capabilities(domain.RoleAdmin))+1 {
		t.Errorf("owner should hold exactly one capability more than admin")
	}
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities(domain.RoleViewer)
	if len(caps) != 1 || caps[0] != TasksView {
		t.Fatalf("Capabilities(VIEWER) = %v, want [tasks:view]", caps)
	}
	caps[0] = OrganizationDelete
	if HasPermission(domain.RoleViewer, OrganizationDelete) {
		t.Error("mutating the returned slice changed the role's permissions")
	}
}

func TestCapabilitiesUnknownRole(t *testing.T) {
	if caps := Capabilities(domain.Role("nobody")); len(caps) != 0 {
		t.Errorf("Capabilities(unknown) = %v, want empty", caps)
	}
}

func TestRequire(t *testing.T) {
	if err := Require(domain.RoleAdmin, MembersInvite); err != nil {
		t.Errorf("Require(ADMIN, members:invite) = %v, want nil", err)
	}
	if err := Require(domain.RoleViewer, MembersInvite); err != domain.ErrAccessDenied {
		t.Errorf("Require(VIEWER, members:invite) = %v, want ErrAccessDenied", err)
	}
}

// Package rbac maps organization roles to the capabilities they grant.
package rbac

import (
	"sort"

	"github.com/tendant/teamsync/pkg/domain"
)

// Capability names an action gated by role.
type Capability string

const (
	OrganizationDelete Capability = "organization:delete"
	OrganizationUpdate Capability = "organization:update"
	MembersInvite      Capability = "members:invite"
	MembersRemove      Capability = "members:remove"
	MembersUpdateRole  Capability = "members:update_role"
	TasksCreate        Capability = "tasks:create"
	TasksUpdateAny     Capability = "tasks:update_any"
	TasksDeleteAny     Capability = "tasks:delete_any"
	TasksUpdateOwn     Capability = "tasks:update_own"
	TasksDeleteOwn     Capability = "tasks:delete_own"
	TasksView          Capability = "tasks:view"
)

type capabilitySet map[Capability]struct{}

func newSet(caps ...Capability) capabilitySet {
	s := make(capabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var adminCapabilities = []Capability{
	OrganizationUpdate,
	MembersInvite,
	MembersRemove,
	MembersUpdateRole,
	TasksCreate,
	TasksUpdateAny,
	TasksDeleteAny,
}

var permissions = map[domain.Role]capabilitySet{
	domain.RoleOwner:  newSet(append([]Capability{OrganizationDelete}, adminCapabilities...)...),
	domain.RoleAdmin:  newSet(adminCapabilities...),
	domain.RoleMember: newSet(TasksCreate, TasksUpdateOwn, TasksDeleteOwn),
	domain.RoleViewer: newSet(TasksView),
}

// HasPermission reports whether role grants capability. Unknown roles grant nothing.
func HasPermission(role domain.Role, capability Capability) bool {
	set, ok := permissions[role]
	if !ok {
		return false
	}
	_, ok = set[capability]
	return ok
}

// Capabilities returns the capabilities granted to role, sorted by name.
// The returned slice is a copy and may be modified by the caller.
func Capabilities(role domain.Role) []Capability {
	set := permissions[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Require returns domain.ErrAccessDenied unless role grants capability.
func Require(role domain.Role, capability Capability) error {
	if !HasPermission(role, capability) {
		return domain.ErrAccessDenied
	}
	return nil
}

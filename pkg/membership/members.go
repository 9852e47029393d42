package membership

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/rbac"
	"github.com/tendant/teamsync/pkg/realtime"
	"github.com/tendant/teamsync/pkg/repository"
)

// MemberView is a membership enriched with the member's display name.
type MemberView struct {
	ID       uuid.UUID   `json:"id"`
	UserID   uuid.UUID   `json:"userId"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

// ListMembers returns the active members of an organization to any of its members.
func (s *Service) ListMembers(ctx context.Context, caller domain.Identity, orgID uuid.UUID) ([]MemberView, error) {
	if _, err := RequireMember(ctx, s.store, orgID, caller.UserID); err != nil {
		return nil, err
	}

	members, err := s.store.ListActiveMemberships(ctx, orgID)
	if err != nil {
		return nil, err
	}

	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		view := MemberView{
			ID:       m.ID,
			UserID:   m.UserID,
			Email:    m.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
		user, err := s.store.GetUser(ctx, m.UserID)
		switch {
		case err == nil:
			view.Name = user.Name
		case errors.Is(err, domain.ErrUserNotFound):
		default:
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateMemberRole changes the role of target. Requires members:update_role.
// The owner's role never changes.
func (s *Service) UpdateMemberRole(ctx context.Context, caller domain.Identity, orgID, targetUserID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	if !role.IsAssignable() {
		return nil, domain.ValidationError(domain.FieldViolation{
			Field:   "role",
			Message: "role must be one of ADMIN, MEMBER, VIEWER",
		})
	}

	var (
		updated  *domain.Membership
		previous domain.Role
	)
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		actor, err := RequireMember(ctx, tx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if err := rbac.Require(actor.Role, rbac.MembersUpdateRole); err != nil {
			return err
		}

		target, err := tx.GetActiveMembership(ctx, orgID, targetUserID)
		if err != nil {
			return err
		}
		if target.Role == domain.RoleOwner {
			return domain.ErrOwnerImmutable
		}
		if target.UserID == caller.UserID {
			return domain.ErrSelfRoleChange
		}

		if err := tx.UpdateMembershipRole(ctx, target.ID, role); err != nil {
			return err
		}
		previous = target.Role
		target.Role = role
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         domain.ActionMemberRoleUpdate,
		EntityType:     domain.EntityMember,
		EntityID:       targetUserID.String(),
		Metadata: map[string]any{
			"email":   updated.Email,
			"oldRole": previous,
			"newRole": role,
		},
	})
	s.broadcast(ctx, realtime.WorkspaceRoom(orgID), realtime.EventMemberUpdated, map[string]any{
		"organizationId": orgID,
		"userId":         targetUserID,
		"role":           role,
	})

	return updated, nil
}

// RemoveMember deletes target's membership. Requires members:remove.
func (s *Service) RemoveMember(ctx context.Context, caller domain.Identity, orgID, targetUserID uuid.UUID) error {
	var removed *domain.Membership
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		actor, err := RequireMember(ctx, tx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if err := rbac.Require(actor.Role, rbac.MembersRemove); err != nil {
			return err
		}

		target, err := tx.GetActiveMembership(ctx, orgID, targetUserID)
		if err != nil {
			return err
		}
		if target.Role == domain.RoleOwner {
			return domain.ErrOwnerNotRemovable
		}
		if target.UserID == caller.UserID {
			return domain.ErrSelfRemoval
		}

		removed = target
		return tx.DeleteMembership(ctx, target.ID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         domain.ActionMemberRemove,
		EntityType:     domain.EntityMember,
		EntityID:       targetUserID.String(),
		Metadata: map[string]any{
			"email": removed.Email,
			"role":  removed.Role,
		},
	})
	s.announceRemoval(ctx, orgID, targetUserID)
	return nil
}

// Leave removes the caller's own membership. The owner cannot leave.
func (s *Service) Leave(ctx context.Context, caller domain.Identity, orgID uuid.UUID) error {
	var left *domain.Membership
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		m, err := tx.GetActiveMembership(ctx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if m.Role == domain.RoleOwner {
			return domain.ErrOwnerCannotLeave
		}
		left = m
		return tx.DeleteMembership(ctx, m.ID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         domain.ActionMemberLeave,
		EntityType:     domain.EntityMember,
		EntityID:       caller.UserID.String(),
		Metadata: map[string]any{
			"email": left.Email,
			"role":  left.Role,
		},
	})
	s.announceRemoval(ctx, orgID, caller.UserID)
	return nil
}

func (s *Service) announceRemoval(ctx context.Context, orgID, userID uuid.UUID) {
	payload := map[string]any{
		"organizationId": orgID,
		"userId":         userID,
	}
	s.broadcast(ctx, realtime.WorkspaceRoom(orgID), realtime.EventMemberRemoved, payload)
	s.broadcast(ctx, realtime.UserRoom(userID), realtime.EventMemberRemoved, payload)
}

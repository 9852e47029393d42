package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/rbac"
	"github.com/tendant/teamsync/pkg/repository"
	"github.com/tendant/teamsync/pkg/validate"
)

// CreateOrganizationInput is the payload of CreateOrganization.
type CreateOrganizationInput struct {
	Name       string
	Plan       domain.Plan
	MaxMembers int
}

// UpdateOrganizationInput is a partial update; nil fields are left unchanged.
type UpdateOrganizationInput struct {
	Name       *string
	Plan       *domain.Plan
	MaxMembers *int
}

// OrganizationView is an organization as seen by one of its members.
type OrganizationView struct {
	domain.Organization
	Role        domain.Role `json:"role"`
	IsOwner     bool        `json:"isOwner"`
	MemberCount int         `json:"memberCount,omitempty"`
}

func validateName(errs *validate.Errors, name string) {
	errs.Check("name", validate.Length("Workspace name", name, 2, 100))
}

func validateMaxMembers(errs *validate.Errors, n int) {
	if n <= 0 {
		errs.Check("maxMembers", "maxMembers must be a positive integer")
	}
}

// CreateOrganization creates an organization owned by caller together with
// the caller's OWNER membership.
func (s *Service) CreateOrganization(ctx context.Context, caller domain.Identity, input CreateOrganizationInput) (*OrganizationView, error) {
	input.Name = validate.CleanText(input.Name)
	if input.Plan == "" {
		input.Plan = domain.PlanFree
	}
	if input.MaxMembers == 0 {
		input.MaxMembers = s.config.DefaultMaxMembers
	}

	var errs validate.Errors
	validateName(&errs, input.Name)
	if !input.Plan.IsValid() {
		errs.Check("plan", "plan must be one of free, pro, business, enterprise")
	}
	validateMaxMembers(&errs, input.MaxMembers)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	org := &domain.Organization{
		ID:         uuid.New(),
		Name:       input.Name,
		OwnerID:    caller.UserID,
		Plan:       input.Plan,
		MaxMembers: input.MaxMembers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	owner := &domain.Membership{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		UserID:         caller.UserID,
		Email:          caller.Email,
		Role:           domain.RoleOwner,
		Status:         domain.MembershipStatusActive,
		InvitedBy:      caller.UserID,
		JoinedAt:       now,
	}

	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		if err := tx.CreateMembership(ctx, owner); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization created", "organization_id", org.ID, "owner_id", caller.UserID)

	return &OrganizationView{
		Organization: *org,
		Role:         domain.RoleOwner,
		IsOwner:      true,
		MemberCount:  1,
	}, nil
}

// ListOrganizations returns every organization the caller actively belongs to.
func (s *Service) ListOrganizations(ctx context.Context, caller domain.Identity) ([]OrganizationView, error) {
	rows, err := s.store.ListOrganizationsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]OrganizationView, 0, len(rows))
	for _, row := range rows {
		views = append(views, OrganizationView{
			Organization: row.Organization,
			Role:         row.Membership.Role,
			IsOwner:      row.Organization.IsOwnedBy(caller.UserID),
		})
	}
	return views, nil
}

// GetOrganization returns an organization with the caller's role and the live member count.
func (s *Service) GetOrganization(ctx context.Context, caller domain.Identity, orgID uuid.UUID) (*OrganizationView, error) {
	var view *OrganizationView
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		m, err := RequireMember(ctx, tx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		org, err := tx.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		count, err := tx.CountActiveMemberships(ctx, orgID)
		if err != nil {
			return err
		}
		view = &OrganizationView{
			Organization: *org,
			Role:         m.Role,
			IsOwner:      org.IsOwnedBy(caller.UserID),
			MemberCount:  count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateOrganization applies patch to an organization. Requires organization:update.
func (s *Service) UpdateOrganization(ctx context.Context, caller domain.Identity, orgID uuid.UUID, patch UpdateOrganizationInput) (*domain.Organization, error) {
	var errs validate.Errors
	if patch.Name != nil {
		name := validate.CleanText(*patch.Name)
		patch.Name = &name
		validateName(&errs, name)
	}
	if patch.Plan != nil && !patch.Plan.IsValid() {
		errs.Check("plan", "plan must be one of free, pro, business, enterprise")
	}
	if patch.MaxMembers != nil {
		validateMaxMembers(&errs, *patch.MaxMembers)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var updated *domain.Organization
	changes := map[string]any{}
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		m, err := RequireMember(ctx, tx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if err := rbac.Require(m.Role, rbac.OrganizationUpdate); err != nil {
			return err
		}

		org, err := tx.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			org.Name = *patch.Name
			changes["name"] = *patch.Name
		}
		if patch.Plan != nil {
			org.Plan = *patch.Plan
			changes["plan"] = *patch.Plan
		}
		if patch.MaxMembers != nil {
			count, err := tx.CountActiveMemberships(ctx, orgID)
			if err != nil {
				return err
			}
			if *patch.MaxMembers < count {
				return domain.ErrMemberLimitTooLow
			}
			org.MaxMembers = *patch.MaxMembers
			changes["maxMembers"] = *patch.MaxMembers
		}
		org.UpdatedAt = s.now().UTC()

		if err := tx.UpdateOrganization(ctx, org); err != nil {
			return err
		}
		updated = org
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         domain.ActionOrganizationUpdate,
		EntityType:     domain.EntityOrganization,
		EntityID:       orgID.String(),
		Metadata:       changes,
	})

	return updated, nil
}

// DeleteOrganization removes an organization with all of its memberships,
// invitations and tasks. Only the owner may delete.
func (s *Service) DeleteOrganization(ctx context.Context, caller domain.Identity, orgID uuid.UUID) error {
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		org, err := tx.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if !org.IsOwnedBy(caller.UserID) {
			return domain.ErrOwnerOnly
		}
		return tx.DeleteOrganization(ctx, orgID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("organization deleted", "organization_id", orgID, "user_id", caller.UserID)
	return nil
}

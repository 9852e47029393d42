package membership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// Profile is the caller together with the organizations they belong to.
type Profile struct {
	ID            uuid.UUID          `json:"id"`
	Email         string             `json:"email"`
	Name          string             `json:"name,omitempty"`
	Organizations []OrganizationView `json:"organizations"`
}

// Profile returns the caller's account and memberships. Accounts are owned by
// the identity service, so a caller without a user record is described from
// the token alone.
func (s *Service) Profile(ctx context.Context, caller domain.Identity) (*Profile, error) {
	profile := &Profile{ID: caller.UserID, Email: caller.Email}

	user, err := s.store.GetUser(ctx, caller.UserID)
	switch {
	case err == nil:
		profile.Email = user.Email
		profile.Name = user.Name
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return nil, err
	}

	orgs, err := s.ListOrganizations(ctx, caller)
	if err != nil {
		return nil, err
	}
	profile.Organizations = orgs
	return profile, nil
}

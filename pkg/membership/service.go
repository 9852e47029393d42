// Package membership manages organizations and the memberships inside them.
package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/realtime"
	"github.com/tendant/teamsync/pkg/repository"
	"github.com/tendant/teamsync/pkg/sideeffect"
)

// ActivityRecorder appends to the audit trail.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// Config holds membership service configuration.
type Config struct {
	DefaultMaxMembers int
}

// Service implements organization and member management.
type Service struct {
	config    Config
	store     repository.Store
	recorder  ActivityRecorder
	publisher realtime.Publisher
	effects   *sideeffect.Runner
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a membership service.
func NewService(
	config Config,
	store repository.Store,
	recorder ActivityRecorder,
	publisher realtime.Publisher,
	effects *sideeffect.Runner,
	logger *slog.Logger,
) *Service {
	if config.DefaultMaxMembers <= 0 {
		config.DefaultMaxMembers = domain.DefaultMaxMembers
	}
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if effects == nil {
		effects = sideeffect.NewRunner(logger)
	}
	return &Service{
		config:    config,
		store:     store,
		recorder:  recorder,
		publisher: publisher,
		effects:   effects,
		logger:    logger,
		now:       time.Now,
	}
}

// RequireMember returns the caller's active membership, or ErrNotMember.
func RequireMember(ctx context.Context, tx repository.Tx, orgID, userID uuid.UUID) (*domain.Membership, error) {
	m, err := tx.GetActiveMembership(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrNotMember
		}
		return nil, err
	}
	return m, nil
}

// AddMember creates an active membership for user in org, enforcing the
// member limit and one active membership per user. Run it inside a unit of
// work that has locked org.
func AddMember(ctx context.Context, tx repository.Tx, org *domain.Organization, user domain.Identity, role domain.Role, invitedBy uuid.UUID, now time.Time) (*domain.Membership, error) {
	if _, err := tx.GetActiveMembership(ctx, org.ID, user.UserID); err == nil {
		return nil, domain.ErrAlreadyMember
	} else if !errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, err
	}

	count, err := tx.CountActiveMemberships(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	if count >= org.MaxMembers {
		return nil, domain.ErrMemberLimitReached
	}

	m := &domain.Membership{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		UserID:         user.UserID,
		Email:          user.Email,
		Role:           role,
		Status:         domain.MembershipStatusActive,
		InvitedBy:      invitedBy,
		JoinedAt:       now,
	}
	if err := tx.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// IsActiveMember reports whether userID holds an active membership in orgID.
func (s *Service) IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	_, err := s.store.GetActiveMembership(ctx, orgID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.recorder == nil {
		return
	}
	s.effects.Go(ctx, "activity:"+string(e.Action), func(ctx context.Context) error {
		s.recorder.Record(ctx, e)
		return nil
	})
}

func (s *Service) broadcast(ctx context.Context, room, event string, data any) {
	s.effects.Go(ctx, event, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, room, event, data)
	})
}

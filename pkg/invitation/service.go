// Package invitation implements the invite, accept, decline, resend and revoke
// lifecycle of organization invitations.
package invitation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/membership"
	"github.com/tendant/teamsync/pkg/rbac"
	"github.com/tendant/teamsync/pkg/realtime"
	"github.com/tendant/teamsync/pkg/repository"
	"github.com/tendant/teamsync/pkg/sideeffect"
	"github.com/tendant/teamsync/pkg/validate"
)

// TokenBytes is the number of random bytes in an invitation token.
// Tokens are hex encoded, so they are twice as long.
const TokenBytes = 32

// Email is the message sent to an invitee.
type Email struct {
	To               string
	OrganizationName string
	InviterName      string
	Role             domain.Role
	Link             string
	ExpiresAt        time.Time
}

// Mailer delivers invitation emails.
type Mailer interface {
	SendInvitation(ctx context.Context, msg Email) error
}

// ActivityRecorder appends to the audit trail.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// Config holds invitation service configuration.
type Config struct {
	// AppBaseURL is the web client origin used to build acceptance links.
	AppBaseURL string
	TTL        time.Duration
}

// Service manages invitations.
type Service struct {
	config    Config
	store     repository.Store
	mailer    Mailer
	recorder  ActivityRecorder
	publisher realtime.Publisher
	effects   *sideeffect.Runner
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates an invitation service.
func NewService(
	config Config,
	store repository.Store,
	mailer Mailer,
	recorder ActivityRecorder,
	publisher realtime.Publisher,
	effects *sideeffect.Runner,
	logger *slog.Logger,
) *Service {
	if config.TTL <= 0 {
		config.TTL = domain.DefaultInvitationTTL
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
		mailer:    mailer,
		recorder:  recorder,
		publisher: publisher,
		effects:   effects,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateToken returns a new random invitation token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Link builds the acceptance link for token.
func (s *Service) Link(token string) string {
	return strings.TrimRight(s.config.AppBaseURL, "/") + "/invite/accept?token=" + url.QueryEscape(token)
}

// SendResult is the outcome of Send.
type SendResult struct {
	Invitation *domain.Invitation
	Link       string
}

// Send invites email to join orgID with role. Requires members:invite.
func (s *Service) Send(ctx context.Context, caller domain.Identity, orgID uuid.UUID, rawEmail string, role domain.Role) (*SendResult, error) {
	email, msg := validate.Email(rawEmail)
	var errs validate.Errors
	errs.Check("email", msg)
	if !role.IsAssignable() {
		errs.Check("role", "role must be one of ADMIN, MEMBER, VIEWER")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inv := &domain.Invitation{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Email:          email,
		InvitedBy:      caller.UserID,
		Role:           role,
		Token:          token,
		Status:         domain.InvitationStatusPending,
		ExpiresAt:      now.Add(s.config.TTL),
		CreatedAt:      now,
	}

	var org *domain.Organization
	err = s.store.Atomically(ctx, func(tx repository.Tx) error {
		actor, err := membership.RequireMember(ctx, tx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if err := rbac.Require(actor.Role, rbac.MembersInvite); err != nil {
			return err
		}

		org, err = tx.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}

		members, err := tx.ListActiveMemberships(ctx, orgID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if validate.NormalizeEmail(m.Email) == email {
				return domain.ErrAlreadyMember
			}
		}
		if len(members) >= org.MaxMembers {
			return domain.ErrMemberLimitReached
		}

		if _, err := tx.FindPendingInvitation(ctx, orgID, email); err == nil {
			return domain.ErrInvitationExists
		} else if !errors.Is(err, domain.ErrInvitationNotFound) {
			return err
		}

		return tx.CreateInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation sent",
		"invitation_id", inv.ID,
		"organization_id", orgID,
		"invited_by", caller.UserID,
	)

	inviterName := s.userName(ctx, caller.UserID)
	link := s.Link(token)
	s.sendEmail(ctx, inv, org.Name, inviterName, link)
	s.record(ctx, activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         domain.ActionInvitationSend,
		EntityType:     domain.EntityInvitation,
		EntityID:       inv.ID.String(),
		Metadata:       map[string]any{"email": email, "role": role},
	})
	s.notifyInvitee(ctx, email, org, inviterName)

	return &SendResult{Invitation: inv, Link: link}, nil
}

// Summary describes a valid invitation to its prospective recipient.
type Summary struct {
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	OrganizationName string      `json:"organizationName"`
	InvitedBy        string      `json:"invitedBy"`
	ExpiresAt        time.Time   `json:"expiresAt"`
}

// Validate reports whether token names an acceptable invitation. It never mutates state.
func (s *Service) Validate(ctx context.Context, token string) (*Summary, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !inv.IsValid(s.now()) {
		return nil, domain.ErrInvitationExpired
	}

	summary := &Summary{
		Email:            inv.Email,
		Role:             inv.Role,
		OrganizationName: "Unknown",
		InvitedBy:        "Unknown",
		ExpiresAt:        inv.ExpiresAt,
	}
	if org, err := s.store.GetOrganization(ctx, inv.OrganizationID); err == nil {
		summary.OrganizationName = org.Name
	} else if !errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, err
	}
	if user, err := s.store.GetUser(ctx, inv.InvitedBy); err == nil && user.Name != "" {
		summary.InvitedBy = user.Name
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	return summary, nil
}

// AcceptResult is the organization joined by Accept.
type AcceptResult struct {
	OrganizationID   uuid.UUID   `json:"id"`
	OrganizationName string      `json:"name"`
	Role             domain.Role `json:"role"`
}

// Accept turns the invitation named by token into an active membership for caller.
// Anyone holding the token may accept it.
func (s *Service) Accept(ctx context.Context, caller domain.Identity, token string) (*AcceptResult, error) {
	var (
		inv    *domain.Invitation
		org    *domain.Organization
		member *domain.Membership
	)
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		inv, err = tx.LockInvitationByToken(ctx, token)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !inv.IsValid(now) {
			return domain.ErrInvitationNotValid
		}

		org, err = tx.LockOrganization(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}
		member, err = membership.AddMember(ctx, tx, org, caller, inv.Role, inv.InvitedBy, now)
		if err != nil {
			return err
		}

		inv.Status = domain.InvitationStatusAccepted
		return tx.UpdateInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted",
		"invitation_id", inv.ID,
		"organization_id", org.ID,
		"user_id", caller.UserID,
	)

	s.record(ctx, activity.Entry{
		OrganizationID: org.ID,
		Actor:          caller,
		Action:         domain.ActionMemberAdd,
		EntityType:     domain.EntityMember,
		EntityID:       caller.UserID.String(),
		Metadata: map[string]any{
			"email":     caller.Email,
			"role":      inv.Role,
			"invitedBy": inv.InvitedBy,
		},
	})
	s.broadcast(ctx, realtime.WorkspaceRoom(org.ID), realtime.EventMemberJoined, map[string]any{
		"organizationId": org.ID,
		"userId":         member.UserID,
		"email":          member.Email,
		"role":           member.Role,
	})

	return &AcceptResult{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Role:             inv.Role,
	}, nil
}

// Decline marks a pending invitation as revoked on behalf of its recipient.
func (s *Service) Decline(ctx context.Context, token string) error {
	return s.store.Atomically(ctx, func(tx repository.Tx) error {
		inv, err := tx.LockInvitationByToken(ctx, token)
		if err != nil {
			return err
		}
		if !inv.IsPending() {
			return domain.ErrInvitationNotPending
		}
		inv.Status = domain.InvitationStatusRevoked
		return tx.UpdateInvitation(ctx, inv)
	})
}

// Resend extends a pending invitation and emails it again with the same token.
// Requires members:invite.
func (s *Service) Resend(ctx context.Context, caller domain.Identity, id uuid.UUID) (*domain.Invitation, error) {
	var (
		inv *domain.Invitation
		org *domain.Organization
	)
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		inv, err = s.authorize(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if !inv.IsPending() {
			return domain.ErrInvitationNotPending
		}
		org, err = tx.GetOrganization(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}
		inv.ExpiresAt = s.now().UTC().Add(s.config.TTL)
		return tx.UpdateInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.sendEmail(ctx, inv, org.Name, s.userName(ctx, inv.InvitedBy), s.Link(inv.Token))
	s.record(ctx, activity.Entry{
		OrganizationID: inv.OrganizationID,
		Actor:          caller,
		Action:         domain.ActionInvitationResend,
		EntityType:     domain.EntityInvitation,
		EntityID:       inv.ID.String(),
		Metadata:       map[string]any{"email": inv.Email},
	})

	return inv, nil
}

// Revoke cancels a pending invitation. Requires members:invite.
func (s *Service) Revoke(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	var inv *domain.Invitation
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		inv, err = s.authorize(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if !inv.IsPending() {
			return domain.ErrInvitationNotPending
		}
		inv.Status = domain.InvitationStatusRevoked
		return tx.UpdateInvitation(ctx, inv)
	})
	if err != nil {
		return err
	}

	s.record(ctx, activity.Entry{
		OrganizationID: inv.OrganizationID,
		Actor:          caller,
		Action:         domain.ActionInvitationRevoke,
		EntityType:     domain.EntityInvitation,
		EntityID:       inv.ID.String(),
		Metadata:       map[string]any{"email": inv.Email},
	})
	return nil
}

// ListPending returns the pending invitations of an organization to any of its members.
func (s *Service) ListPending(ctx context.Context, caller domain.Identity, orgID uuid.UUID) ([]*domain.Invitation, error) {
	if _, err := membership.RequireMember(ctx, s.store, orgID, caller.UserID); err != nil {
		return nil, err
	}
	invitations, err := s.store.ListPendingInvitations(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if invitations == nil {
		invitations = []*domain.Invitation{}
	}
	return invitations, nil
}

// authorize loads invitation id and checks that caller may manage it.
func (s *Service) authorize(ctx context.Context, tx repository.Tx, caller domain.Identity, id uuid.UUID) (*domain.Invitation, error) {
	inv, err := tx.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := membership.RequireMember(ctx, tx, inv.OrganizationID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(actor.Role, rbac.MembersInvite); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) userName(ctx context.Context, userID uuid.UUID) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Warn("failed to load user", "user_id", userID, "error", err)
	}
	return user.DisplayName()
}

func (s *Service) sendEmail(ctx context.Context, inv *domain.Invitation, orgName, inviterName, link string) {
	if s.mailer == nil {
		return
	}
	msg := Email{
		To:               inv.Email,
		OrganizationName: orgName,
		InviterName:      inviterName,
		Role:             inv.Role,
		Link:             link,
		ExpiresAt:        inv.ExpiresAt,
	}
	s.effects.Go(ctx, "invitation email", func(ctx context.Context) error {
		return s.mailer.SendInvitation(ctx, msg)
	})
}

// notifyInvitee tells an invitee who already has an account about the invitation.
func (s *Service) notifyInvitee(ctx context.Context, email string, org *domain.Organization, inviterName string) {
	s.effects.Go(ctx, realtime.EventNotificationInvite, func(ctx context.Context) error {
		user, err := s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.publisher.Publish(ctx, realtime.UserRoom(user.ID), realtime.EventNotificationInvite, map[string]any{
			"message":        "You were invited to " + org.Name,
			"organizationId": org.ID,
			"by":             inviterName,
		})
	})
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

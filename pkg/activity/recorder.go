// Package activity keeps the append-only audit trail of workspace mutations.
package activity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/realtime"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Store persists activity entries.
type Store interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
	// ListByOrganization returns at most limit entries, newest first.
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*domain.ActivityLogEntry, error)
}

// MembershipReader resolves the caller's membership for List.
type MembershipReader interface {
	GetActiveMembership(ctx context.Context, orgID, userID uuid.UUID) (*domain.Membership, error)
}

// Entry describes one mutation to record.
type Entry struct {
	OrganizationID uuid.UUID
	Actor          domain.Identity
	Action         domain.ActivityAction
	EntityType     domain.EntityType
	EntityID       string
	Metadata       map[string]any
}

// Recorder writes activity entries and announces them to the workspace.
type Recorder struct {
	store     Store
	publisher realtime.Publisher
	members   MembershipReader
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(store Store, publisher realtime.Publisher, members MembershipReader, logger *slog.Logger) *Recorder {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:     store,
		publisher: publisher,
		members:   members,
		logger:    logger,
		now:       time.Now,
	}
}

// Record appends e and publishes activity:new to the organization room.
// Failures are logged and never returned; the audit trail is best-effort.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	entry := &domain.ActivityLogEntry{
		ID:             uuid.New(),
		OrganizationID: e.OrganizationID,
		UserID:         e.Actor.UserID,
		UserEmail:      e.Actor.Email,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Metadata:       e.Metadata,
		CreatedAt:      r.now().UTC(),
	}
	if entry.UserEmail == "" {
		entry.UserEmail = "Unknown"
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("failed to record activity",
			"organization_id", entry.OrganizationID,
			"action", entry.Action,
			"error", err,
		)
		return
	}

	if err := r.publisher.Publish(ctx, realtime.WorkspaceRoom(entry.OrganizationID), realtime.EventActivityNew, entry); err != nil {
		r.logger.Warn("failed to broadcast activity",
			"organization_id", entry.OrganizationID,
			"action", entry.Action,
			"error", err,
		)
	}
}

// List returns the newest entries of an organization to any active member.
func (r *Recorder) List(ctx context.Context, caller domain.Identity, orgID uuid.UUID, limit int) ([]*domain.ActivityLogEntry, error) {
	if _, err := r.members.GetActiveMembership(ctx, orgID, caller.UserID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrNotMember
		}
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	entries, err := r.store.ListByOrganization(ctx, orgID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.ActivityLogEntry{}
	}
	return entries, nil
}

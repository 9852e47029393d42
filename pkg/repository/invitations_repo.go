package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// InvitationsRepository handles invitation persistence.
type InvitationsRepository struct {
	db *sql.DB
}

// NewInvitationsRepository creates a new invitations repository.
func NewInvitationsRepository(db *sql.DB) *InvitationsRepository {
	return &InvitationsRepository{db: db}
}

const invitationColumns = `id, organization_id, email, invited_by, role, token, status, expires_at, created_at`

func scanInvitation(row interface{ Scan(...any) error }, notFound error) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&inv.InvitedBy,
		&inv.Role,
		&inv.Token,
		&inv.Status,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	return &inv, nil
}

// CreateTx inserts a new invitation within a transaction.
func (r *InvitationsRepository) CreateTx(ctx context.Context, q Querier, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, organization_id, email, invited_by, role, token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		inv.ID,
		inv.OrganizationID,
		inv.Email,
		inv.InvitedBy,
		inv.Role,
		inv.Token,
		inv.Status,
		inv.ExpiresAt,
		inv.CreatedAt,
	)
	return mapWriteError(err, domain.ErrInvitationExists)
}

// GetByID retrieves an invitation by ID.
func (r *InvitationsRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return scanInvitation(q.QueryRowContext(ctx, query, id), domain.ErrInvitationNotFound)
}

const invitationByTokenQuery = `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`

// GetByToken retrieves an invitation by token without locking it.
func (r *InvitationsRepository) GetByToken(ctx context.Context, q Querier, token string) (*domain.Invitation, error) {
	return scanInvitation(q.QueryRowContext(ctx, invitationByTokenQuery, token), domain.ErrInvalidInvitationToken)
}

// GetByTokenForUpdate retrieves an invitation by token and locks its row until the transaction ends.
func (r *InvitationsRepository) GetByTokenForUpdate(ctx context.Context, q Querier, token string) (*domain.Invitation, error) {
	return scanInvitation(q.QueryRowContext(ctx, invitationByTokenQuery+` FOR UPDATE`, token), domain.ErrInvalidInvitationToken)
}

// FindPending retrieves the pending invitation for an email in an organization.
func (r *InvitationsRepository) FindPending(ctx context.Context, q Querier, orgID uuid.UUID, email string) (*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE organization_id = $1 AND email = $2 AND status = 'pending'
	`
	return scanInvitation(q.QueryRowContext(ctx, query, orgID, email), domain.ErrInvitationNotFound)
}

// ListPending retrieves all pending invitations of an organization, newest first.
func (r *InvitationsRepository) ListPending(ctx context.Context, q Querier, orgID uuid.UUID) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE organization_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`

	rows, err := q.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows, domain.ErrInvitationNotFound)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// Update writes the status and expiry of an invitation.
func (r *InvitationsRepository) Update(ctx context.Context, q Querier, inv *domain.Invitation) error {
	result, err := q.ExecContext(ctx,
		`UPDATE invitations SET status = $1, expires_at = $2 WHERE id = $3`,
		inv.Status, inv.ExpiresAt, inv.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrInvitationNotFound)
}

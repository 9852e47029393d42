package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

const membershipColumns = `id, organization_id, user_id, email, role, status, invited_by, joined_at`

func scanMembership(row interface{ Scan(...any) error }) (*domain.Membership, error) {
	var membership domain.Membership
	err := row.Scan(
		&membership.ID,
		&membership.OrganizationID,
		&membership.UserID,
		&membership.Email,
		&membership.Role,
		&membership.Status,
		&membership.InvitedBy,
		&membership.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &membership, nil
}

// Create creates a new membership.
func (r *MembershipsRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return r.CreateTx(ctx, r.db, membership)
}

// CreateTx creates a new membership within a transaction.
// A second active membership for the same user and organization is rejected by
// the memberships_active_unique index.
func (r *MembershipsRepository) CreateTx(ctx context.Context, q Querier, membership *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, organization_id, user_id, email, role, status, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		membership.ID,
		membership.OrganizationID,
		membership.UserID,
		membership.Email,
		membership.Role,
		membership.Status,
		membership.InvitedBy,
		membership.JoinedAt,
	)
	return mapWriteError(err, domain.ErrAlreadyMember)
}

// GetActive retrieves the active membership of a user in an organization.
func (r *MembershipsRepository) GetActive(ctx context.Context, q Querier, orgID, userID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE organization_id = $1 AND user_id = $2 AND status = 'active'
	`
	return scanMembership(q.QueryRowContext(ctx, query, orgID, userID))
}

// ListActive retrieves all active members of an organization.
func (r *MembershipsRepository) ListActive(ctx context.Context, q Querier, orgID uuid.UUID) ([]*domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE organization_id = $1 AND status = 'active'
		ORDER BY joined_at ASC
	`

	rows, err := q.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*domain.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}

	return memberships, rows.Err()
}

// CountActive counts the active members of an organization.
func (r *MembershipsRepository) CountActive(ctx context.Context, q Querier, orgID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND status = 'active'`,
		orgID,
	).Scan(&count)
	return count, err
}

// UpdateRole changes the role of a membership.
func (r *MembershipsRepository) UpdateRole(ctx context.Context, q Querier, id uuid.UUID, role domain.Role) error {
	result, err := q.ExecContext(ctx, `UPDATE memberships SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrMembershipNotFound)
}

// Delete removes a membership record.
func (r *MembershipsRepository) Delete(ctx context.Context, q Querier, id uuid.UUID) error {
	result, err := q.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrMembershipNotFound)
}

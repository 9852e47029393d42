package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// OrganizationsRepository handles organization persistence.
type OrganizationsRepository struct {
	db *sql.DB
}

// NewOrganizationsRepository creates a new organizations repository.
func NewOrganizationsRepository(db *sql.DB) *OrganizationsRepository {
	return &OrganizationsRepository{db: db}
}

const organizationColumns = `id, name, owner_id, plan, max_members, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	var org domain.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.OwnerID,
		&org.Plan,
		&org.MaxMembers,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

// Create creates a new organization.
func (r *OrganizationsRepository) Create(ctx context.Context, org *domain.Organization) error {
	return r.CreateTx(ctx, r.db, org)
}

// CreateTx creates a new organization within a transaction.
func (r *OrganizationsRepository) CreateTx(ctx context.Context, q Querier, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (id, name, owner_id, plan, max_members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.OwnerID,
		org.Plan,
		org.MaxMembers,
		org.CreatedAt,
		org.UpdatedAt,
	)
	return err
}

// GetByID retrieves an organization by ID.
func (r *OrganizationsRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(q.QueryRowContext(ctx, query, id))
}

// GetForUpdate retrieves an organization and locks its row until the transaction ends.
func (r *OrganizationsRepository) GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
	return scanOrganization(q.QueryRowContext(ctx, query, id))
}

// ListForUser retrieves the organizations a user is an active member of.
func (r *OrganizationsRepository) ListForUser(ctx context.Context, q Querier, userID uuid.UUID) ([]OrganizationMembership, error) {
	query := `
		SELECT
			o.id, o.name, o.owner_id, o.plan, o.max_members, o.created_at, o.updated_at,
			m.id, m.organization_id, m.user_id, m.email, m.role, m.status, m.invited_by, m.joined_at
		FROM memberships m
		INNER JOIN organizations o ON m.organization_id = o.id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY m.joined_at ASC
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []OrganizationMembership
	for rows.Next() {
		var result OrganizationMembership
		err := rows.Scan(
			&result.Organization.ID,
			&result.Organization.Name,
			&result.Organization.OwnerID,
			&result.Organization.Plan,
			&result.Organization.MaxMembers,
			&result.Organization.CreatedAt,
			&result.Organization.UpdatedAt,
			&result.Membership.ID,
			&result.Membership.OrganizationID,
			&result.Membership.UserID,
			&result.Membership.Email,
			&result.Membership.Role,
			&result.Membership.Status,
			&result.Membership.InvitedBy,
			&result.Membership.JoinedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// Update writes the mutable fields of an organization.
func (r *OrganizationsRepository) Update(ctx context.Context, q Querier, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, plan = $2, max_members = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := q.ExecContext(ctx, query, org.Name, org.Plan, org.MaxMembers, org.UpdatedAt, org.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrOrganizationNotFound)
}

// Delete removes an organization and everything scoped to it.
// Call it inside a transaction so the cascade is all-or-nothing.
func (r *OrganizationsRepository) Delete(ctx context.Context, q Querier, id uuid.UUID) error {
	for _, query := range []string{
		`DELETE FROM memberships WHERE organization_id = $1`,
		`DELETE FROM invitations WHERE organization_id = $1`,
		`DELETE FROM tasks WHERE organization_id = $1`,
	} {
		if _, err := q.ExecContext(ctx, query, id); err != nil {
			return err
		}
	}

	result, err := q.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrOrganizationNotFound)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// UsersRepository reads user accounts owned by the identity service.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		user domain.User
		name sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Email, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	user.Name = name.String
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, name
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(q.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UsersRepository) GetByEmail(ctx context.Context, q Querier, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name
		FROM users
		WHERE LOWER(email) = $1 AND deleted_at IS NULL
	`
	return scanUser(q.QueryRowContext(ctx, query, strings.ToLower(email)))
}

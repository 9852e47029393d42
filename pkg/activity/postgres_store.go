package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// PostgresStore writes activity to the activity_logs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed activity store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	if entry.Metadata == nil {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO activity_logs (id, organization_id, user_id, user_email, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.UserID,
		entry.UserEmail,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		metadata,
		entry.CreatedAt,
	)
	return err
}

// ListByOrganization implements Store.
func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*domain.ActivityLogEntry, error) {
	query := `
		SELECT id, organization_id, user_id, user_email, action, entity_type, entity_id, metadata, created_at
		FROM activity_logs
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ActivityLogEntry
	for rows.Next() {
		var (
			entry    domain.ActivityLogEntry
			metadata []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.UserID,
			&entry.UserEmail,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/teamsync/pkg/domain"
)

// TasksRepository handles task persistence.
type TasksRepository struct {
	db *sql.DB
}

// NewTasksRepository creates a new tasks repository.
func NewTasksRepository(db *sql.DB) *TasksRepository {
	return &TasksRepository{db: db}
}

const taskColumns = `id, title, description, status, priority, created_by, organization_id, assigned_to, visibility, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var (
		task       domain.Task
		orgID      uuid.NullUUID
		assignedTo uuid.NullUUID
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.CreatedBy,
		&orgID,
		&assignedTo,
		&task.Visibility,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	if orgID.Valid {
		task.OrganizationID = &orgID.UUID
	}
	if assignedTo.Valid {
		task.AssignedTo = &assignedTo.UUID
	}
	return &task, nil
}

func nullable(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// CreateTx inserts a task within a transaction.
func (r *TasksRepository) CreateTx(ctx context.Context, q Querier, task *domain.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := q.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.CreatedBy,
		nullable(task.OrganizationID),
		nullable(task.AssignedTo),
		task.Visibility,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// GetByID retrieves a task by ID.
func (r *TasksRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(q.QueryRowContext(ctx, query, id))
}

// List retrieves the personal tasks of filter.UserID and all tasks of filter.OrganizationIDs.
func (r *TasksRepository) List(ctx context.Context, q Querier, filter TaskFilter) ([]*domain.Task, error) {
	orgIDs := make([]string, len(filter.OrganizationIDs))
	for i, id := range filter.OrganizationIDs {
		orgIDs[i] = id.String()
	}

	conditions := []string{`((organization_id IS NULL AND created_by = $1) OR organization_id = ANY($2::uuid[]))`}
	args := []any{filter.UserID, pq.Array(orgIDs)}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Update writes the mutable fields of a task.
func (r *TasksRepository) Update(ctx context.Context, q Querier, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
		    assigned_to = $5, visibility = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := q.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullable(task.AssignedTo),
		task.Visibility,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrTaskNotFound)
}

// Delete removes a task.
func (r *TasksRepository) Delete(ctx context.Context, q Querier, id uuid.UUID) error {
	result, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrTaskNotFound)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// TaskPriority ranks a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh
}

// TaskVisibility controls whether an organization task is shared.
type TaskVisibility string

const (
	VisibilityPrivate TaskVisibility = "private"
	VisibilityTeam    TaskVisibility = "team"
)

// Task is a unit of work, either personal or scoped to an organization.
type Task struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Status         TaskStatus     `json:"status"`
	Priority       TaskPriority   `json:"priority"`
	CreatedBy      uuid.UUID      `json:"createdBy"`
	OrganizationID *uuid.UUID     `json:"organizationId"`
	AssignedTo     *uuid.UUID     `json:"assignedTo"`
	Visibility     TaskVisibility `json:"visibility"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsPersonal reports whether the task belongs to no organization.
func (t *Task) IsPersonal() bool {
	return t.OrganizationID == nil
}

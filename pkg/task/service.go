// Package task gates task mutations by organization role and broadcasts them
// to the organization's workspace room.
package task

import (
	"context"
	"log/slog"
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

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// ActivityRecorder appends to the audit trail.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// CreateInput is the payload of Create.
type CreateInput struct {
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.TaskPriority
	OrganizationID *uuid.UUID
	AssignedTo     *uuid.UUID
	Visibility     domain.TaskVisibility
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	Visibility  *domain.TaskVisibility
	AssignedTo  *uuid.UUID
	// Unassign clears the assignee and takes precedence over AssignedTo.
	Unassign bool
}

// Service implements task operations.
type Service struct {
	store     repository.Store
	recorder  ActivityRecorder
	publisher realtime.Publisher
	effects   *sideeffect.Runner
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a task service.
func NewService(store repository.Store, recorder ActivityRecorder, publisher realtime.Publisher, effects *sideeffect.Runner, logger *slog.Logger) *Service {
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
		store:     store,
		recorder:  recorder,
		publisher: publisher,
		effects:   effects,
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores a new task. Organization tasks require tasks:create and an
// assignee who is an active member.
func (s *Service) Create(ctx context.Context, caller domain.Identity, input CreateInput) (*domain.Task, error) {
	input.Title = validate.CleanText(input.Title)
	input.Description = validate.CleanText(input.Description)
	if input.Status == "" {
		input.Status = domain.TaskStatusTodo
	}
	if input.Priority == "" {
		input.Priority = domain.TaskPriorityMedium
	}
	if input.Visibility == "" {
		input.Visibility = domain.VisibilityPrivate
	}

	var errs validate.Errors
	errs.Check("title", validate.Length("title", input.Title, 1, maxTitleLength))
	errs.Check("description", validate.Length("description", input.Description, 0, maxDescriptionLength))
	checkEnums(&errs, &input.Status, &input.Priority, &input.Visibility)
	if input.OrganizationID == nil && input.AssignedTo != nil && *input.AssignedTo != caller.UserID {
		errs.Check("assignedTo", "personal tasks can only be assigned to their creator")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &domain.Task{
		ID:             uuid.New(),
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		CreatedBy:      caller.UserID,
		OrganizationID: input.OrganizationID,
		AssignedTo:     input.AssignedTo,
		Visibility:     input.Visibility,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		if task.IsPersonal() {
			return tx.CreateTask(ctx, task)
		}
		m, err := membership.RequireMember(ctx, tx, *task.OrganizationID, caller.UserID)
		if err != nil {
			return err
		}
		if err := rbac.Require(m.Role, rbac.TasksCreate); err != nil {
			return err
		}
		if err := requireAssignee(ctx, tx, *task.OrganizationID, task.AssignedTo); err != nil {
			return err
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if !task.IsPersonal() {
		s.announce(ctx, caller, task, realtime.EventTaskCreated, domain.ActionTaskCreate, task)
		s.notifyAssignee(ctx, caller, task)
	}
	return task, nil
}

// Get returns a task visible to caller.
func (s *Service) Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsPersonal() {
		if task.CreatedBy != caller.UserID {
			return nil, domain.ErrAccessDenied
		}
		return task, nil
	}
	if _, err := membership.RequireMember(ctx, s.store, *task.OrganizationID, caller.UserID); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the caller's personal tasks and every task of the organizations
// they belong to, optionally filtered by status.
func (s *Service) List(ctx context.Context, caller domain.Identity, status domain.TaskStatus) ([]*domain.Task, error) {
	if status != "" && !status.IsValid() {
		return nil, domain.ValidationError(domain.FieldViolation{
			Field:   "status",
			Message: "status must be one of TODO, IN_PROGRESS, DONE",
		})
	}

	orgs, err := s.store.ListOrganizationsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	filter := repository.TaskFilter{UserID: caller.UserID, Status: status}
	for _, o := range orgs {
		filter.OrganizationIDs = append(filter.OrganizationIDs, o.Organization.ID)
	}

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// Update applies patch to a task. Organization tasks require tasks:update_any,
// or tasks:update_own when the caller created the task.
func (s *Service) Update(ctx context.Context, caller domain.Identity, id uuid.UUID, patch UpdateInput) (*domain.Task, error) {
	var errs validate.Errors
	if patch.Title != nil {
		title := validate.CleanText(*patch.Title)
		patch.Title = &title
		errs.Check("title", validate.Length("title", title, 1, maxTitleLength))
	}
	if patch.Description != nil {
		description := validate.CleanText(*patch.Description)
		patch.Description = &description
		errs.Check("description", validate.Length("description", description, 0, maxDescriptionLength))
	}
	checkEnums(&errs, patch.Status, patch.Priority, patch.Visibility)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var (
		task             *domain.Task
		previousAssignee *uuid.UUID
	)
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, caller, task, rbac.TasksUpdateAny, rbac.TasksUpdateOwn); err != nil {
			return err
		}
		previousAssignee = task.AssignedTo

		if patch.Title != nil {
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Status != nil {
			task.Status = *patch.Status
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
		}
		if patch.Visibility != nil {
			task.Visibility = *patch.Visibility
		}
		switch {
		case patch.Unassign:
			task.AssignedTo = nil
		case patch.AssignedTo != nil:
			if task.IsPersonal() {
				if *patch.AssignedTo != caller.UserID {
					return domain.ValidationError(domain.FieldViolation{
						Field:   "assignedTo",
						Message: "personal tasks can only be assigned to their creator",
					})
				}
			} else if err := requireAssignee(ctx, tx, *task.OrganizationID, patch.AssignedTo); err != nil {
				return err
			}
			assignee := *patch.AssignedTo
			task.AssignedTo = &assignee
		}
		task.UpdatedAt = s.now().UTC()
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if !task.IsPersonal() {
		s.announce(ctx, caller, task, realtime.EventTaskUpdated, domain.ActionTaskUpdate, task)
		if !sameAssignee(previousAssignee, task.AssignedTo) {
			s.notifyAssignee(ctx, caller, task)
		}
	}
	return task, nil
}

// Delete removes a task. Organization tasks require tasks:delete_any, or
// tasks:delete_own when the caller created the task.
func (s *Service) Delete(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	var task *domain.Task
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, caller, task, rbac.TasksDeleteAny, rbac.TasksDeleteOwn); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, id)
	})
	if err != nil {
		return err
	}

	if !task.IsPersonal() {
		s.announce(ctx, caller, task, realtime.EventTaskDeleted, domain.ActionTaskDelete, map[string]any{"taskId": task.ID})
	}
	return nil
}

// authorize checks that caller may mutate task with either capability.
func authorize(ctx context.Context, tx repository.Tx, caller domain.Identity, task *domain.Task, anyCap, ownCap rbac.Capability) error {
	if task.IsPersonal() {
		if task.CreatedBy != caller.UserID {
			return domain.ErrAccessDenied
		}
		return nil
	}
	m, err := membership.RequireMember(ctx, tx, *task.OrganizationID, caller.UserID)
	if err != nil {
		return err
	}
	if rbac.HasPermission(m.Role, anyCap) {
		return nil
	}
	if rbac.HasPermission(m.Role, ownCap) && task.CreatedBy == caller.UserID {
		return nil
	}
	return domain.ErrAccessDenied
}

func requireAssignee(ctx context.Context, tx repository.Tx, orgID uuid.UUID, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	if _, err := membership.RequireMember(ctx, tx, orgID, *assignee); err != nil {
		return domain.ValidationError(domain.FieldViolation{
			Field:   "assignedTo",
			Message: "assignee must be an active member of the organization",
		})
	}
	return nil
}

func checkEnums(errs *validate.Errors, status *domain.TaskStatus, priority *domain.TaskPriority, visibility *domain.TaskVisibility) {
	if status != nil && !status.IsValid() {
		errs.Check("status", "status must be one of TODO, IN_PROGRESS, DONE")
	}
	if priority != nil && !priority.IsValid() {
		errs.Check("priority", "priority must be one of LOW, MEDIUM, HIGH")
	}
	if visibility != nil && *visibility != domain.VisibilityPrivate && *visibility != domain.VisibilityTeam {
		errs.Check("visibility", "visibility must be private or team")
	}
}

func sameAssignee(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) announce(ctx context.Context, caller domain.Identity, task *domain.Task, event string, action domain.ActivityAction, payload any) {
	orgID := *task.OrganizationID
	s.effects.Go(ctx, event, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, realtime.WorkspaceRoom(orgID), event, payload)
	})
	if s.recorder == nil {
		return
	}
	entry := activity.Entry{
		OrganizationID: orgID,
		Actor:          caller,
		Action:         action,
		EntityType:     domain.EntityTask,
		EntityID:       task.ID.String(),
		Metadata:       map[string]any{"title": task.Title},
	}
	s.effects.Go(ctx, "activity:"+string(action), func(ctx context.Context) error {
		s.recorder.Record(ctx, entry)
		return nil
	})
}

// notifyAssignee tells the assignee of task about the assignment unless they made it.
func (s *Service) notifyAssignee(ctx context.Context, caller domain.Identity, task *domain.Task) {
	if task.AssignedTo == nil || *task.AssignedTo == caller.UserID {
		return
	}
	assignee := *task.AssignedTo
	payload := map[string]any{
		"message": "You were assigned to task: " + task.Title,
		"taskId":  task.ID,
		"by":      caller.Email,
	}
	s.effects.Go(ctx, realtime.EventNotificationAssign, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, realtime.UserRoom(assignee), realtime.EventNotificationAssign, payload)
	})
}

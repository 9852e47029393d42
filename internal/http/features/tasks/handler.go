package tasks

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/task"
)

// Handler handles task endpoints.
type Handler struct {
	logger  *slog.Logger
	service *task.Service
}

// NewHandler creates a new tasks handler.
func NewHandler(logger *slog.Logger, service *task.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// CreateRequest represents a task create request.
type CreateRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Status         domain.TaskStatus     `json:"status,omitempty"`
	Priority       domain.TaskPriority   `json:"priority,omitempty"`
	OrganizationID *uuid.UUID            `json:"organizationId,omitempty"`
	AssignedTo     *uuid.UUID            `json:"assignedTo,omitempty"`
	Visibility     domain.TaskVisibility `json:"visibility,omitempty"`
}

// UpdateRequest represents a partial task update. An explicit null
// assignedTo clears the assignee; an absent one leaves it unchanged.
type UpdateRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Status      *domain.TaskStatus     `json:"status,omitempty"`
	Priority    *domain.TaskPriority   `json:"priority,omitempty"`
	Visibility  *domain.TaskVisibility `json:"visibility,omitempty"`
	AssignedTo  json.RawMessage        `json:"assignedTo,omitempty"`
}

// ListResponse is the task list envelope.
type ListResponse struct {
	Tasks      []*domain.Task `json:"tasks"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// List returns personal and organization tasks visible to the caller.
// GET /tasks?status=TODO
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	status := domain.TaskStatus(r.URL.Query().Get("status"))
	tasks, err := h.service.List(r.Context(), caller, status)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ListResponse{Tasks: tasks, Total: len(tasks), TotalPages: 1})
}

// Create creates a personal or organization task.
// POST /tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), caller, task.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		OrganizationID: req.OrganizationID,
		AssignedTo:     req.AssignedTo,
		Visibility:     req.Visibility,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, t)
}

// Get returns one task.
// GET /tasks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// Update applies a partial update to a task.
// PUT /tasks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	patch := task.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Visibility:  req.Visibility,
	}
	if len(req.AssignedTo) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.AssignedTo), []byte("null")) {
			patch.Unassign = true
		} else {
			var assignee uuid.UUID
			if err := json.Unmarshal(req.AssignedTo, &assignee); err != nil {
				httputil.WriteError(w, h.logger, domain.ValidationError(domain.FieldViolation{
					Field:   "assignedTo",
					Message: "assignedTo must be a user id or null",
				}))
				return
			}
			patch.AssignedTo = &assignee
		}
	}

	t, err := h.service.Update(r.Context(), caller, id, patch)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// Delete removes a task.
// DELETE /tasks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

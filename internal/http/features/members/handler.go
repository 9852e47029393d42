package members

import (
	"log/slog"
	"net/http"

	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/membership"
)

// Handler handles organization member endpoints.
type Handler struct {
	logger  *slog.Logger
	service *membership.Service
}

// NewHandler creates a new members handler.
func NewHandler(logger *slog.Logger, service *membership.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// UpdateRoleRequest represents a member role change.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// MemberRoleResponse describes the member after a role change.
type MemberRoleResponse struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
}

// List returns the active members of an organization.
// GET /organizations/{id}/members
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), caller, orgID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []membership.MemberView{}
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"members": members})
}

// UpdateRole changes the role of a member.
// PUT /organizations/{id}/members/{userId}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := common.PathUUID(w, r, "userId")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.UpdateMemberRole(r.Context(), caller, orgID, userID, req.Role)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message": "Member role updated successfully",
		"member":  MemberRoleResponse{UserID: m.UserID.String(), Role: m.Role},
	})
}

// Remove removes another member from the organization.
// DELETE /organizations/{id}/members/{userId}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := common.PathUUID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), caller, orgID, userID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Member removed successfully"})
}

// Leave removes the caller from the organization.
// POST /organizations/{id}/members/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), caller, orgID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Successfully left organization"})
}

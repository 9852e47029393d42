package organizations

import (
	"log/slog"
	"net/http"

	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/membership"
)

// Handler handles organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service *membership.Service
}

// NewHandler creates a new organizations handler.
func NewHandler(logger *slog.Logger, service *membership.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// CreateRequest represents an organization create request.
type CreateRequest struct {
	Name       string      `json:"name"`
	Plan       domain.Plan `json:"plan,omitempty"`
	MaxMembers int         `json:"maxMembers,omitempty"`
}

// UpdateRequest represents a partial organization update.
type UpdateRequest struct {
	Name       *string      `json:"name,omitempty"`
	Plan       *domain.Plan `json:"plan,omitempty"`
	MaxMembers *int         `json:"maxMembers,omitempty"`
}

// Create creates an organization owned by the caller.
// POST /organizations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), caller, membership.CreateOrganizationInput{
		Name:       req.Name,
		Plan:       req.Plan,
		MaxMembers: req.MaxMembers,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"message":      "Organization created successfully",
		"organization": org,
	})
}

// List returns the organizations the caller belongs to.
// GET /organizations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	orgs, err := h.service.ListOrganizations(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if orgs == nil {
		orgs = []membership.OrganizationView{}
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// Get returns one organization with the caller's role and the member count.
// GET /organizations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	org, err := h.service.GetOrganization(r.Context(), caller, orgID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, org)
}

// Update changes name, plan or member limit.
// PUT /organizations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), caller, orgID, membership.UpdateOrganizationInput{
		Name:       req.Name,
		Plan:       req.Plan,
		MaxMembers: req.MaxMembers,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":      "Organization updated successfully",
		"organization": org,
	})
}

// Delete removes the organization with its memberships, invitations and tasks.
// DELETE /organizations/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteOrganization(r.Context(), caller, orgID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Organization deleted successfully"})
}

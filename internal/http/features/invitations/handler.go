package invitations

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/invitation"
)

// Handler handles invitation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *invitation.Service
}

// NewHandler creates a new invitations handler.
func NewHandler(logger *slog.Logger, service *invitation.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// SendRequest represents an invitation request.
type SendRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// SentInvitation describes a newly sent invitation.
type SentInvitation struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	ExpiresAt      time.Time   `json:"expiresAt"`
	InvitationLink string      `json:"invitationLink"`
}

// PendingInvitation is one entry of the pending list.
type PendingInvitation struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	InvitedBy string      `json:"invitedBy"`
	ExpiresAt time.Time   `json:"expiresAt"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Send invites an email address to the organization.
// POST /organizations/{id}/invitations
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	var req SendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Send(r.Context(), caller, orgID, req.Email, req.Role)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	inv := result.Invitation
	httputil.JSON(w, http.StatusCreated, map[string]any{
		"message": "Invitation sent successfully",
		"invitation": SentInvitation{
			ID:             inv.ID.String(),
			Email:          inv.Email,
			Role:           inv.Role,
			ExpiresAt:      inv.ExpiresAt,
			InvitationLink: result.Link,
		},
	})
}

// ListPending returns the pending invitations of an organization.
// GET /organizations/{id}/invitations
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	invs, err := h.service.ListPending(r.Context(), caller, orgID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	out := make([]PendingInvitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, PendingInvitation{
			ID:        inv.ID.String(),
			Email:     inv.Email,
			Role:      inv.Role,
			InvitedBy: inv.InvitedBy.String(),
			ExpiresAt: inv.ExpiresAt,
			CreatedAt: inv.CreatedAt,
		})
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"invitations": out})
}

// Validate describes the invitation named by a token without accepting it.
// GET /invitations/validate/{token}
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Validate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"valid":      true,
		"invitation": summary,
	})
}

// Accept joins the caller to the inviting organization.
// POST /invitations/accept/{token}
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	result, err := h.service.Accept(r.Context(), caller, chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":      "Invitation accepted successfully",
		"organization": result,
	})
}

// Decline declines a pending invitation.
// POST /invitations/decline/{token}
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	if _, ok := common.Caller(w, r); !ok {
		return
	}

	if err := h.service.Decline(r.Context(), chi.URLParam(r, "token")); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Invitation declined"})
}

// Resend extends a pending invitation and emails it again.
// POST /invitations/resend/{id}
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.service.Resend(r.Context(), caller, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":   "Invitation resent successfully",
		"expiresAt": inv.ExpiresAt,
	})
}

// Revoke cancels a pending invitation.
// DELETE /invitations/{id}
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Revoke(r.Context(), caller, id); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Invitation revoked successfully"})
}

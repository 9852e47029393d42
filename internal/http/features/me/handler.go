package me

import (
	"log/slog"
	"net/http"

	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/membership"
)

// Handler handles the caller's profile endpoint.
type Handler struct {
	logger  *slog.Logger
	service *membership.Service
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, service *membership.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// GetMe returns the current user's profile and organizations.
// GET /users/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, profile)
}

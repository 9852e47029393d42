package activity

import (
	"log/slog"
	"net/http"

	"github.com/tendant/teamsync/internal/http/features/common"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/activity"
)

// Handler handles the organization activity feed.
type Handler struct {
	logger   *slog.Logger
	recorder *activity.Recorder
}

// NewHandler creates a new activity handler.
func NewHandler(logger *slog.Logger, recorder *activity.Recorder) *Handler {
	return &Handler{
		logger:   logger,
		recorder: recorder,
	}
}

// List returns the newest activity entries of an organization.
// GET /organizations/{id}/activity?limit=50
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := common.Caller(w, r)
	if !ok {
		return
	}
	orgID, ok := common.PathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.recorder.List(r.Context(), caller, orgID, common.QueryInt(r, "limit", activity.DefaultListLimit))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"activities": entries})
}

package common

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/teamsync/internal/http/middleware"
	"github.com/tendant/teamsync/internal/httputil"
	"github.com/tendant/teamsync/pkg/domain"
)

// Caller returns the authenticated identity of the request. It writes a 401
// and returns false when none is attached.
func Caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok || identity.IsZero() {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return domain.Identity{}, false
	}
	return identity, true
}

// PathUUID parses the named URL parameter as a UUID. It writes a 400 and
// returns false when the parameter is malformed.
func PathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// QueryInt returns the named query parameter as an int, or def when it is
// absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

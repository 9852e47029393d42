package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/teamsync/internal/config"
	"github.com/tendant/teamsync/internal/http/features/activity"
	"github.com/tendant/teamsync/internal/http/features/invitations"
	"github.com/tendant/teamsync/internal/http/features/me"
	"github.com/tendant/teamsync/internal/http/features/members"
	"github.com/tendant/teamsync/internal/http/features/organizations"
	"github.com/tendant/teamsync/internal/http/features/tasks"
	"github.com/tendant/teamsync/internal/http/middleware"
	"github.com/tendant/teamsync/internal/httputil"
	pkgactivity "github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/invitation"
	"github.com/tendant/teamsync/pkg/membership"
	"github.com/tendant/teamsync/pkg/task"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	MembershipService *membership.Service
	InvitationService *invitation.Service
	TaskService       *task.Service
	ActivityRecorder  *pkgactivity.Recorder
	// Realtime serves the websocket endpoint; nil disables it.
	Realtime        http.Handler
	AllowedOrigins  []string
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Websocket sessions authenticate during the upgrade
	if cfg.Realtime != nil {
		r.Method(http.MethodGet, "/ws", cfg.Realtime)
	}

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	organizationHandler := organizations.NewHandler(cfg.Logger, cfg.MembershipService)
	memberHandler := members.NewHandler(cfg.Logger, cfg.MembershipService)
	invitationHandler := invitations.NewHandler(cfg.Logger, cfg.InvitationService)
	taskHandler := tasks.NewHandler(cfg.Logger, cfg.TaskService)
	activityHandler := activity.NewHandler(cfg.Logger, cfg.ActivityRecorder)
	meHandler := me.NewHandler(cfg.Logger, cfg.MembershipService)

	// Public invitation lookup
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters[middleware.LimiterPublic])
		r.Get("/invitations/validate/{token}", invitationHandler.Validate)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Authenticator))

		// Invitation sends are limited more tightly than other calls
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimiterInvite])
			r.Post("/organizations/{id}/invitations", invitationHandler.Send)
			r.Post("/invitations/resend/{id}", invitationHandler.Resend)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimiterAPI])

			r.Get("/users/me", meHandler.GetMe)

			r.Post("/organizations", organizationHandler.Create)
			r.Get("/organizations", organizationHandler.List)
			r.Get("/organizations/{id}", organizationHandler.Get)
			r.Put("/organizations/{id}", organizationHandler.Update)
			r.Delete("/organizations/{id}", organizationHandler.Delete)

			r.Get("/organizations/{id}/members", memberHandler.List)
			r.Post("/organizations/{id}/members/leave", memberHandler.Leave)
			r.Put("/organizations/{id}/members/{userId}", memberHandler.UpdateRole)
			r.Delete("/organizations/{id}/members/{userId}", memberHandler.Remove)

			r.Get("/organizations/{id}/invitations", invitationHandler.ListPending)
			r.Get("/organizations/{id}/activity", activityHandler.List)

			r.Post("/invitations/accept/{token}", invitationHandler.Accept)
			r.Post("/invitations/decline/{token}", invitationHandler.Decline)
			r.Delete("/invitations/{id}", invitationHandler.Revoke)

			r.Get("/tasks", taskHandler.List)
			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Put("/tasks/{id}", taskHandler.Update)
			r.Delete("/tasks/{id}", taskHandler.Delete)
		})
	})

	return r
}

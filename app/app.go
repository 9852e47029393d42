// Package app wires the TeamSync services into a single http.Handler.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an App and serve its handler
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/teamsync?sslmode=disable")
//
//	a, err := app.New(ctx, app.Config{
//	    DB:        db,
//	    JWTSecret: "shared-secret-of-the-identity-service",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	go a.Run(ctx)
//	http.ListenAndServe(":8080", a.Handler())
//
// Without DB the state lives in memory, which suits tests and single-node demos.
// Set Mongo to keep the activity log in MongoDB and Redis to fan realtime
// events out to every instance.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/teamsync/internal/config"
	httpserver "github.com/tendant/teamsync/internal/http"
	"github.com/tendant/teamsync/internal/http/middleware"
	"github.com/tendant/teamsync/internal/notification"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/auth"
	"github.com/tendant/teamsync/pkg/invitation"
	"github.com/tendant/teamsync/pkg/membership"
	"github.com/tendant/teamsync/pkg/realtime"
	"github.com/tendant/teamsync/pkg/repository"
	"github.com/tendant/teamsync/pkg/sideeffect"
	"github.com/tendant/teamsync/pkg/task"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config holds the configuration for an App.
type Config struct {
	// DB is the Postgres handle. Nil selects the in-memory store.
	DB *sql.DB
	// Mongo, when set, stores the activity log instead of DB.
	Mongo *mongo.Database
	// Redis, when set, relays realtime events between instances.
	Redis        redis.UniversalClient
	RedisChannel string
	// InstanceID must be unique per process; a random id is used when empty.
	InstanceID string

	JWTSecret string
	JWTIssuer string

	AppBaseURL        string
	InvitationTTL     time.Duration
	DefaultMaxMembers int
	// Mailer delivers invitation emails. Defaults to logging them.
	Mailer invitation.Mailer

	AllowedOrigins  []string
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig

	Logger *slog.Logger
}

// App is a configured TeamSync instance.
type App struct {
	config      Config
	logger      *slog.Logger
	store       repository.Store
	hub         *realtime.Hub
	relay       *realtime.RedisRelay
	effects     *sideeffect.Runner
	tokens      *auth.TokenService
	recorder    *activity.Recorder
	memberships *membership.Service
	invitations *invitation.Service
	tasks       *task.Service
	handler     http.Handler
}

// New creates an App with the given configuration.
// Returns an error if required database tables don't exist.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	var store repository.Store
	if cfg.DB != nil {
		if err := validateSchema(ctx, cfg.DB, cfg.Mongo == nil); err != nil {
			return nil, err
		}
		store = repository.NewPostgresStore(cfg.DB)
	} else {
		store = repository.NewMemoryStore()
	}

	var activityStore activity.Store
	switch {
	case cfg.Mongo != nil:
		mongoStore := activity.NewMongoStore(cfg.Mongo)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("app: activity indexes: %w", err)
		}
		activityStore = mongoStore
	case cfg.DB != nil:
		activityStore = activity.NewPostgresStore(cfg.DB)
	default:
		activityStore = activity.NewMemoryStore()
	}

	a := &App{
		config:  cfg,
		logger:  cfg.Logger,
		store:   store,
		hub:     realtime.NewHub(cfg.Logger),
		effects: sideeffect.NewRunner(cfg.Logger),
		tokens: auth.NewTokenService(auth.TokenConfig{
			JWTSecret: []byte(cfg.JWTSecret),
			Issuer:    cfg.JWTIssuer,
		}),
	}

	var publisher realtime.Publisher = a.hub
	if cfg.Redis != nil {
		a.relay = realtime.NewRedisRelay(cfg.Redis, a.hub, realtime.RelayConfig{
			Channel:    cfg.RedisChannel,
			InstanceID: cfg.InstanceID,
			Logger:     cfg.Logger,
		})
		publisher = a.relay
	}

	a.recorder = activity.NewRecorder(activityStore, publisher, store, cfg.Logger)
	a.memberships = membership.NewService(
		membership.Config{DefaultMaxMembers: cfg.DefaultMaxMembers},
		store, a.recorder, publisher, a.effects, cfg.Logger,
	)
	a.invitations = invitation.NewService(
		invitation.Config{AppBaseURL: cfg.AppBaseURL, TTL: cfg.InvitationTTL},
		store, cfg.Mailer, a.recorder, publisher, a.effects, cfg.Logger,
	)
	a.tasks = task.NewService(store, a.recorder, publisher, a.effects, cfg.Logger)

	a.handler = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            cfg.Logger,
		Authenticator:     a.tokens,
		MembershipService: a.memberships,
		InvitationService: a.invitations,
		TaskService:       a.tasks,
		ActivityRecorder:  a.recorder,
		Realtime: realtime.NewServer(realtime.ServerConfig{
			Hub:            a.hub,
			Authenticator:  a.tokens,
			Members:        a.memberships,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         cfg.Logger,
		}),
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
	})

	return a, nil
}

// Handler returns the HTTP handler serving the REST API and /ws.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run forwards realtime events from other instances until ctx is done.
// Without Redis it just waits for ctx.
func (a *App) Run(ctx context.Context) error {
	if a.relay == nil {
		<-ctx.Done()
		return nil
	}
	return a.relay.Run(ctx)
}

// Wait blocks until pending emails, activity entries and broadcasts finish.
// Call it after the HTTP server has shut down.
func (a *App) Wait() {
	a.effects.Wait()
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(a.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (a *App) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(a.tokens)
}

// Tokens returns the token service for issuing tokens in tests and tools.
func (a *App) Tokens() *auth.TokenService {
	return a.tokens
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("app: JWTSecret is required")
	}
	if cfg.DefaultMaxMembers < 0 {
		return errors.New("app: DefaultMaxMembers must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Mailer == nil {
		cfg.Mailer = notification.NewLogMailer(cfg.Logger)
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:5173"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB, needActivity bool) error {
	requiredTables := []string{"users", "organizations", "memberships", "invitations", "tasks"}
	if needActivity {
		requiredTables = append(requiredTables, "activity_logs")
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("app: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("app: failed to check schema: %w", err)
		}
	}

	return nil
}

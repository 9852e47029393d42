package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/teamsync/internal/config"
	"github.com/tendant/teamsync/internal/httputil"
)

// Rate limiter names returned by CreateRateLimiters.
const (
	// LimiterAPI covers authenticated calls, keyed by client IP.
	LimiterAPI = "api"
	// LimiterInvite covers sending and resending invitations, keyed by the
	// inviting user so one account cannot spray emails from many addresses.
	LimiterInvite = "invite"
	// LimiterPublic covers unauthenticated invitation token lookups, keyed by IP.
	LimiterPublic = "public"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Name     string
	Requests int
	Window   time.Duration
	// KeyFunc groups requests into buckets. Defaults to the client IP.
	KeyFunc httprate.KeyFunc
	Logger  *slog.Logger
}

// RateLimit creates a rate limiter middleware answering 429 with a JSON error.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				attrs := []any{
					"limiter", cfg.Name,
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				}
				if identity, ok := GetIdentity(r.Context()); ok {
					attrs = append(attrs, "user_id", identity.UserID)
				}
				cfg.Logger.Warn("rate limit exceeded", attrs...)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// KeyByCaller buckets authenticated requests by user id and anonymous ones by IP.
func KeyByCaller(r *http.Request) (string, error) {
	if identity, ok := GetIdentity(r.Context()); ok && !identity.IsZero() {
		return "user:" + identity.UserID.String(), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates the API, invite and public limiters.
// The invite limiter must run after Auth to see the caller.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	names := []string{LimiterAPI, LimiterInvite, LimiterPublic}
	limiters := make(map[string]func(http.Handler) http.Handler, len(names))

	if !cfg.Enabled {
		noOp := NoRateLimit()
		for _, name := range names {
			limiters[name] = noOp
		}
		return limiters
	}

	for _, lc := range []RateLimitConfig{
		{Name: LimiterAPI, Requests: cfg.RequestsPerMinute},
		{Name: LimiterInvite, Requests: cfg.InviteRequestsPerMinute, KeyFunc: KeyByCaller},
		{Name: LimiterPublic, Requests: cfg.PublicRequestsPerMinute},
	} {
		lc.Window = time.Minute
		lc.Logger = logger
		limiters[lc.Name] = RateLimit(lc)
	}
	return limiters
}

package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/teamsync/internal/config"
	"github.com/tendant/teamsync/pkg/domain"
)

var (
	inviterAlice = domain.Identity{UserID: uuid.New(), Email: "alice@example.com"}
	inviterBob   = domain.Identity{UserID: uuid.New(), Email: "bob@example.com"}
)

// limitedRouter lays out the limiter groups the way the API router does.
func limitedRouter(cfg config.RateLimitConfig) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiters := CreateRateLimiters(cfg, logger)
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(limiters[LimiterPublic])
		r.Get("/invitations/validate/{token}", ok)
	})
	r.Group(func(r chi.Router) {
		r.Use(Auth(staticAuthenticator{"alice": inviterAlice, "bob": inviterBob}))
		r.Group(func(r chi.Router) {
			r.Use(limiters[LimiterInvite])
			r.Post("/organizations/{id}/invitations", ok)
			r.Post("/invitations/resend/{id}", ok)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiters[LimiterAPI])
			r.Post("/invitations/accept/{token}", ok)
		})
	})
	return r
}

func call(h http.Handler, method, path, token, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInviteLimiter_BucketsByInviter(t *testing.T) {
	h := limitedRouter(config.RateLimitConfig{
		Enabled:                 true,
		RequestsPerMinute:       100,
		InviteRequestsPerMinute: 2,
		PublicRequestsPerMinute: 100,
	})
	sendPath := "/organizations/" + uuid.NewString() + "/invitations"

	if rec := call(h, http.MethodPost, sendPath, "alice", "10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Fatalf("first send = %d", rec.Code)
	}
	// Resend shares the inviter's bucket.
	if rec := call(h, http.MethodPost, "/invitations/resend/"+uuid.NewString(), "alice", "10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Fatalf("resend = %d", rec.Code)
	}

	rec := call(h, http.MethodPost, sendPath, "alice", "10.0.0.1:1000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third send = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Errorf("429 body = %q, want JSON error", rec.Body.String())
	}

	// A new address does not reset the inviter's quota.
	if rec := call(h, http.MethodPost, sendPath, "alice", "10.0.0.2:1000"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("send from new IP = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	// Another inviter behind the same address has their own quota.
	if rec := call(h, http.MethodPost, sendPath, "bob", "10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Errorf("bob send = %d, want %d", rec.Code, http.StatusOK)
	}
	// Accepting is not throttled by the invite limiter.
	if rec := call(h, http.MethodPost, "/invitations/accept/tok", "alice", "10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Errorf("accept = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestPublicLimiter_ValidateByIP(t *testing.T) {
	h := limitedRouter(config.RateLimitConfig{
		Enabled:                 true,
		RequestsPerMinute:       100,
		InviteRequestsPerMinute: 100,
		PublicRequestsPerMinute: 2,
	})

	for i := 0; i < 2; i++ {
		if rec := call(h, http.MethodGet, "/invitations/validate/tok", "", "192.168.1.1:12345"); rec.Code != http.StatusOK {
			t.Fatalf("validate %d = %d", i, rec.Code)
		}
	}
	if rec := call(h, http.MethodGet, "/invitations/validate/other", "", "192.168.1.1:12345"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("token guessing = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec := call(h, http.MethodGet, "/invitations/validate/tok", "", "192.168.1.2:12345"); rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCreateRateLimiters_Disabled(t *testing.T) {
	h := limitedRouter(config.RateLimitConfig{Enabled: false, InviteRequestsPerMinute: 1, PublicRequestsPerMinute: 1})

	for i := 0; i < 50; i++ {
		if rec := call(h, http.MethodPost, "/organizations/"+uuid.NewString()+"/invitations", "alice", "10.0.0.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("send %d = %d, want %d", i, rec.Code, http.StatusOK)
		}
		if rec := call(h, http.MethodGet, "/invitations/validate/tok", "", "10.0.0.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("validate %d = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}
}

func TestKeyByCaller(t *testing.T) {
	anonymous := httptest.NewRequest(http.MethodPost, "/", nil)
	anonymous.RemoteAddr = "10.1.2.3:5555"

	authenticated := anonymous.WithContext(WithIdentity(anonymous.Context(), inviterAlice))

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"authenticated", authenticated, "user:" + inviterAlice.UserID.String()},
		{"anonymous", anonymous, "ip:10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyByCaller(tt.req)
			if err != nil {
				t.Fatalf("KeyByCaller() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("KeyByCaller() = %q, want %q", got, tt.want)
			}
		})
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
	"golang.org/x/net/websocket"
)

const (
	maxMessageBytes        = 64 * 1024
	maxFramePayloadBytes   = 4 * 1024
	maxFramesPerSecond     = 20
	maxDecodeErrorsPerConn = 3
)

// Authenticator resolves a bearer token to the caller it names.
type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

// MembershipChecker reports whether a user may enter a workspace room.
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// ServerConfig wires a Server.
type ServerConfig struct {
	Hub           *Hub
	Authenticator Authenticator
	// Members gates join_workspace. Nil admits any authenticated user.
	Members MembershipChecker
	// Publisher carries presence updates. Defaults to Hub.
	Publisher Publisher
	// Directory lists room subscribers for presence. Defaults to Hub.
	Directory Directory
	// AllowedOrigins lists browser origins that may open a socket, matching
	// the CORS allowlist. Same-host origins are always accepted. A "*" entry
	// accepts any origin for header and query tokens but never for cookies.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server accepts websocket connections and runs the session protocol.
type Server struct {
	hub       *Hub
	auth      Authenticator
	members   MembershipChecker
	publisher Publisher
	directory Directory
	origins   originPolicy
	logger    *slog.Logger
	ws        websocket.Server
}

// NewServer creates a websocket server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		hub:       cfg.Hub,
		auth:      cfg.Authenticator,
		members:   cfg.Members,
		publisher: cfg.Publisher,
		directory: cfg.Directory,
		origins:   newOriginPolicy(cfg.AllowedOrigins),
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.publisher == nil {
		s.publisher = s.hub
	}
	if s.directory == nil {
		s.directory = s.hub
	}
	// ServeHTTP checks the origin before the upgrade.
	s.ws = websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.handleConn,
	}
	return s
}

type identityContextKey struct{}

// ServeHTTP authenticates the upgrade request and hands the socket to the session loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, fromCookie := requestToken(r)
	if token == "" {
		s.logger.Info("websocket unauthorized: missing token", "remote_addr", r.RemoteAddr)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !s.origins.allows(origin, r.Host, fromCookie) {
		s.logger.Warn("websocket rejected: origin not allowed", "origin", origin, "remote_addr", r.RemoteAddr)
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	identity, err := s.auth.Authenticate(token)
	if err != nil {
		s.logger.Info("websocket unauthorized: invalid token", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
	s.ws.ServeHTTP(w, r.WithContext(ctx))
}

// TokenFromRequest extracts a bearer token from the token query parameter,
// the Authorization header, or the access token cookies, in that order.
func TokenFromRequest(r *http.Request) string {
	token, _ := requestToken(r)
	return token
}

// requestToken also reports whether the token came from a cookie, which a
// browser attaches on cross-site requests.
func requestToken(r *http.Request) (string, bool) {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, false
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, false
			}
		}
	}
	for _, name := range []string{"access_token", "accessToken"} {
		if cookie, err := r.Cookie(name); err == nil {
			if token := strings.TrimSpace(cookie.Value); token != "" {
				return token, true
			}
		}
	}
	return "", false
}

type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			p.any = true
			continue
		}
		if origin != "" {
			p.allowed[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin, host string, fromCookie bool) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	if _, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
		return true
	}
	return p.any && !fromCookie
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	identity, _ := ctx.Value(identityContextKey{}).(domain.Identity)

	session := newSession(identity, newWSPeer(json.NewEncoder(conn), conn))
	s.hub.Join(session, UserRoom(identity.UserID))
	s.logger.Info("websocket connected", "connection_id", session.ID, "user_id", identity.UserID)

	defer s.disconnect(session)

	conn.MaxPayloadBytes = maxMessageBytes
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var message []byte
		if err := websocket.Message.Receive(conn, &message); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				s.writeError(session, "INVALID_ARGUMENT", "payload too large")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			decodeErrors++
			s.writeError(session, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Data) > maxFramePayloadBytes {
			s.writeError(session, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			s.writeError(session, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Event {
		case EventJoinWorkspace:
			s.handleJoin(ctx, session, frame.Data)
		case EventLeaveWorkspace:
			s.handleLeave(ctx, session, frame.Data)
		default:
			s.writeError(session, "INVALID_ARGUMENT", "unsupported event")
		}
	}
}

// parseWorkspaceID accepts either a bare JSON string or {"workspaceId": "..."}.
func parseWorkspaceID(data json.RawMessage) (uuid.UUID, bool) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var obj struct {
			WorkspaceID    string `json:"workspaceId"`
			OrganizationID string `json:"organizationId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return uuid.Nil, false
		}
		raw = obj.WorkspaceID
		if raw == "" {
			raw = obj.OrganizationID
		}
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleJoin(ctx context.Context, session *Session, data json.RawMessage) {
	orgID, ok := parseWorkspaceID(data)
	if !ok {
		s.writeError(session, "INVALID_ARGUMENT", "workspace id is required")
		return
	}

	if s.members != nil {
		allowed, err := s.members.IsActiveMember(ctx, orgID, session.Identity.UserID)
		if err != nil {
			s.logger.Error("workspace membership check failed",
				"connection_id", session.ID,
				"organization_id", orgID,
				"error", err,
			)
			s.writeError(session, "UNAVAILABLE", "membership verification unavailable")
			return
		}
		if !allowed {
			s.writeError(session, "FORBIDDEN", "you are not a member of this workspace")
			return
		}
	}

	room := WorkspaceRoom(orgID)
	s.hub.Join(session, room)
	s.logger.Info("workspace joined", "connection_id", session.ID, "user_id", session.Identity.UserID, "room", room)
	s.broadcastPresence(ctx, room)
}

func (s *Server) handleLeave(ctx context.Context, session *Session, data json.RawMessage) {
	orgID, ok := parseWorkspaceID(data)
	if !ok {
		s.writeError(session, "INVALID_ARGUMENT", "workspace id is required")
		return
	}

	room := WorkspaceRoom(orgID)
	if !session.InRoom(room) {
		return
	}
	s.hub.Leave(session, room)
	s.broadcastPresence(ctx, room)
}

func (s *Server) disconnect(session *Session) {
	rooms := s.hub.Disconnect(session)
	ctx := context.Background()
	for _, room := range rooms {
		if IsWorkspaceRoom(room) {
			s.broadcastPresence(ctx, room)
		}
	}
	s.logger.Info("websocket disconnected", "connection_id", session.ID, "user_id", session.Identity.UserID)
}

// broadcastPresence sends the current de-duplicated user list of room to room.
func (s *Server) broadcastPresence(ctx context.Context, room string) {
	users := Presence(s.directory.Subscribers(room))
	if err := s.publisher.Publish(ctx, room, EventWorkspaceUsers, users); err != nil {
		s.logger.Warn("presence broadcast failed", "room", room, "error", err)
	}
}

func (s *Server) writeError(session *Session, code, message string) {
	payload, _ := json.Marshal(ErrorData{Code: code, Message: message})
	_ = session.peer.writeFrame(Frame{Event: EventError, Data: payload})
}

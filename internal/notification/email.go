package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/tendant/teamsync/pkg/invitation"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	config EmailConfig
	send   SendFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, send: smtp.SendMail}
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<html><body>
		<h2>You're invited to join {{.OrganizationName}}</h2>
		<p>{{.InviterName}} has invited you to join <strong>{{.OrganizationName}}</strong> as {{.Role}}.</p>
		<p><a href="{{.Link}}">Accept invitation</a></p>
		<p>Or copy this link to your browser: {{.Link}}</p>
		<p>This invitation expires on {{.ExpiresAt.Format "January 2, 2006"}}.</p>
		<p>If you were not expecting this invitation, you can ignore this email.</p>
	</body></html>`))

// SendInvitation emails an invitation link.
func (s *EmailService) SendInvitation(ctx context.Context, msg invitation.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := invitationTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("render invitation email: %w", err)
	}
	subject := fmt.Sprintf("Invitation to join %s on TeamSync", msg.OrganizationName)
	return s.sendEmail(msg.To, subject, body.String())
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, headerValue(subject), body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.send(addr, auth, s.config.From, []string{to}, []byte(msg))
}

// headerValue strips line breaks so user supplied names cannot inject headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogMailer logs invitations instead of sending them. Used when SMTP is
// not configured. The acceptance token is never logged.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendInvitation logs the invitation.
func (m *LogMailer) SendInvitation(ctx context.Context, msg invitation.Email) error {
	m.logger.InfoContext(ctx, "smtp not configured, invitation email not sent",
		"to", msg.To,
		"organization", msg.OrganizationName,
		"role", msg.Role,
		"link", redactToken(msg.Link),
		"expires_at", msg.ExpiresAt,
	)
	return nil
}

// redactToken masks the token query parameter of an invitation link.
func redactToken(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "[unparseable link]"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

package notification

import (
	"bytes"
	"context"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/tendant/teamsync/pkg/domain"
	"github.com/tendant/teamsync/pkg/invitation"
)

func TestSendInvitation(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	svc := NewEmailService(EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "noreply@example.com",
		FromName: "TeamSync",
	})
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := svc.SendInvitation(context.Background(), invitation.Email{
		To:               "bob@example.com",
		OrganizationName: "Acme <Corp>\r\nBcc: evil@example.com",
		InviterName:      "Alice",
		Role:             domain.RoleMember,
		Link:             "http://localhost:5173/invite/accept?token=abc",
		ExpiresAt:        time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "bob@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	headers, _, _ := strings.Cut(gotMsg, "\r\n\r\n")
	if strings.Contains(headers, "\r\nBcc:") {
		t.Error("organization name injected a header")
	}
	if !strings.Contains(gotMsg, "Acme &lt;Corp&gt;") {
		t.Error("organization name not escaped in body")
	}
	if !strings.Contains(gotMsg, "token=abc") {
		t.Error("body missing invitation link")
	}
	if !strings.Contains(gotMsg, "January 8, 2026") {
		t.Error("body missing expiry date")
	}
}

func TestSendInvitation_CanceledContext(t *testing.T) {
	svc := NewEmailService(EmailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send called with canceled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.SendInvitation(ctx, invitation.Email{To: "bob@example.com"}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestLogMailer_RedactsToken(t *testing.T) {
	var logs bytes.Buffer
	mailer := NewLogMailer(slog.New(slog.NewTextHandler(&logs, nil)))

	err := mailer.SendInvitation(context.Background(), invitation.Email{
		To:               "bob@example.com",
		OrganizationName: "Acme",
		Link:             "http://localhost:5173/invite/accept?token=s3cret-token-value",
	})
	if err != nil {
		t.Fatalf("SendInvitation() error = %v", err)
	}

	out := logs.String()
	if strings.Contains(out, "s3cret-token-value") {
		t.Errorf("log leaks the acceptance token: %s", out)
	}
	for _, want := range []string{"bob@example.com", "Acme", "token=REDACTED"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestRedactToken(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"http://app.example/invite/accept?token=abc", "http://app.example/invite/accept?token=REDACTED"},
		{"http://app.example/invite", "http://app.example/invite"},
		{"://bad", "[unparseable link]"},
	}
	for _, tt := range tests {
		if got := redactToken(tt.link); got != tt.want {
			t.Errorf("redactToken(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

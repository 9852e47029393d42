package validate

import (
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		want    string
		wantErr bool
	}{
		{name: "valid email", email: "test@example.com", want: "test@example.com"},
		{name: "valid email with subdomain", email: "test@mail.example.com", want: "test@mail.example.com"},
		{name: "valid email with plus", email: "test+tag@example.com", want: "test+tag@example.com"},
		{name: "normalized", email: "  Bob@Example.COM ", want: "bob@example.com"},
		{name: "empty email", email: "", wantErr: true},
		{name: "invalid - no @", email: "invalid.com", wantErr: true},
		{name: "invalid - no domain", email: "test@", wantErr: true},
		{name: "invalid - no local part", email: "@example.com", wantErr: true},
		{name: "invalid - bare host", email: "test@localhost", wantErr: true},
		{name: "invalid - display name", email: "Bob <bob@example.com>", wantErr: true},
		{name: "too long", email: strings.Repeat("a", 300) + "@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := Email(tt.email)
			if (msg != "") != tt.wantErr {
				t.Fatalf("Email(%q) message = %q, wantErr %v", tt.email, msg, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "lowercase", email: "Test@Example.COM", want: "test@example.com"},
		{name: "trim spaces", email: "  test@example.com  ", want: "test@example.com"},
		{name: "both", email: "  Test@Example.COM  ", want: "test@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.email); got != tt.want {
				t.Errorf("NormalizeEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}

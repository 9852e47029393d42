// Package validate checks and normalizes request input.
package validate

import (
	"net/mail"
	"regexp"
	"strings"
)

// Stricter than RFC 5322: rejects quoted local parts and bare hostnames.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const maxEmailLength = 254 // RFC 5321

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email normalizes raw and reports a message describing why it is unusable,
// or "" when it is a valid address.
func Email(raw string) (string, string) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", "email is required"
	}
	if len(email) > maxEmailLength {
		return email, "email is too long"
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !emailRegex.MatchString(email) {
		return email, "invalid email address"
	}
	return email, ""
}

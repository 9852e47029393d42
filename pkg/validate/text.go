package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/teamsync/pkg/domain"
)

// CleanText trims s and strips control characters other than newline and tab.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Length reports a message when value is outside [min, max] characters.
// A zero bound is not checked.
func Length(field, value string, min, max int) string {
	n := utf8.RuneCountInString(value)
	if min > 0 && n < min {
		return fmt.Sprintf("%s must be at least %d characters", field, min)
	}
	if max > 0 && n > max {
		return fmt.Sprintf("%s must be at most %d characters", field, max)
	}
	return ""
}

// Errors collects field violations.
type Errors []domain.FieldViolation

// Check records message against field unless it is empty.
func (e *Errors) Check(field, message string) {
	if message != "" {
		*e = append(*e, domain.FieldViolation{Field: field, Message: message})
	}
}

// Err returns a validation error, or nil when nothing was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return domain.ValidationError(e...)
}

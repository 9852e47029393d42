package validate

import (
	"errors"
	"testing"

	"github.com/tendant/teamsync/pkg/domain"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Hello World", want: "Hello World"},
		{name: "trim spaces", input: "  Acme  ", want: "Acme"},
		{name: "control characters", input: "Ac\x00me\x07", want: "Acme"},
		{name: "keeps newlines", input: "line one\nline two", want: "line one\nline two"},
		{name: "unicode", input: "José García", want: "José García"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		min     int
		max     int
		wantErr bool
	}{
		{name: "within range", value: "Acme", min: 2, max: 100},
		{name: "too short", value: "A", min: 2, max: 100, wantErr: true},
		{name: "too long", value: "abcdefghijk", min: 2, max: 10, wantErr: true},
		{name: "counts runes", value: "éé", min: 2, max: 2},
		{name: "no min requirement", value: "", max: 10},
		{name: "no max requirement", value: "verylongname", min: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Length("name", tt.value, tt.min, tt.max)
			if (msg != "") != tt.wantErr {
				t.Errorf("Length() = %q, wantErr %v", msg, tt.wantErr)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	errs.Check("name", "")
	if err := errs.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}

	errs.Check("email", "invalid email address")
	errs.Check("role", "invalid role")

	var derr *domain.Error
	if !errors.As(errs.Err(), &derr) {
		t.Fatalf("Err() should be a *domain.Error")
	}
	if derr.Kind != domain.KindValidation || len(derr.Fields) != 2 {
		t.Errorf("Err() = %+v, want validation error with 2 fields", derr)
	}
}

package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/tendant/teamsync/pkg/domain"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "app", Password: "secret", DBName: "teamsync"}
	want := "host=db port=5432 user=app password=secret dbname=teamsync sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		unique    bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true, false},
		{"deadlock", &pq.Error{Code: "40P01"}, true, false},
		{"unique violation", &pq.Error{Code: "23505"}, false, true},
		{"plain error", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := isUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.unique)
			}
		})
	}

	if err := mapWriteError(&pq.Error{Code: "23505"}, domain.ErrAlreadyMember); !errors.Is(err, domain.ErrAlreadyMember) {
		t.Errorf("mapWriteError = %v, want ErrAlreadyMember", err)
	}
}

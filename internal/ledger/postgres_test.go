package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestMapPgError(t *testing.T) {
	other := errors.New("syntax")
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"lock timeout", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}, true},
		{"serialization", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"}), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPgError(tt.err)
			if errors.Is(got, ErrConcurrencyConflict) != tt.conflict {
				t.Errorf("mapPgError(%v) = %v, conflict want %v", tt.err, got, tt.conflict)
			}
		})
	}
	if mapPgError(nil) != nil {
		t.Error("mapPgError(nil) should be nil")
	}
}

func TestLockErrorDeadline(t *testing.T) {
	err := lockError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Errorf("lockError() = %v", err)
	}
	if lockError(ErrNotFound) != ErrNotFound {
		t.Errorf("lockError() should pass ErrNotFound through")
	}
}

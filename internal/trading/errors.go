package trading

import (
	"errors"

	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
)

var (
	ErrNotFound            = ledger.ErrNotFound
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrPriceUnavailable    = marketdata.ErrPriceUnavailable
	ErrConcurrencyConflict = ledger.ErrConcurrencyConflict
)

// Retryable reports whether the same request may succeed later without change.
func Retryable(err error) bool {
	return errors.Is(err, ErrPriceUnavailable) || errors.Is(err, ErrConcurrencyConflict)
}

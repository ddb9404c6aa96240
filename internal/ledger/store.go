package ledger

import (
	"context"
	"errors"

	"vtrade/internal/model"
	"vtrade/internal/types"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("portfolio is busy, retry the request")
)

// TransactionFilter selects one page of a portfolio's transactions, newest first.
type TransactionFilter struct {
	PortfolioID string
	Type        types.TransactionType
	Offset      int
	Limit       int
}

// Store owns Portfolio, Holding and Transaction state. Reads on Store see
// committed data only; every mutation goes through WithTransaction.
type Store interface {
	// PortfolioByUser returns the active portfolio of userID.
	PortfolioByUser(ctx context.Context, userID string) (model.Portfolio, error)
	PortfolioByID(ctx context.Context, id string) (model.Portfolio, error)
	// EnsurePortfolio returns the active portfolio of p.UserID. Otherwise it
	// reactivates the user's most recently closed portfolio, and only a user
	// who never had one gets p inserted. The bool reports an insert, so the
	// initial grant is made once per user.
	EnsurePortfolio(ctx context.Context, p model.Portfolio) (model.Portfolio, bool, error)
	Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error)
	Transactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, int, error)
	// History returns completed transactions in replay order. An empty
	// symbolCode returns every symbol of the portfolio.
	History(ctx context.Context, portfolioID, symbolCode string) ([]model.Transaction, error)
	// Leaderboard returns active portfolios with at least one transaction,
	// ordered by sortBy descending then total asset value descending.
	Leaderboard(ctx context.Context, sortBy types.LeaderboardSort, limit int) ([]model.Portfolio, error)
	ActivePortfolioIDs(ctx context.Context) ([]string, error)
	// WithTransaction runs fn atomically: nil commits, any error rolls back
	// every write made through tx.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of one atomic unit. LockPortfolio and LockPortfolioByID
// hold the portfolio until the unit ends, serializing concurrent mutations.
type Tx interface {
	LockPortfolio(ctx context.Context, userID string) (model.Portfolio, error)
	LockPortfolioByID(ctx context.Context, id string) (model.Portfolio, error)
	Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error)
	Holding(ctx context.Context, portfolioID, symbolCode string) (model.Holding, bool, error)
	SaveHolding(ctx context.Context, h model.Holding) (model.Holding, error)
	DeleteHolding(ctx context.Context, portfolioID, symbolCode string) error
	SavePortfolio(ctx context.Context, p model.Portfolio) error
	AppendTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error)
}

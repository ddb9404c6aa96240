package trading

import (
	"context"
	"errors"
	"fmt"
	"math"

	"vtrade/internal/costbasis"
	"vtrade/internal/ledger"
	"vtrade/internal/model"
	"vtrade/internal/types"

	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type HistoryQuery struct {
	Page  int
	Limit int
	Type  types.TransactionType
}

// HistoryEntry is a transaction annotated with the cost basis rebuilt from
// the portfolio's history. Cost fields are nil when the basis is unknown.
type HistoryEntry struct {
	model.Transaction
	AverageCost          *int64           `json:"average_cost"`
	CostBasis            *int64           `json:"cost_basis,omitempty"`
	ProfitLoss           *int64           `json:"profit_loss,omitempty"`
	ProfitLossPercentage *decimal.Decimal `json:"profit_loss_percentage,omitempty"`
}

type HistoryPage struct {
	Transactions []HistoryEntry `json:"transactions"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	Limit        int            `json:"limit"`
	TotalPages   int            `json:"total_pages"`
}

func (s *Service) TransactionHistory(ctx context.Context, userID string, q HistoryQuery) (HistoryPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return HistoryPage{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	q.Limit = clampLimit(q.Limit, DefaultHistoryLimit, MaxHistoryLimit)
	if q.Page > math.MaxInt/q.Limit {
		return HistoryPage{}, fmt.Errorf("%w: page is out of range", ErrInvalidInput)
	}
	if q.Type != "" && !q.Type.Valid() {
		return HistoryPage{}, fmt.Errorf("%w: type must be BUY or SELL", ErrInvalidInput)
	}
	page := HistoryPage{Transactions: []HistoryEntry{}, Page: q.Page, Limit: q.Limit}

	p, err := s.store.PortfolioByUser(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return page, nil
	}
	if err != nil {
		return HistoryPage{}, err
	}
	txs, total, err := s.store.Transactions(ctx, ledger.TransactionFilter{
		PortfolioID: p.ID,
		Type:        q.Type,
		Offset:      (q.Page - 1) * q.Limit,
		Limit:       q.Limit,
	})
	if err != nil {
		return HistoryPage{}, err
	}
	page.Total = total
	page.TotalPages = (total + q.Limit - 1) / q.Limit
	if len(txs) == 0 {
		return page, nil
	}

	history, err := s.store.History(ctx, p.ID, "")
	if err != nil {
		return HistoryPage{}, err
	}
	bases := costbasis.Replay(history)
	for _, t := range txs {
		page.Transactions = append(page.Transactions, annotate(t, bases[t.ID]))
	}
	return page, nil
}

func annotate(t model.Transaction, b costbasis.Basis) HistoryEntry {
	e := HistoryEntry{Transaction: t}
	if !t.Completed() || !b.Known {
		return e
	}
	avg := b.AverageCost
	e.AverageCost = &avg
	if t.Type != types.TransactionTypeSell {
		return e
	}
	cost := avg * t.Quantity
	pl := t.NetAmount - cost
	pct := percentage(t.PricePerShare-avg, avg)
	e.CostBasis = &cost
	e.ProfitLoss = &pl
	e.ProfitLossPercentage = &pct
	return e
}

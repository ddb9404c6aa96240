package model

import (
	"time"

	"vtrade/internal/types"
)

// TradeDetails is the market context captured when a transaction executes.
type TradeDetails struct {
	OrderType         types.OrderType `json:"order_type"`
	MarketPrice       *int64          `json:"market_price,omitempty"`
	LimitPrice        *int64          `json:"limit_price,omitempty"`
	AverageCostAtSell *int64          `json:"average_cost_at_sell,omitempty"`
}

// Transaction is an append-only BUY or SELL record. NetAmount is the absolute
// cash movement: debited for buys, credited for sells. Orders execute
// atomically and are written COMPLETED; PENDING, FAILED and FailureReason are
// kept for rows written by other producers and are never replayed.
type Transaction struct {
	ID                     string                  `json:"id"`
	PortfolioID            string                  `json:"portfolio_id"`
	SymbolCode             string                  `json:"symbol_code"`
	Type                   types.TransactionType   `json:"transaction_type"`
	Quantity               int64                   `json:"quantity"`
	PricePerShare          int64                   `json:"price_per_share"`
	TotalAmount            int64                   `json:"total_amount"`
	Fee                    int64                   `json:"fee"`
	Tax                    int64                   `json:"tax"`
	NetAmount              int64                   `json:"net_amount"`
	Status                 types.TransactionStatus `json:"status"`
	FailureReason          string                  `json:"failure_reason,omitempty"`
	Details                TradeDetails            `json:"market_data"`
	PortfolioBalanceBefore int64                   `json:"portfolio_balance_before"`
	PortfolioBalanceAfter  int64                   `json:"portfolio_balance_after"`
	ExecutedAt             time.Time               `json:"executed_at"`
	CreatedAt              time.Time               `json:"created_at"`
	Sequence               int64                   `json:"-"`
}

func (t Transaction) Completed() bool {
	return t.Status == types.TransactionStatusCompleted
}

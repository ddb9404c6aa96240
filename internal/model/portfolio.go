package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a user's simulated cash and holdings account. Money fields are
// integer minor currency units.
type Portfolio struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	CashBalance          int64           `json:"cash_balance"`
	InitialCashBalance   int64           `json:"initial_cash_balance"`
	TotalAssetValue      int64           `json:"total_asset_value"`
	StockValue           int64           `json:"stock_value"`
	TotalProfitLoss      int64           `json:"total_profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
	TotalTransactions    int             `json:"total_transactions"`
	SuccessfulTrades     int             `json:"successful_trades"`
	IsActive             bool            `json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Holding is the current position in one symbol. Quantity is always > 0 for a
// persisted holding.
type Holding struct {
	ID                   string          `json:"id"`
	PortfolioID          string          `json:"portfolio_id"`
	SymbolCode           string          `json:"symbol_code"`
	Quantity             int64           `json:"quantity"`
	AveragePrice         int64           `json:"average_price"`
	TotalCost            int64           `json:"total_cost"`
	CurrentPrice         int64           `json:"current_price"`
	CurrentValue         int64           `json:"current_value"`
	UnrealizedProfitLoss int64           `json:"unrealized_profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
	LastPriceUpdate      *time.Time      `json:"last_price_update"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Symbol is the read-only catalog entry for a tradable code.
type Symbol struct {
	Code string `json:"symbol"`
	Name string `json:"name"`
}

// DisplayName falls back to the code when the catalog has no short name.
func (s Symbol) DisplayName() string {
	if s.Name == "" {
		return s.Code
	}
	return s.Name
}

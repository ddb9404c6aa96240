package types

type TransactionType string

type TransactionStatus string

type OrderType string

type LeaderboardSort string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Only COMPLETED rows count toward cost basis and P&L. The executor never
// writes the other statuses.
const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	LeaderboardSortValue      LeaderboardSort = "value"
	LeaderboardSortPercentage LeaderboardSort = "percentage"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeBuy || t == TransactionTypeSell
}

func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

func (s LeaderboardSort) Valid() bool {
	return s == LeaderboardSortValue || s == LeaderboardSortPercentage
}

// Package costbasis holds the weighted-average cost arithmetic used when orders
// execute and when historical cost basis is rebuilt from the transaction log.
// Both paths go through ApplyBuy and ApplySell so a replay reproduces exactly the
// holding state that was written live.
package costbasis

import (
	"sort"

	"vtrade/internal/model"
	"vtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Position is the running cost state of one (portfolio, symbol) pair.
type Position struct {
	Quantity     int64
	AveragePrice int64
	TotalCost    int64
}

func (p Position) Empty() bool {
	return p.Quantity <= 0
}

// ApplyBuy adds qty units bought at price. An empty position restarts at the
// buy price; otherwise total cost grows by qty*price and the average is
// floor(totalCost / quantity).
func ApplyBuy(p Position, qty, price int64) Position {
	amount := qty * price
	if p.Empty() {
		return Position{Quantity: qty, AveragePrice: price, TotalCost: amount}
	}
	total := p.TotalCost + amount
	q := p.Quantity + qty
	return Position{Quantity: q, AveragePrice: FloorDiv(total, q), TotalCost: total}
}

// ApplySell removes qty units and the proportional share of total cost,
// floor(totalCost * qty / preSaleQuantity). The average price is unchanged.
// Selling the whole position returns the zero Position.
func ApplySell(p Position, qty int64) (Position, int64) {
	if p.Empty() || qty <= 0 {
		return p, 0
	}
	if qty > p.Quantity {
		qty = p.Quantity
	}
	sold := MulDivFloor(p.TotalCost, qty, p.Quantity)
	rest := Position{
		Quantity:     p.Quantity - qty,
		AveragePrice: p.AveragePrice,
		TotalCost:    p.TotalCost - sold,
	}
	if rest.Quantity == 0 {
		return Position{}, sold
	}
	return rest, sold
}

// FloorDiv is floor(a / b) for b != 0.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MulDivFloor is floor(a * b / c) without overflowing the intermediate product.
func MulDivFloor(a, b, c int64) int64 {
	q, r := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)).QuoRem(decimal.NewFromInt(c), 0)
	if !r.IsZero() && (r.Sign() < 0) != (c < 0) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.IntPart()
}

// Less orders transactions for replay: executedAt, then createdAt, then the
// store-assigned sequence.
func Less(a, b model.Transaction) bool {
	if !a.ExecutedAt.Equal(b.ExecutedAt) {
		return a.ExecutedAt.Before(b.ExecutedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Sequence < b.Sequence
}

// Sort puts history in replay order in place.
func Sort(history []model.Transaction) {
	sort.SliceStable(history, func(i, j int) bool { return Less(history[i], history[j]) })
}

func sameBook(a, b model.Transaction) bool {
	return a.PortfolioID == b.PortfolioID && a.SymbolCode == b.SymbolCode
}

// positionBefore replays the completed history of target's book that strictly
// precedes target. It tracks the live position, so a book that went flat
// restarts from zero; this differs from the prefix average
// sum(qty*price)/sum(qty) over all earlier buys once a position is reopened.
func positionBefore(history []model.Transaction, target model.Transaction) Position {
	prior := make([]model.Transaction, 0, len(history))
	for _, t := range history {
		if !t.Completed() || !sameBook(t, target) || t.ID == target.ID || !Less(t, target) {
			continue
		}
		prior = append(prior, t)
	}
	Sort(prior)
	var pos Position
	for _, t := range prior {
		pos = apply(pos, t)
	}
	return pos
}

func apply(pos Position, t model.Transaction) Position {
	switch t.Type {
	case types.TransactionTypeBuy:
		return ApplyBuy(pos, t.Quantity, t.PricePerShare)
	case types.TransactionTypeSell:
		pos, _ = ApplySell(pos, t.Quantity)
	}
	return pos
}

// AverageCostAfterBuy rebuilds the average cost in effect right after buy.
// With no remaining quantity before the buy the result is the buy's own price.
func AverageCostAfterBuy(history []model.Transaction, buy model.Transaction) int64 {
	pos := positionBefore(history, buy)
	return ApplyBuy(pos, buy.Quantity, buy.PricePerShare).AveragePrice
}

// AverageCostAtSell returns the average cost of the most recent completed buy
// before sell. ok is false when no such buy exists and the basis is unknown.
func AverageCostAtSell(history []model.Transaction, sell model.Transaction) (avg int64, ok bool) {
	var last *model.Transaction
	for i := range history {
		t := history[i]
		if t.Type != types.TransactionTypeBuy || !t.Completed() || !sameBook(t, sell) || !Less(t, sell) {
			continue
		}
		if last == nil || Less(*last, t) {
			last = &history[i]
		}
	}
	if last == nil {
		return 0, false
	}
	return AverageCostAfterBuy(history, *last), true
}

// Basis is the cost basis attached to one transaction by Replay.
type Basis struct {
	AverageCost int64
	Known       bool
}

// Replay walks the completed history once and returns, per transaction id, the
// average cost after the buy for BUY rows and the average cost at the time of
// sale for SELL rows. It agrees with AverageCostAfterBuy and AverageCostAtSell.
func Replay(history []model.Transaction) map[string]Basis {
	ordered := make([]model.Transaction, 0, len(history))
	for _, t := range history {
		if t.Completed() {
			ordered = append(ordered, t)
		}
	}
	Sort(ordered)

	type book struct {
		pos        Position
		lastBuyAvg int64
		bought     bool
	}
	books := make(map[string]*book)
	out := make(map[string]Basis, len(ordered))
	for _, t := range ordered {
		key := t.PortfolioID + "|" + t.SymbolCode
		b, ok := books[key]
		if !ok {
			b = &book{}
			books[key] = b
		}
		switch t.Type {
		case types.TransactionTypeBuy:
			b.pos = ApplyBuy(b.pos, t.Quantity, t.PricePerShare)
			b.lastBuyAvg = b.pos.AveragePrice
			b.bought = true
			out[t.ID] = Basis{AverageCost: b.pos.AveragePrice, Known: true}
		case types.TransactionTypeSell:
			out[t.ID] = Basis{AverageCost: b.lastBuyAvg, Known: b.bought}
			b.pos, _ = ApplySell(b.pos, t.Quantity)
		}
	}
	return out
}

// RealizedProfitLoss sums netAmount - costAtSell*quantity over completed sells.
// Sells with unknown cost basis contribute nothing.
func RealizedProfitLoss(history []model.Transaction) int64 {
	bases := Replay(history)
	var total int64
	for _, t := range history {
		if t.Type != types.TransactionTypeSell || !t.Completed() {
			continue
		}
		b, ok := bases[t.ID]
		if !ok || !b.Known {
			continue
		}
		total += t.NetAmount - b.AverageCost*t.Quantity
	}
	return total
}

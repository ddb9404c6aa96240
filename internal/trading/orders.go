package trading

import (
	"context"
	"fmt"
	"math"
	"strings"

	"vtrade/internal/costbasis"
	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"
	"vtrade/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	SymbolCode string
	Quantity   int64
	OrderType  types.OrderType
	LimitPrice *int64
}

type OrderResult struct {
	Transaction model.Transaction `json:"transaction"`
	SymbolName  string            `json:"symbol_name"`
	Portfolio   model.Portfolio   `json:"portfolio"`
}

// execution is everything resolved before the atomic section.
type execution struct {
	userID  string
	side    types.TransactionType
	order   Order
	symbol  model.Symbol
	price   int64
	details model.TradeDetails
	quotes  quoteSet
}

func (s *Service) Buy(ctx context.Context, userID string, order Order) (OrderResult, error) {
	return s.execute(ctx, userID, types.TransactionTypeBuy, order)
}

func (s *Service) Sell(ctx context.Context, userID string, order Order) (OrderResult, error) {
	return s.execute(ctx, userID, types.TransactionTypeSell, order)
}

func (s *Service) execute(ctx context.Context, userID string, side types.TransactionType, order Order) (OrderResult, error) {
	ex, err := s.prepare(ctx, userID, side, order)
	if err != nil {
		return OrderResult{}, err
	}

	var res OrderResult
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockPortfolio(ctx, userID)
		if err != nil {
			return fmt.Errorf("portfolio: %w", err)
		}
		var t model.Transaction
		if side == types.TransactionTypeBuy {
			locked, t, err = s.applyBuy(ctx, tx, locked, ex)
		} else {
			locked, t, err = s.applySell(ctx, tx, locked, ex)
		}
		if err != nil {
			return err
		}
		locked.TotalTransactions++
		locked.SuccessfulTrades++
		p, _, err := s.applyValuation(ctx, tx, locked, ex.quotes, t.ExecutedAt)
		if err != nil {
			return err
		}
		res = OrderResult{Transaction: t, SymbolName: ex.symbol.DisplayName(), Portfolio: p}
		return nil
	})
	if err != nil {
		return OrderResult{}, err
	}

	t := res.Transaction
	s.log.Info().
		Str("user_id", userID).
		Str("portfolio_id", t.PortfolioID).
		Str("side", string(side)).
		Str("symbol", t.SymbolCode).
		Int64("quantity", t.Quantity).
		Int64("price", t.PricePerShare).
		Int64("net_amount", t.NetAmount).
		Int64("cash_balance", res.Portfolio.CashBalance).
		Msg("order executed")
	s.publish(userID, marketdata.EventOrderExecuted, res)
	s.publish(userID, marketdata.EventPortfolio, res.Portfolio)
	return res, nil
}

// prepare validates the order in the documented order and fetches prices
// outside of any lock: portfolio, symbol, quantity, price.
func (s *Service) prepare(ctx context.Context, userID string, side types.TransactionType, order Order) (execution, error) {
	p, err := s.store.PortfolioByUser(ctx, userID)
	if err != nil {
		return execution{}, fmt.Errorf("portfolio: %w", err)
	}
	order.SymbolCode = strings.ToUpper(strings.TrimSpace(order.SymbolCode))
	if order.SymbolCode == "" {
		return execution{}, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	sym, err := s.symbol(ctx, order.SymbolCode)
	if err != nil {
		return execution{}, err
	}
	if order.Quantity < 1 {
		return execution{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if order.OrderType == "" {
		order.OrderType = types.OrderTypeMarket
	}
	if !order.OrderType.Valid() {
		return execution{}, fmt.Errorf("%w: unknown order type %q", ErrInvalidInput, order.OrderType)
	}

	ex := execution{userID: userID, side: side, order: order, symbol: sym, details: model.TradeDetails{OrderType: order.OrderType}}
	holdings, err := s.store.Holdings(ctx, p.ID)
	if err != nil {
		return execution{}, err
	}
	others := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.SymbolCode != sym.Code {
			others = append(others, h.SymbolCode)
		}
	}

	switch order.OrderType {
	case types.OrderTypeLimit:
		if order.LimitPrice == nil {
			return execution{}, fmt.Errorf("%w: limit price is required for LIMIT orders", ErrInvalidInput)
		}
		if *order.LimitPrice <= 0 {
			return execution{}, fmt.Errorf("%w: limit price must be positive", ErrInvalidInput)
		}
		ex.price = *order.LimitPrice
		limit := *order.LimitPrice
		ex.details.LimitPrice = &limit
		ex.quotes = newQuoteSet()
		s.fetchQuotes(ctx, ex.quotes, append(others, sym.Code))
		if q, ok := ex.quotes.prices[sym.Code]; ok {
			mp := q.Price
			ex.details.MarketPrice = &mp
		} else {
			// mark the new position at its execution price
			ex.quotes.put(sym.Code, marketdata.Quote{Symbol: sym.Code, Price: ex.price, AsOf: s.now()})
		}
	default:
		q, err := s.quote(ctx, sym.Code)
		if err != nil {
			return execution{}, err
		}
		ex.price = q.Price
		mp := q.Price
		ex.details.MarketPrice = &mp
		ex.quotes = newQuoteSet()
		ex.quotes.put(sym.Code, q)
		s.fetchQuotes(ctx, ex.quotes, others)
	}
	return ex, nil
}

func (s *Service) amounts(qty, price int64, side types.TransactionType) (total, fee, tax int64, err error) {
	product := decimal.NewFromInt(qty).Mul(decimal.NewFromInt(price))
	if product.GreaterThan(decimal.NewFromInt(math.MaxInt64 / 2)) {
		return 0, 0, 0, fmt.Errorf("%w: order amount too large", ErrInvalidInput)
	}
	total = product.IntPart()
	fee = product.Mul(s.cfg.FeeRate).Floor().IntPart()
	if side == types.TransactionTypeSell {
		tax = product.Mul(s.cfg.TaxRate).Floor().IntPart()
	}
	return total, fee, tax, nil
}

func positionOf(h model.Holding) costbasis.Position {
	return costbasis.Position{Quantity: h.Quantity, AveragePrice: h.AveragePrice, TotalCost: h.TotalCost}
}

func (s *Service) applyBuy(ctx context.Context, tx ledger.Tx, p model.Portfolio, ex execution) (model.Portfolio, model.Transaction, error) {
	qty := ex.order.Quantity
	total, fee, _, err := s.amounts(qty, ex.price, types.TransactionTypeBuy)
	if err != nil {
		return p, model.Transaction{}, err
	}
	net := total + fee
	if p.CashBalance < net {
		return p, model.Transaction{}, fmt.Errorf("%w: need %d, available %d", ErrInsufficientFunds, net, p.CashBalance)
	}

	h, ok, err := tx.Holding(ctx, p.ID, ex.symbol.Code)
	if err != nil {
		return p, model.Transaction{}, err
	}
	if !ok {
		h = model.Holding{PortfolioID: p.ID, SymbolCode: ex.symbol.Code}
	}
	pos := costbasis.ApplyBuy(positionOf(h), qty, ex.price)
	h.Quantity, h.AveragePrice, h.TotalCost = pos.Quantity, pos.AveragePrice, pos.TotalCost
	if _, err := tx.SaveHolding(ctx, h); err != nil {
		return p, model.Transaction{}, fmt.Errorf("save holding: %w", err)
	}

	now := s.now()
	before := p.CashBalance
	p.CashBalance -= net
	t, err := tx.AppendTransaction(ctx, model.Transaction{
		PortfolioID:            p.ID,
		SymbolCode:             ex.symbol.Code,
		Type:                   types.TransactionTypeBuy,
		Quantity:               qty,
		PricePerShare:          ex.price,
		TotalAmount:            total,
		Fee:                    fee,
		NetAmount:              net,
		Status:                 types.TransactionStatusCompleted,
		Details:                ex.details,
		PortfolioBalanceBefore: before,
		PortfolioBalanceAfter:  p.CashBalance,
		ExecutedAt:             now,
		CreatedAt:              now,
	})
	if err != nil {
		return p, model.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return p, t, nil
}

func (s *Service) applySell(ctx context.Context, tx ledger.Tx, p model.Portfolio, ex execution) (model.Portfolio, model.Transaction, error) {
	qty := ex.order.Quantity
	h, ok, err := tx.Holding(ctx, p.ID, ex.symbol.Code)
	if err != nil {
		return p, model.Transaction{}, err
	}
	if !ok || h.Quantity < qty {
		return p, model.Transaction{}, fmt.Errorf("%w: want %d, held %d", ErrInsufficientShares, qty, h.Quantity)
	}
	total, fee, tax, err := s.amounts(qty, ex.price, types.TransactionTypeSell)
	if err != nil {
		return p, model.Transaction{}, err
	}
	net := total - fee - tax

	avg := h.AveragePrice
	details := ex.details
	details.AverageCostAtSell = &avg

	pos, _ := costbasis.ApplySell(positionOf(h), qty)
	if pos.Empty() {
		if err := tx.DeleteHolding(ctx, p.ID, h.SymbolCode); err != nil {
			return p, model.Transaction{}, fmt.Errorf("delete holding: %w", err)
		}
	} else {
		h.Quantity, h.AveragePrice, h.TotalCost = pos.Quantity, pos.AveragePrice, pos.TotalCost
		if _, err := tx.SaveHolding(ctx, h); err != nil {
			return p, model.Transaction{}, fmt.Errorf("save holding: %w", err)
		}
	}

	now := s.now()
	before := p.CashBalance
	p.CashBalance += net
	t, err := tx.AppendTransaction(ctx, model.Transaction{
		PortfolioID:            p.ID,
		SymbolCode:             ex.symbol.Code,
		Type:                   types.TransactionTypeSell,
		Quantity:               qty,
		PricePerShare:          ex.price,
		TotalAmount:            total,
		Fee:                    fee,
		Tax:                    tax,
		NetAmount:              net,
		Status:                 types.TransactionStatusCompleted,
		Details:                details,
		PortfolioBalanceBefore: before,
		PortfolioBalanceAfter:  p.CashBalance,
		ExecutedAt:             now,
		CreatedAt:              now,
	})
	if err != nil {
		return p, model.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return p, t, nil
}

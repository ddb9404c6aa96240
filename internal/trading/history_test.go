package trading

import (
	"context"
	"errors"
	"math"
	"testing"

	"vtrade/internal/types"
)

func TestTransactionHistoryAnnotatesCostBasis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "u1")
	for _, st := range []struct {
		side  types.TransactionType
		price int64
		qty   int64
	}{
		{types.TransactionTypeBuy, 65000, 100},
		{types.TransactionTypeBuy, 67000, 50},
		{types.TransactionTypeSell, 70000, 60},
	} {
		f.oracle.Set("VNM", st.price, 0)
		var err error
		if st.side == types.TransactionTypeBuy {
			_, err = f.svc.Buy(ctx, "u1", market("VNM", st.qty))
		} else {
			_, err = f.svc.Sell(ctx, "u1", market("VNM", st.qty))
		}
		if err != nil {
			t.Fatalf("%s error = %v", st.side, err)
		}
	}

	page, err := f.svc.TransactionHistory(ctx, "u1", HistoryQuery{Limit: 2})
	if err != nil {
		t.Fatalf("TransactionHistory() error = %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || page.Page != 1 || len(page.Transactions) != 2 {
		t.Fatalf("page = %+v", page)
	}
	sell, buy := page.Transactions[0], page.Transactions[1]
	if sell.Type != types.TransactionTypeSell || buy.Type != types.TransactionTypeBuy {
		t.Fatalf("order = %s, %s", sell.Type, buy.Type)
	}
	if sell.AverageCost == nil || *sell.AverageCost != 65666 || *sell.CostBasis != 65666*60 {
		t.Errorf("sell annotation = %+v", sell)
	}
	if *sell.ProfitLoss != 4_195_380-65666*60 || !sell.ProfitLossPercentage.Equal(dec("6.6001")) {
		t.Errorf("sell profit = %d, %s", *sell.ProfitLoss, sell.ProfitLossPercentage)
	}
	if buy.AverageCost == nil || *buy.AverageCost != 65666 || buy.ProfitLoss != nil {
		t.Errorf("buy annotation = %+v", buy)
	}

	sells, err := f.svc.TransactionHistory(ctx, "u1", HistoryQuery{Type: types.TransactionTypeSell})
	if err != nil || sells.Total != 1 || sells.Limit != DefaultHistoryLimit {
		t.Errorf("sell filter = %+v, %v", sells, err)
	}
	last, _ := f.svc.TransactionHistory(ctx, "u1", HistoryQuery{Page: 2, Limit: 2})
	if len(last.Transactions) != 1 || *last.Transactions[0].AverageCost != 65000 {
		t.Errorf("second page = %+v", last)
	}
}

func TestTransactionHistoryEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, err := f.svc.TransactionHistory(ctx, "nobody", HistoryQuery{})
	if err != nil || page.Total != 0 || page.Transactions == nil || len(page.Transactions) != 0 {
		t.Errorf("history without portfolio = %+v, %v", page, err)
	}
	if _, err := f.svc.TransactionHistory(ctx, "nobody", HistoryQuery{Type: "HOLD"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad type error = %v", err)
	}
	if _, err := f.svc.TransactionHistory(ctx, "nobody", HistoryQuery{Page: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad page error = %v", err)
	}

	f.open(t, "u1")
	f.oracle.Set("VNM", 1000, 0)
	if _, err := f.svc.Buy(ctx, "u1", market("VNM", 1)); err != nil {
		t.Fatalf("Buy() error = %v", err)
	}
	if _, err := f.svc.TransactionHistory(ctx, "u1", HistoryQuery{Page: math.MaxInt / 50, Limit: 100}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("overflowing page error = %v", err)
	}
	far, err := f.svc.TransactionHistory(ctx, "u1", HistoryQuery{Page: 1000, Limit: 100})
	if err != nil || far.Total != 1 || len(far.Transactions) != 0 {
		t.Errorf("page past the end = %+v, %v", far, err)
	}
}

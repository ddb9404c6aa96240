package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"vtrade/internal/model"
	"vtrade/internal/types"
)

func openPortfolio(t *testing.T, s *MemoryStore, userID string) model.Portfolio {
	t.Helper()
	p, created, err := s.EnsurePortfolio(context.Background(), model.Portfolio{
		UserID:             userID,
		CashBalance:        1000,
		InitialCashBalance: 1000,
		TotalAssetValue:    1000,
	})
	if err != nil || !created {
		t.Fatalf("EnsurePortfolio() = %v, %v", created, err)
	}
	return p
}

func TestMemoryEnsurePortfolioIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Second)
	first := openPortfolio(t, s, "u1")
	again, created, err := s.EnsurePortfolio(context.Background(), model.Portfolio{UserID: "u1", CashBalance: 5})
	if err != nil {
		t.Fatalf("EnsurePortfolio() error = %v", err)
	}
	if created || again.ID != first.ID || again.CashBalance != 1000 {
		t.Errorf("second EnsurePortfolio() = %+v, created %v", again, created)
	}
}

func TestMemoryEnsurePortfolioReactivatesClosed(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	first := openPortfolio(t, s, "u1")
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPortfolio(ctx, "u1")
		if err != nil {
			return err
		}
		p.CashBalance = 10
		p.IsActive = false
		return tx.SavePortfolio(ctx, p)
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	again, created, err := s.EnsurePortfolio(ctx, model.Portfolio{UserID: "u1", CashBalance: 1000, InitialCashBalance: 1000})
	if err != nil {
		t.Fatalf("EnsurePortfolio() error = %v", err)
	}
	if created || again.ID != first.ID || !again.IsActive || again.CashBalance != 10 {
		t.Errorf("EnsurePortfolio() after close = %+v, created %v", again, created)
	}
	if active, err := s.PortfolioByUser(ctx, "u1"); err != nil || active.ID != first.ID {
		t.Errorf("PortfolioByUser() = %+v, %v", active, err)
	}
}

func TestMemoryRollbackDiscardsWrites(t *testing.T) {
	s := NewMemoryStore(time.Second)
	p := openPortfolio(t, s, "u1")
	boom := errors.New("boom")
	err := s.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockPortfolio(ctx, "u1")
		if err != nil {
			return err
		}
		locked.CashBalance = 0
		if err := tx.SavePortfolio(ctx, locked); err != nil {
			return err
		}
		if _, err := tx.SaveHolding(ctx, model.Holding{PortfolioID: p.ID, SymbolCode: "VNM", Quantity: 1}); err != nil {
			return err
		}
		if _, err := tx.AppendTransaction(ctx, model.Transaction{PortfolioID: p.ID, Status: types.TransactionStatusCompleted}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	got, _ := s.PortfolioByID(context.Background(), p.ID)
	if got.CashBalance != 1000 {
		t.Errorf("cash after rollback = %d", got.CashBalance)
	}
	hs, _ := s.Holdings(context.Background(), p.ID)
	txs, total, _ := s.Transactions(context.Background(), TransactionFilter{PortfolioID: p.ID, Limit: 10})
	if len(hs) != 0 || len(txs) != 0 || total != 0 {
		t.Errorf("rollback left holdings %v, transactions %v", hs, txs)
	}
}

func TestMemoryCommitAppliesStagedState(t *testing.T) {
	s := NewMemoryStore(time.Second)
	p := openPortfolio(t, s, "u1")
	ctx := context.Background()
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockPortfolioByID(ctx, p.ID); err != nil {
			return err
		}
		if _, err := tx.SaveHolding(ctx, model.Holding{PortfolioID: p.ID, SymbolCode: "VNM", Quantity: 5}); err != nil {
			return err
		}
		if _, ok, _ := tx.Holding(ctx, p.ID, "VNM"); !ok {
			t.Errorf("staged holding not visible inside the transaction")
		}
		_, err := tx.SaveHolding(ctx, model.Holding{PortfolioID: p.ID, SymbolCode: "FPT", Quantity: 2})
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	err = s.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockPortfolioByID(ctx, p.ID); err != nil {
			return err
		}
		return tx.DeleteHolding(ctx, p.ID, "VNM")
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	hs, _ := s.Holdings(ctx, p.ID)
	if len(hs) != 1 || hs[0].SymbolCode != "FPT" {
		t.Errorf("Holdings() = %+v", hs)
	}
}

func TestMemoryLockTimeoutIsConcurrencyConflict(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	openPortfolio(t, s, "u1")
	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockPortfolio(ctx, "u1"); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked
	defer close(done)

	err := s.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockPortfolio(ctx, "u1")
		return err
	})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Errorf("WithTransaction() error = %v, want ErrConcurrencyConflict", err)
	}
}

func TestMemoryLockUnknownUser(t *testing.T) {
	s := NewMemoryStore(time.Second)
	err := s.WithTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockPortfolio(ctx, "nobody")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LockPortfolio() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryTransactionsPageNewestFirst(t *testing.T) {
	s := NewMemoryStore(time.Second)
	p := openPortfolio(t, s, "u1")
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		for i, typ := range []types.TransactionType{types.TransactionTypeBuy, types.TransactionTypeSell, types.TransactionTypeBuy} {
			at := base.Add(time.Duration(i) * time.Minute)
			if _, err := tx.AppendTransaction(ctx, model.Transaction{
				PortfolioID: p.ID, SymbolCode: "VNM", Type: typ, Quantity: int64(i + 1),
				Status: types.TransactionStatusCompleted, ExecutedAt: at, CreatedAt: at,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	page, total, _ := s.Transactions(ctx, TransactionFilter{PortfolioID: p.ID, Limit: 2})
	if total != 3 || len(page) != 2 || page[0].Quantity != 3 || page[1].Quantity != 2 {
		t.Errorf("first page = %+v, total %d", page, total)
	}
	page, total, _ = s.Transactions(ctx, TransactionFilter{PortfolioID: p.ID, Type: types.TransactionTypeBuy, Offset: 1, Limit: 2})
	if total != 2 || len(page) != 1 || page[0].Quantity != 1 {
		t.Errorf("filtered page = %+v, total %d", page, total)
	}
	page, total, _ = s.Transactions(ctx, TransactionFilter{PortfolioID: p.ID, Offset: -16, Limit: 2})
	if total != 3 || len(page) != 2 || page[0].Quantity != 3 {
		t.Errorf("negative offset page = %+v, total %d", page, total)
	}

	history, _ := s.History(ctx, p.ID, "VNM")
	if len(history) != 3 || history[0].Quantity != 1 || history[0].Sequence >= history[2].Sequence {
		t.Errorf("History() = %+v", history)
	}
}

func TestMemoryLeaderboardOrdering(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	set := func(userID string, value int64, pct string, trades int) {
		p := openPortfolio(t, s, userID)
		_ = s.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
			p.TotalAssetValue = value
			p.ProfitLossPercentage = mustDecimal(t, pct)
			p.TotalTransactions = trades
			return tx.SavePortfolio(ctx, p)
		})
	}
	set("a", 500, "10", 1)
	set("b", 900, "5", 1)
	set("c", 700, "10", 2)
	set("idle", 5000, "0", 0)

	byPct, _ := s.Leaderboard(ctx, types.LeaderboardSortPercentage, 10)
	if len(byPct) != 3 || byPct[0].UserID != "c" || byPct[1].UserID != "a" || byPct[2].UserID != "b" {
		t.Errorf("percentage board = %v", userIDs(byPct))
	}
	byValue, _ := s.Leaderboard(ctx, types.LeaderboardSortValue, 2)
	if len(byValue) != 2 || byValue[0].UserID != "b" || byValue[1].UserID != "c" {
		t.Errorf("value board = %v", userIDs(byValue))
	}
}

func userIDs(ps []model.Portfolio) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.UserID
	}
	return out
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vtrade/internal/model"
	"vtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const portfolioColumns = `id, user_id, cash_balance, initial_cash_balance, total_asset_value, stock_value,
	total_profit_loss, profit_loss_percentage, total_transactions, successful_trades, is_active, created_at, updated_at`

const holdingColumns = `id, portfolio_id, symbol_code, quantity, average_price, total_cost, current_price,
	current_value, unrealized_profit_loss, profit_loss_percentage, last_price_update, created_at, updated_at`

const transactionColumns = `id, sequence, portfolio_id, symbol_code, transaction_type, quantity, price_per_share,
	total_amount, fee, tax, net_amount, status, coalesce(failure_reason, ''), market_data,
	portfolio_balance_before, portfolio_balance_after, executed_at, created_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps the ledger in PostgreSQL. Mutations lock the portfolio row
// with SELECT ... FOR UPDATE inside a single database transaction.
type PGStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPGStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PGStore {
	return &PGStore{pool: pool, lockTimeout: lockTimeout}
}

func (s *PGStore) PortfolioByUser(ctx context.Context, userID string) (model.Portfolio, error) {
	row := s.pool.QueryRow(ctx, "select "+portfolioColumns+" from virtual_portfolios where user_id = $1 and is_active", userID)
	return scanPortfolio(row)
}

func (s *PGStore) PortfolioByID(ctx context.Context, id string) (model.Portfolio, error) {
	row := s.pool.QueryRow(ctx, "select "+portfolioColumns+" from virtual_portfolios where id = $1", id)
	return scanPortfolio(row)
}

func (s *PGStore) EnsurePortfolio(ctx context.Context, p model.Portfolio) (model.Portfolio, bool, error) {
	existing, err := s.PortfolioByUser(ctx, p.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Portfolio{}, false, err
	}
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		update virtual_portfolios set is_active = true, updated_at = $2
		where id = (
			select id from virtual_portfolios where user_id = $1 and not is_active
			order by updated_at desc, created_at desc limit 1)
		returning `+portfolioColumns, p.UserID, now)
	reopened, err := scanPortfolio(row)
	switch {
	case err == nil:
		return reopened, false, nil
	case isUniqueViolation(err):
		// a concurrent call activated a portfolio first
		existing, err := s.PortfolioByUser(ctx, p.UserID)
		return existing, false, err
	case !errors.Is(err, ErrNotFound):
		return model.Portfolio{}, false, err
	}

	row = s.pool.QueryRow(ctx, `
		insert into virtual_portfolios (user_id, cash_balance, initial_cash_balance, total_asset_value, stock_value,
			total_profit_loss, profit_loss_percentage, total_transactions, successful_trades, is_active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, 0, 0, true, $8, $8)
		on conflict (user_id) where is_active do nothing
		returning `+portfolioColumns,
		p.UserID, p.CashBalance, p.InitialCashBalance, p.TotalAssetValue, p.StockValue, p.TotalProfitLoss, p.ProfitLossPercentage, now)
	created, err := scanPortfolio(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Portfolio{}, false, err
	}
	existing, err = s.PortfolioByUser(ctx, p.UserID)
	return existing, false, err
}

func (s *PGStore) Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	return listHoldings(ctx, s.pool, portfolioID)
}

func (s *PGStore) Transactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, "select count(*) from virtual_transactions where portfolio_id = $1 and ($2 = '' or transaction_type = $2)", f.PortfolioID, string(f.Type)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, "select "+transactionColumns+` from virtual_transactions
		where portfolio_id = $1 and ($2 = '' or transaction_type = $2)
		order by executed_at desc, created_at desc, sequence desc
		limit $3 offset $4`, f.PortfolioID, string(f.Type), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectTransactions(rows)
	return out, total, err
}

func (s *PGStore) History(ctx context.Context, portfolioID, symbolCode string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, "select "+transactionColumns+` from virtual_transactions
		where portfolio_id = $1 and status = $2 and ($3 = '' or symbol_code = $3)
		order by executed_at asc, created_at asc, sequence asc`, portfolioID, string(types.TransactionStatusCompleted), symbolCode)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *PGStore) Leaderboard(ctx context.Context, sortBy types.LeaderboardSort, limit int) ([]model.Portfolio, error) {
	order := "profit_loss_percentage desc, total_asset_value desc, created_at asc"
	if sortBy == types.LeaderboardSortValue {
		order = "total_asset_value desc, created_at asc"
	}
	rows, err := s.pool.Query(ctx, "select "+portfolioColumns+" from virtual_portfolios where is_active and total_transactions > 0 order by "+order+" limit $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) ActivePortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "select id from virtual_portfolios where is_active order by created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)
	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, "select set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
			return mapPgError(err)
		}
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapPgError(err)
	}
	return mapPgError(tx.Commit(ctx))
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockPortfolio(ctx context.Context, userID string) (model.Portfolio, error) {
	row := t.tx.QueryRow(ctx, "select "+portfolioColumns+" from virtual_portfolios where user_id = $1 and is_active for update", userID)
	p, err := scanPortfolio(row)
	return p, lockError(err)
}

func (t *pgTx) LockPortfolioByID(ctx context.Context, id string) (model.Portfolio, error) {
	row := t.tx.QueryRow(ctx, "select "+portfolioColumns+" from virtual_portfolios where id = $1 for update", id)
	p, err := scanPortfolio(row)
	return p, lockError(err)
}

func (t *pgTx) Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	return listHoldings(ctx, t.tx, portfolioID)
}

func (t *pgTx) Holding(ctx context.Context, portfolioID, symbolCode string) (model.Holding, bool, error) {
	row := t.tx.QueryRow(ctx, "select "+holdingColumns+" from virtual_holdings where portfolio_id = $1 and symbol_code = $2", portfolioID, symbolCode)
	h, err := scanHolding(row)
	if errors.Is(err, ErrNotFound) {
		return model.Holding{}, false, nil
	}
	if err != nil {
		return model.Holding{}, false, err
	}
	return h, true, nil
}

func (t *pgTx) SaveHolding(ctx context.Context, h model.Holding) (model.Holding, error) {
	now := time.Now().UTC()
	row := t.tx.QueryRow(ctx, `
		insert into virtual_holdings (portfolio_id, symbol_code, quantity, average_price, total_cost, current_price,
			current_value, unrealized_profit_loss, profit_loss_percentage, last_price_update, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		on conflict (portfolio_id, symbol_code) do update set
			quantity = excluded.quantity,
			average_price = excluded.average_price,
			total_cost = excluded.total_cost,
			current_price = excluded.current_price,
			current_value = excluded.current_value,
			unrealized_profit_loss = excluded.unrealized_profit_loss,
			profit_loss_percentage = excluded.profit_loss_percentage,
			last_price_update = excluded.last_price_update,
			updated_at = excluded.updated_at
		returning `+holdingColumns,
		h.PortfolioID, h.SymbolCode, h.Quantity, h.AveragePrice, h.TotalCost, h.CurrentPrice,
		h.CurrentValue, h.UnrealizedProfitLoss, h.ProfitLossPercentage, h.LastPriceUpdate, now)
	return scanHolding(row)
}

func (t *pgTx) DeleteHolding(ctx context.Context, portfolioID, symbolCode string) error {
	_, err := t.tx.Exec(ctx, "delete from virtual_holdings where portfolio_id = $1 and symbol_code = $2", portfolioID, symbolCode)
	return err
}

func (t *pgTx) SavePortfolio(ctx context.Context, p model.Portfolio) error {
	tag, err := t.tx.Exec(ctx, `
		update virtual_portfolios set cash_balance = $1, total_asset_value = $2, stock_value = $3, total_profit_loss = $4,
			profit_loss_percentage = $5, total_transactions = $6, successful_trades = $7, is_active = $8, updated_at = $9
		where id = $10`,
		p.CashBalance, p.TotalAssetValue, p.StockValue, p.TotalProfitLoss, p.ProfitLossPercentage,
		p.TotalTransactions, p.SuccessfulTrades, p.IsActive, time.Now().UTC(), p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	var failure *string
	if tr.FailureReason != "" {
		failure = &tr.FailureReason
	}
	row := t.tx.QueryRow(ctx, `
		insert into virtual_transactions (portfolio_id, symbol_code, transaction_type, quantity, price_per_share,
			total_amount, fee, tax, net_amount, status, failure_reason, market_data,
			portfolio_balance_before, portfolio_balance_after, executed_at, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		returning `+transactionColumns,
		tr.PortfolioID, tr.SymbolCode, string(tr.Type), tr.Quantity, tr.PricePerShare,
		tr.TotalAmount, tr.Fee, tr.Tax, tr.NetAmount, string(tr.Status), failure, tr.Details,
		tr.PortfolioBalanceBefore, tr.PortfolioBalanceAfter, tr.ExecutedAt, tr.CreatedAt)
	return scanTransaction(row)
}

func listHoldings(ctx context.Context, q querier, portfolioID string) ([]model.Holding, error) {
	rows, err := q.Query(ctx, "select "+holdingColumns+" from virtual_holdings where portfolio_id = $1 order by symbol_code", portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanPortfolio(row pgx.Row) (model.Portfolio, error) {
	var p model.Portfolio
	err := row.Scan(&p.ID, &p.UserID, &p.CashBalance, &p.InitialCashBalance, &p.TotalAssetValue, &p.StockValue,
		&p.TotalProfitLoss, &p.ProfitLossPercentage, &p.TotalTransactions, &p.SuccessfulTrades, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func scanHolding(row pgx.Row) (model.Holding, error) {
	var h model.Holding
	err := row.Scan(&h.ID, &h.PortfolioID, &h.SymbolCode, &h.Quantity, &h.AveragePrice, &h.TotalCost, &h.CurrentPrice,
		&h.CurrentValue, &h.UnrealizedProfitLoss, &h.ProfitLossPercentage, &h.LastPriceUpdate, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return h, ErrNotFound
	}
	return h, err
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	var typ, status string
	err := row.Scan(&t.ID, &t.Sequence, &t.PortfolioID, &t.SymbolCode, &typ, &t.Quantity, &t.PricePerShare,
		&t.TotalAmount, &t.Fee, &t.Tax, &t.NetAmount, &status, &t.FailureReason, &t.Details,
		&t.PortfolioBalanceBefore, &t.PortfolioBalanceAfter, &t.ExecutedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	t.Type = types.TransactionType(typ)
	t.Status = types.TransactionStatus(status)
	return t, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func lockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return mapPgError(err)
}

// mapPgError turns lock timeouts, serialization failures and deadlocks into
// ErrConcurrencyConflict so callers can retry.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return err
}

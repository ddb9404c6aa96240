package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vtrade/internal/costbasis"
	"vtrade/internal/model"
	"vtrade/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// MemoryStore implements Store in process. Each portfolio has a weighted
// semaphore of size one that plays the role of the row lock; writes made
// through a Tx are staged and applied together on commit.
type MemoryStore struct {
	mu         sync.RWMutex
	portfolios map[string]model.Portfolio
	holdings   map[string]map[string]model.Holding
	txs        []model.Transaction
	seq        int64

	locksMu     sync.Mutex
	locks       map[string]*semaphore.Weighted
	lockTimeout time.Duration
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		portfolios:  make(map[string]model.Portfolio),
		holdings:    make(map[string]map[string]model.Holding),
		locks:       make(map[string]*semaphore.Weighted),
		lockTimeout: lockTimeout,
	}
}

func (s *MemoryStore) PortfolioByUser(ctx context.Context, userID string) (model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.activeByUser(userID); ok {
		return p, nil
	}
	return model.Portfolio{}, ErrNotFound
}

func (s *MemoryStore) PortfolioByID(ctx context.Context, id string) (model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return model.Portfolio{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) activeByUser(userID string) (model.Portfolio, bool) {
	for _, p := range s.portfolios {
		if p.UserID == userID && p.IsActive {
			return p, true
		}
	}
	return model.Portfolio{}, false
}

func (s *MemoryStore) latestInactive(userID string) (model.Portfolio, bool) {
	var out model.Portfolio
	var found bool
	for _, p := range s.portfolios {
		if p.UserID != userID || p.IsActive {
			continue
		}
		if !found || p.UpdatedAt.After(out.UpdatedAt) {
			out, found = p, true
		}
	}
	return out, found
}

func (s *MemoryStore) EnsurePortfolio(ctx context.Context, p model.Portfolio) (model.Portfolio, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.activeByUser(p.UserID); ok {
		return existing, false, nil
	}
	now := time.Now().UTC()
	if closed, ok := s.latestInactive(p.UserID); ok {
		closed.IsActive = true
		closed.UpdatedAt = now
		s.portfolios[closed.ID] = closed
		return closed, false, nil
	}
	p.ID = uuid.NewString()
	p.IsActive = true
	p.TotalTransactions = 0
	p.SuccessfulTrades = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	s.portfolios[p.ID] = p
	return p, true, nil
}

func (s *MemoryStore) Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHoldings(s.holdings[portfolioID], nil), nil
}

func (s *MemoryStore) Transactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, int, error) {
	s.mu.RLock()
	var matched []model.Transaction
	for _, t := range s.txs {
		if t.PortfolioID != f.PortfolioID || (f.Type != "" && t.Type != f.Type) {
			continue
		}
		matched = append(matched, t)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return costbasis.Less(matched[j], matched[i]) })
	total := len(matched)
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= total {
		return []model.Transaction{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (s *MemoryStore) History(ctx context.Context, portfolioID, symbolCode string) ([]model.Transaction, error) {
	s.mu.RLock()
	var out []model.Transaction
	for _, t := range s.txs {
		if t.PortfolioID != portfolioID || !t.Completed() {
			continue
		}
		if symbolCode != "" && t.SymbolCode != symbolCode {
			continue
		}
		out = append(out, t)
	}
	s.mu.RUnlock()
	costbasis.Sort(out)
	return out, nil
}

func (s *MemoryStore) Leaderboard(ctx context.Context, sortBy types.LeaderboardSort, limit int) ([]model.Portfolio, error) {
	s.mu.RLock()
	var out []model.Portfolio
	for _, p := range s.portfolios {
		if p.IsActive && p.TotalTransactions > 0 {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sortBy != types.LeaderboardSortValue {
			if c := a.ProfitLossPercentage.Cmp(b.ProfitLossPercentage); c != 0 {
				return c > 0
			}
		}
		if a.TotalAssetValue != b.TotalAssetValue {
			return a.TotalAssetValue > b.TotalAssetValue
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ActivePortfolioIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := make([]model.Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		if p.IsActive {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids, nil
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		s:          s,
		held:       make(map[string]*semaphore.Weighted),
		portfolios: make(map[string]model.Portfolio),
		holdings:   make(map[string]map[string]*model.Holding),
	}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) lockFor(portfolioID string) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[portfolioID]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[portfolioID] = l
	}
	return l
}

func (s *MemoryStore) nextSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

type memTx struct {
	s    *MemoryStore
	held map[string]*semaphore.Weighted

	portfolios map[string]model.Portfolio
	// a nil entry marks a deleted holding
	holdings map[string]map[string]*model.Holding
	txs      []model.Transaction
}

func (t *memTx) acquire(ctx context.Context, portfolioID string) error {
	if _, ok := t.held[portfolioID]; ok {
		return nil
	}
	l := t.s.lockFor(portfolioID)
	lctx := ctx
	if t.s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, t.s.lockTimeout)
		defer cancel()
	}
	if err := l.Acquire(lctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("portfolio %s: %w", portfolioID, ErrConcurrencyConflict)
	}
	t.held[portfolioID] = l
	return nil
}

func (t *memTx) release() {
	for id, l := range t.held {
		l.Release(1)
		delete(t.held, id)
	}
}

func (t *memTx) LockPortfolio(ctx context.Context, userID string) (model.Portfolio, error) {
	t.s.mu.RLock()
	p, ok := t.s.activeByUser(userID)
	t.s.mu.RUnlock()
	if !ok {
		return model.Portfolio{}, ErrNotFound
	}
	locked, err := t.LockPortfolioByID(ctx, p.ID)
	if err != nil {
		return model.Portfolio{}, err
	}
	// deactivated while we waited
	if !locked.IsActive || locked.UserID != userID {
		return model.Portfolio{}, ErrNotFound
	}
	return locked, nil
}

func (t *memTx) LockPortfolioByID(ctx context.Context, id string) (model.Portfolio, error) {
	if err := t.acquire(ctx, id); err != nil {
		return model.Portfolio{}, err
	}
	if p, ok := t.portfolios[id]; ok {
		return p, nil
	}
	return t.s.PortfolioByID(ctx, id)
}

func (t *memTx) Holdings(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return sortedHoldings(t.s.holdings[portfolioID], t.holdings[portfolioID]), nil
}

func (t *memTx) Holding(ctx context.Context, portfolioID, symbolCode string) (model.Holding, bool, error) {
	if staged, ok := t.holdings[portfolioID][symbolCode]; ok {
		if staged == nil {
			return model.Holding{}, false, nil
		}
		return *staged, true, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	h, ok := t.s.holdings[portfolioID][symbolCode]
	return h, ok, nil
}

func (t *memTx) stage(portfolioID, symbolCode string, h *model.Holding) {
	m, ok := t.holdings[portfolioID]
	if !ok {
		m = make(map[string]*model.Holding)
		t.holdings[portfolioID] = m
	}
	m[symbolCode] = h
}

func (t *memTx) SaveHolding(ctx context.Context, h model.Holding) (model.Holding, error) {
	if h.Quantity <= 0 {
		return model.Holding{}, errors.New("holding quantity must be positive")
	}
	now := time.Now().UTC()
	existing, ok, _ := t.Holding(ctx, h.PortfolioID, h.SymbolCode)
	if ok {
		h.ID = existing.ID
		h.CreatedAt = existing.CreatedAt
	} else {
		h.ID = uuid.NewString()
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	t.stage(h.PortfolioID, h.SymbolCode, &h)
	return h, nil
}

func (t *memTx) DeleteHolding(ctx context.Context, portfolioID, symbolCode string) error {
	t.stage(portfolioID, symbolCode, nil)
	return nil
}

func (t *memTx) SavePortfolio(ctx context.Context, p model.Portfolio) error {
	if _, ok := t.portfolios[p.ID]; !ok {
		if _, err := t.s.PortfolioByID(ctx, p.ID); err != nil {
			return fmt.Errorf("portfolio %s: %w", p.ID, err)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	t.portfolios[p.ID] = p
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	tr.ID = uuid.NewString()
	tr.Sequence = t.s.nextSequence()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	t.txs = append(t.txs, tr)
	return tr, nil
}

func (t *memTx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range t.portfolios {
		s.portfolios[id] = p
	}
	for pid, staged := range t.holdings {
		m, ok := s.holdings[pid]
		if !ok {
			m = make(map[string]model.Holding)
			s.holdings[pid] = m
		}
		for sym, h := range staged {
			if h == nil {
				delete(m, sym)
				continue
			}
			m[sym] = *h
		}
	}
	s.txs = append(s.txs, t.txs...)
}

func sortedHoldings(committed map[string]model.Holding, staged map[string]*model.Holding) []model.Holding {
	merged := make(map[string]model.Holding, len(committed))
	for sym, h := range committed {
		merged[sym] = h
	}
	for sym, h := range staged {
		if h == nil {
			delete(merged, sym)
			continue
		}
		merged[sym] = *h
	}
	out := make([]model.Holding, 0, len(merged))
	for _, h := range merged {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolCode < out[j].SymbolCode })
	return out
}

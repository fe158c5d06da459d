package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/GoPolymarket/paperbot/internal/model"
)

// maxMemTicks bounds the per-market history kept by MemoryStore.
const maxMemTicks = 1000

// MemoryStore is a process-local Store used when no database is configured
// and in tests. Transactions hold the store lock for their whole run, so they
// are serialized; writes go to the live state and are undone on rollback.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	markets map[uint]model.Market
	wallets map[string]model.WalletAuth
	ticks   map[uint][]model.PnLTick

	nextMarketID uint
	nextWalletID uint
	nextTickID   uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			markets: make(map[uint]model.Market),
			wallets: make(map[string]model.WalletAuth),
			ticks:   make(map[uint][]model.PnLTick),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{st: s.state, now: s.now, journal: true}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ticks returns a copy of the stored series for a market, oldest first.
func (s *MemoryStore) Ticks(marketID uint) []model.PnLTick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.ticks[marketID])
}

func (s *MemoryStore) tx() *memTx {
	return &memTx{st: s.state, now: s.now}
}

func (s *MemoryStore) MarketByID(ctx context.Context, id uint) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().MarketByID(ctx, id)
}

func (s *MemoryStore) MarketByExternalID(ctx context.Context, externalID string) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().MarketByExternalID(ctx, externalID)
}

func (s *MemoryStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().ListMarkets(ctx)
}

func (s *MemoryStore) CreateMarket(ctx context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateMarket(ctx, m)
}

func (s *MemoryStore) DeleteMarket(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteMarket(ctx, id)
}

func (s *MemoryStore) WalletAuth(ctx context.Context, address string) (*model.WalletAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().WalletAuth(ctx, address)
}

func (s *MemoryStore) SaveWalletAuth(ctx context.Context, rec *model.WalletAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().SaveWalletAuth(ctx, rec)
}

func (s *MemoryStore) AppendTick(ctx context.Context, tick *model.PnLTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AppendTick(ctx, tick)
}

func (s *MemoryStore) LatestTick(ctx context.Context, marketID uint) (*model.PnLTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().LatestTick(ctx, marketID)
}

// memTx operates on a state the caller has already locked. With journal set,
// every write records how to revert it.
type memTx struct {
	st      *memState
	now     func() time.Time
	journal bool
	undo    []func()
}

func (t *memTx) record(fn func()) {
	if t.journal {
		t.undo = append(t.undo, fn)
	}
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) MarketByID(_ context.Context, id uint) (*model.Market, error) {
	m, ok := t.st.markets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (t *memTx) MarketByExternalID(_ context.Context, externalID string) (*model.Market, error) {
	for _, m := range t.st.markets {
		if m.ExternalID == externalID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) ListMarkets(_ context.Context) ([]model.Market, error) {
	out := make([]model.Market, 0, len(t.st.markets))
	for _, m := range t.st.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateMarket(ctx context.Context, m *model.Market) error {
	if _, err := t.MarketByExternalID(ctx, m.ExternalID); err == nil {
		return ErrDuplicate
	}
	prevID := t.st.nextMarketID
	t.st.nextMarketID++
	m.ID = t.st.nextMarketID
	t.st.markets[m.ID] = *m

	id := m.ID
	t.record(func() {
		delete(t.st.markets, id)
		t.st.nextMarketID = prevID
	})
	return nil
}

func (t *memTx) DeleteMarket(_ context.Context, id uint) error {
	m, ok := t.st.markets[id]
	if !ok {
		return ErrNotFound
	}
	series, hadTicks := t.st.ticks[id]
	delete(t.st.markets, id)
	delete(t.st.ticks, id)

	t.record(func() {
		t.st.markets[id] = m
		if hadTicks {
			t.st.ticks[id] = series
		}
	})
	return nil
}

func (t *memTx) WalletAuth(_ context.Context, address string) (*model.WalletAuth, error) {
	rec, ok := t.st.wallets[address]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (t *memTx) SaveWalletAuth(_ context.Context, rec *model.WalletAuth) error {
	now := t.now().UTC()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	existing, ok := t.st.wallets[rec.Address]
	prevID := t.st.nextWalletID
	if ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		t.st.nextWalletID++
		rec.ID = t.st.nextWalletID
		rec.CreatedAt = now
	}
	t.st.wallets[rec.Address] = *rec

	address := rec.Address
	t.record(func() {
		if ok {
			t.st.wallets[address] = existing
		} else {
			delete(t.st.wallets, address)
		}
		t.st.nextWalletID = prevID
	})
	return nil
}

func (t *memTx) AppendTick(_ context.Context, tick *model.PnLTick) error {
	series, hadTicks := t.st.ticks[tick.MarketID]
	prevID := t.st.nextTickID
	ts := t.now().UTC()
	if n := len(series); n > 0 && !ts.After(series[n-1].Ts) {
		ts = series[n-1].Ts.Add(time.Microsecond)
	}
	t.st.nextTickID++
	tick.ID = t.st.nextTickID
	tick.Ts = ts

	// Appending never touches elements visible through the previous header,
	// so restoring it reverts the write.
	next := append(series, *tick)
	if len(next) > maxMemTicks {
		next = next[len(next)-maxMemTicks:]
	}
	t.st.ticks[tick.MarketID] = next

	marketID := tick.MarketID
	t.record(func() {
		if hadTicks {
			t.st.ticks[marketID] = series
		} else {
			delete(t.st.ticks, marketID)
		}
		t.st.nextTickID = prevID
	})
	return nil
}

func (t *memTx) LatestTick(_ context.Context, marketID uint) (*model.PnLTick, error) {
	series := t.st.ticks[marketID]
	if len(series) == 0 {
		return nil, ErrNotFound
	}
	tick := series[len(series)-1]
	return &tick, nil
}

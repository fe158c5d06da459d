package manager

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/GoPolymarket/paperbot/internal/config"
	"github.com/GoPolymarket/paperbot/internal/market"
	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/GoPolymarket/paperbot/internal/pkg/metrics"
	"github.com/GoPolymarket/paperbot/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
)

// errMarketGone ends a loop for good: a deleted market never comes back.
var errMarketGone = errors.New("market deleted")

// PriceFeed returns a snapshot for an upstream market identifier.
type PriceFeed interface {
	Snapshot(ctx context.Context, externalID string) (*market.Snapshot, error)
}

// LoopConfig drives every bot loop.
type LoopConfig struct {
	Interval     time.Duration
	Multiplier   float64
	MaxBackoff   time.Duration
	JitterRatio  float64
	PositionSize decimal.Decimal
	// InventoryCap is carried for strategies that trade inventory; the
	// mid-tracking loop never changes inventory, so it is not applied.
	InventoryCap decimal.Decimal
}

func NewLoopConfig(cfg config.BotConfig) LoopConfig {
	return LoopConfig{
		Interval:     cfg.LoopInterval(),
		Multiplier:   cfg.BackoffMultiplier,
		MaxBackoff:   cfg.MaxBackoff(),
		JitterRatio:  cfg.JitterRatio,
		PositionSize: decimal.NewFromFloat(cfg.PositionSize),
		InventoryCap: decimal.NewFromFloat(cfg.InventoryCap),
	}
}

type BotOption func(*BotManager)

// WithSleeper replaces the ctx-aware sleep between iterations.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) BotOption {
	return func(m *BotManager) { m.sleep = sleep }
}

// WithJitter replaces the jitter source; it receives the upper bound.
func WithJitter(jitter func(bound time.Duration) time.Duration) BotOption {
	return func(m *BotManager) { m.jitter = jitter }
}

// BotManager owns one paper-trading loop per market.
type BotManager struct {
	baseCtx context.Context
	store   repository.Store
	feed    PriceFeed
	cfg     LoopConfig

	mu    sync.Mutex
	tasks map[uint]*botTask

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(bound time.Duration) time.Duration
}

type botTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (t *botTask) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// loopState is private to one loop goroutine.
type loopState struct {
	prevPrice decimal.NullDecimal
	pnl       decimal.Decimal
	inventory decimal.Decimal
	interval  time.Duration
}

// NewBotManager runs loops under ctx, so cancelling it stops every loop.
func NewBotManager(ctx context.Context, store repository.Store, feed PriceFeed, cfg LoopConfig, opts ...BotOption) *BotManager {
	m := &BotManager{
		baseCtx: ctx,
		store:   store,
		feed:    feed,
		cfg:     cfg,
		tasks:   make(map[uint]*botTask),
		sleep:   sleepCtx,
		jitter:  uniformJitter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the loop for marketID. It reports false when a loop is
// already running for it.
func (m *BotManager) Start(marketID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tasks[marketID]; ok && !t.finished() {
		return false
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	task := &botTask{cancel: cancel, done: make(chan struct{})}
	m.tasks[marketID] = task

	go func() {
		defer cancel()
		task.err = m.run(ctx, marketID)
		close(task.done)

		m.mu.Lock()
		if m.tasks[marketID] == task {
			delete(m.tasks, marketID)
		}
		m.mu.Unlock()
	}()

	logger.Info("Bot started", "market_id", marketID)
	return true
}

// Stop cancels the loop and waits for it to exit or for ctx to expire.
func (m *BotManager) Stop(ctx context.Context, marketID uint) error {
	m.mu.Lock()
	task, ok := m.tasks[marketID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	task.cancel()
	select {
	case <-task.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	if m.tasks[marketID] == task {
		delete(m.tasks, marketID)
	}
	m.mu.Unlock()

	logger.Info("Bot stopped", "market_id", marketID)
	if task.err != nil && !errors.Is(task.err, context.Canceled) {
		return task.err
	}
	return nil
}

// StopAll stops every tracked loop concurrently.
func (m *BotManager) StopAll(ctx context.Context) {
	var wg conc.WaitGroup
	for _, id := range m.Active() {
		wg.Go(func() {
			if err := m.Stop(ctx, id); err != nil {
				logger.Warn("Bot did not stop cleanly", "market_id", id, "error", err)
			}
		})
	}
	wg.Wait()
}

func (m *BotManager) Running(marketID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[marketID]
	return ok && !t.finished()
}

// Active lists tracked market ids in ascending order.
func (m *BotManager) Active() []uint {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (m *BotManager) run(ctx context.Context, marketID uint) error {
	label := strconv.FormatUint(uint64(marketID), 10)
	st := &loopState{interval: m.cfg.Interval}

	for {
		began := time.Now()
		err := m.iterate(ctx, marketID, label, st)
		elapsed := time.Since(began).Seconds()

		wait := m.cfg.Interval
		switch {
		case err == nil:
			metrics.LoopDuration.WithLabelValues(label).Observe(elapsed)
			metrics.LoopSuccess.WithLabelValues(label).Inc()
			st.interval = m.cfg.Interval
		case errors.Is(err, errMarketGone):
			logger.Info("Market no longer exists, bot exiting", "market_id", marketID)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			metrics.LoopDuration.WithLabelValues(label).Observe(elapsed)
			metrics.LoopErrors.WithLabelValues(label).Inc()
			st.interval = min(time.Duration(float64(st.interval)*m.cfg.Multiplier), m.cfg.MaxBackoff)
			wait = st.interval + m.jitter(time.Duration(float64(st.interval)*m.cfg.JitterRatio))
			logger.Warn("Bot iteration failed", "market_id", marketID, "error", err, "retry_in", wait)
		}

		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (m *BotManager) iterate(ctx context.Context, marketID uint, label string, st *loopState) error {
	mkt, err := m.store.MarketByID(ctx, marketID)
	if errors.Is(err, repository.ErrNotFound) {
		return errMarketGone
	}
	if err != nil {
		return err
	}

	snap, err := m.feed.Snapshot(ctx, mkt.ExternalID)
	if err != nil {
		return err
	}

	price := snap.MidPrice
	pnl := st.pnl
	if st.prevPrice.Valid {
		pnl = pnl.Add(price.Sub(st.prevPrice.Decimal).Mul(m.cfg.PositionSize))
	}

	tick := &model.PnLTick{MarketID: marketID, PnL: pnl, Inventory: st.inventory}
	err = m.store.Transaction(ctx, func(tx repository.Tx) error {
		if _, err := tx.MarketByID(ctx, marketID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errMarketGone
			}
			return err
		}
		return tx.AppendTick(ctx, tick)
	})
	if err != nil {
		return err
	}

	st.prevPrice = decimal.NewNullDecimal(price)
	st.pnl = pnl

	metrics.LastPrice.WithLabelValues(label).Set(price.InexactFloat64())
	if snap.Liquidity.Valid {
		metrics.Liquidity.WithLabelValues(label).Set(snap.Liquidity.Decimal.InexactFloat64())
	}
	metrics.PnL.WithLabelValues(label).Set(pnl.InexactFloat64())

	logger.Debug("Bot tick", "market_id", marketID, "price", price, "pnl", pnl, "source", snap.Source)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uniformJitter(bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return rand.N(bound)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/repository"
)

var (
	ErrMarketNotFound  = errors.New("market not found")
	ErrExternalIDTaken = errors.New("external_id already exists")
	ErrNoPnL           = errors.New("No PnL yet")
)

const defaultSpreadBps = 50

// BotController is the part of the bot manager the market service drives.
type BotController interface {
	Start(marketID uint) bool
	Stop(ctx context.Context, marketID uint) error
	Running(marketID uint) bool
}

// MarketService manages market rows and their bots.
type MarketService struct {
	store repository.Store
	bots  BotController
}

func NewMarketService(store repository.Store, bots BotController) *MarketService {
	return &MarketService{store: store, bots: bots}
}

func (s *MarketService) Create(ctx context.Context, req model.MarketCreateRequest) (*model.MarketResponse, error) {
	m := &model.Market{
		Name:          req.Name,
		ExternalID:    req.ExternalID,
		BaseSpreadBps: defaultSpreadBps,
		Enabled:       true,
	}
	if req.BaseSpreadBps != nil {
		m.BaseSpreadBps = *req.BaseSpreadBps
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}

	if err := s.store.CreateMarket(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExternalIDTaken
		}
		return nil, fmt.Errorf("create market: %w", err)
	}
	resp := s.toResponse(*m)
	return &resp, nil
}

func (s *MarketService) List(ctx context.Context) ([]model.MarketResponse, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	out := make([]model.MarketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, s.toResponse(m))
	}
	return out, nil
}

func (s *MarketService) Get(ctx context.Context, id uint) (*model.MarketResponse, error) {
	m, err := s.store.MarketByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	resp := s.toResponse(*m)
	return &resp, nil
}

// Start launches the market's bot. Starting a running bot is a no-op.
func (s *MarketService) Start(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.bots.Start(id)
	return nil
}

// Stop is a no-op when no bot runs for id.
func (s *MarketService) Stop(ctx context.Context, id uint) error {
	return s.bots.Stop(ctx, id)
}

// Delete stops the bot and removes the market together with its ticks.
func (s *MarketService) Delete(ctx context.Context, id uint) error {
	if err := s.bots.Stop(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteMarket(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMarketNotFound
		}
		return fmt.Errorf("delete market: %w", err)
	}
	return nil
}

// LatestPnL returns the newest tick, or ErrNoPnL before the first one.
func (s *MarketService) LatestPnL(ctx context.Context, id uint) (*model.PnLTick, error) {
	tick, err := s.store.LatestTick(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoPnL
		}
		return nil, fmt.Errorf("latest tick: %w", err)
	}
	return tick, nil
}

// PnLStream returns one pnl_tick message per market that has a tick.
func (s *MarketService) PnLStream(ctx context.Context) ([]model.PnLResponse, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	out := make([]model.PnLResponse, 0, len(markets))
	for _, m := range markets {
		tick, err := s.store.LatestTick(ctx, m.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest tick: %w", err)
		}
		msg := model.NewPnLResponse(tick)
		msg.Type = "pnl_tick"
		out = append(out, msg)
	}
	return out, nil
}

func (s *MarketService) toResponse(m model.Market) model.MarketResponse {
	return model.MarketResponse{
		ID:            m.ID,
		Name:          m.Name,
		ExternalID:    m.ExternalID,
		BaseSpreadBps: m.BaseSpreadBps,
		Enabled:       m.Enabled,
		Running:       s.bots.Running(m.ID),
	}
}

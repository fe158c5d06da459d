package market

import (
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBid Side = "BUY"
	SideAsk Side = "SELL"
)

// Level is a single price level.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Orderbook is the live book of one token, fed by the book stream.
// Bids are kept high to low, asks low to high.
type Orderbook struct {
	TokenID     string
	bids        []Level
	asks        []Level
	lastUpdated time.Time
	mu          sync.RWMutex
}

func NewOrderbook(tokenID string) *Orderbook {
	return &Orderbook{TokenID: tokenID}
}

// Replace swaps in a full book snapshot.
func (ob *Orderbook) Replace(bids, asks []Level, at time.Time) {
	bids = slices.Clone(bids)
	asks = slices.Clone(asks)
	slices.SortFunc(bids, func(a, b Level) int { return b.Price.Cmp(a.Price) })
	slices.SortFunc(asks, func(a, b Level) int { return a.Price.Cmp(b.Price) })

	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids, ob.asks, ob.lastUpdated = bids, asks, at
}

// Apply sets the size at price on one side; a zero size removes the level.
func (ob *Orderbook) Apply(side Side, priceStr, sizeStr string, at time.Time) error {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return err
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil {
		return err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()
	if side == SideBid {
		ob.bids = applyLevel(ob.bids, price, size, true)
	} else {
		ob.asks = applyLevel(ob.asks, price, size, false)
	}
	ob.lastUpdated = at
	return nil
}

func applyLevel(levels []Level, price, size decimal.Decimal, descending bool) []Level {
	cmp := func(l Level, p decimal.Decimal) int {
		if descending {
			return p.Cmp(l.Price)
		}
		return l.Price.Cmp(p)
	}
	idx, found := slices.BinarySearchFunc(levels, price, cmp)
	switch {
	case found && size.IsZero():
		return slices.Delete(levels, idx, idx+1)
	case found:
		levels[idx].Size = size
		return levels
	case size.IsZero():
		return levels
	default:
		return slices.Insert(levels, idx, Level{Price: price, Size: size})
	}
}

// Top returns the best bid and ask (unknown when a side is empty) and the
// time of the last update.
func (ob *Orderbook) Top() (bid, ask decimal.NullDecimal, updated time.Time) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.bids) > 0 {
		bid = decimal.NewNullDecimal(ob.bids[0].Price)
	}
	if len(ob.asks) > 0 {
		ask = decimal.NewNullDecimal(ob.asks[0].Price)
	}
	return bid, ask, ob.lastUpdated
}

// Levels returns copies of both sides.
func (ob *Orderbook) Levels() (bids, asks []Level) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return slices.Clone(ob.bids), slices.Clone(ob.asks)
}

package market

import (
	"github.com/shopspring/decimal"
)

const SourceFallback = "fallback"

var (
	two = decimal.NewFromInt(2)
	one = decimal.NewFromInt(1)
)

// Snapshot is the best-effort view of a market at one instant. Optional
// fields are invalid (JSON null) when no upstream reported them.
type Snapshot struct {
	MidPrice  decimal.Decimal     `json:"mid_price"`
	BestBid   decimal.NullDecimal `json:"best_bid"`
	BestAsk   decimal.NullDecimal `json:"best_ask"`
	YesPrice  decimal.NullDecimal `json:"yes_price"`
	NoPrice   decimal.NullDecimal `json:"no_price"`
	Liquidity decimal.NullDecimal `json:"liquidity"`
	Source    string              `json:"source"`
}

// Quote is what a single source could extract. Every field may be unknown.
type Quote struct {
	Mid       decimal.NullDecimal
	BestBid   decimal.NullDecimal
	BestAsk   decimal.NullDecimal
	YesPrice  decimal.NullDecimal
	NoPrice   decimal.NullDecimal
	Liquidity decimal.NullDecimal
	Source    string
}

// UsableMid reports whether Mid is known and within (0, 1].
func (q Quote) UsableMid() bool {
	return q.Mid.Valid && q.Mid.Decimal.IsPositive() && q.Mid.Decimal.LessThanOrEqual(one)
}

// deriveMid fills Mid from bid/ask, then the yes price, then 1 - no price.
func (q *Quote) deriveMid() {
	if q.Mid.Valid {
		return
	}
	switch {
	case q.BestBid.Valid && q.BestAsk.Valid:
		q.Mid = decimal.NewNullDecimal(q.BestBid.Decimal.Add(q.BestAsk.Decimal).Div(two))
	case q.YesPrice.Valid:
		q.Mid = q.YesPrice
	case q.NoPrice.Valid:
		q.Mid = decimal.NewNullDecimal(one.Sub(q.NoPrice.Decimal))
	}
}

// merge fills fields still unknown in q from o. The mid price and source
// are only taken together, and only when o's mid is usable.
func (q *Quote) merge(o Quote) {
	if !q.UsableMid() && o.UsableMid() {
		q.Mid = o.Mid
		q.Source = o.Source
	}
	fill(&q.BestBid, o.BestBid)
	fill(&q.BestAsk, o.BestAsk)
	fill(&q.YesPrice, o.YesPrice)
	fill(&q.NoPrice, o.NoPrice)
	fill(&q.Liquidity, o.Liquidity)
}

func fill(dst *decimal.NullDecimal, src decimal.NullDecimal) {
	if !dst.Valid && src.Valid {
		*dst = src
	}
}

func (q Quote) snapshot() *Snapshot {
	return &Snapshot{
		MidPrice:  q.Mid.Decimal,
		BestBid:   q.BestBid,
		BestAsk:   q.BestAsk,
		YesPrice:  q.YesPrice,
		NoPrice:   q.NoPrice,
		Liquidity: q.Liquidity,
		Source:    q.Source,
	}
}

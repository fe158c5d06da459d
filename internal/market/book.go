package market

import (
	"context"
	"fmt"
	"time"

	polymarket "github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/shopspring/decimal"
)

// BookFetcher loads the bid and ask levels for a CLOB token.
type BookFetcher func(ctx context.Context, tokenID string) (bids, asks []clobtypes.PriceLevel, err error)

// SDKBookFetcher reads order books through the CLOB client.
func SDKBookFetcher(client *polymarket.Client) BookFetcher {
	return func(ctx context.Context, tokenID string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		book, err := client.CLOB.OrderBook(ctx, &clobtypes.BookRequest{TokenID: tokenID})
		if err != nil {
			return nil, nil, err
		}
		return book.Bids, book.Asks, nil
	}
}

// isTokenID reports whether id looks like a CLOB token id (all digits).
// Slugs and condition ids are left to the REST sources.
func isTokenID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseLevel(price, size string) (Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Level{}, fmt.Errorf("bad price: %w", err)
	}
	s, err := decimal.NewFromString(size)
	if err != nil {
		return Level{}, fmt.Errorf("bad size: %w", err)
	}
	return Level{Price: p, Size: s}, nil
}

// BookSource derives a quote from the top of a CLOB order book.
type BookSource struct {
	fetch BookFetcher
}

func NewBookSource(fetch BookFetcher) *BookSource {
	return &BookSource{fetch: fetch}
}

func (s *BookSource) Name() string { return "clob_book" }

func (s *BookSource) Quote(ctx context.Context, externalID string) (Quote, error) {
	if !isTokenID(externalID) {
		return Quote{}, ErrNoData
	}
	bids, asks, err := s.fetch(ctx, externalID)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{Source: s.Name()}
	var depth decimal.Decimal
	for _, raw := range bids {
		lvl, err := parseLevel(raw.Price, raw.Size)
		if err != nil {
			return Quote{}, err
		}
		if !q.BestBid.Valid || lvl.Price.GreaterThan(q.BestBid.Decimal) {
			q.BestBid = decimal.NewNullDecimal(lvl.Price)
		}
		depth = depth.Add(lvl.Size)
	}
	for _, raw := range asks {
		lvl, err := parseLevel(raw.Price, raw.Size)
		if err != nil {
			return Quote{}, err
		}
		if !q.BestAsk.Valid || lvl.Price.LessThan(q.BestAsk.Decimal) {
			q.BestAsk = decimal.NewNullDecimal(lvl.Price)
		}
		depth = depth.Add(lvl.Size)
	}
	if !q.BestBid.Valid && !q.BestAsk.Valid {
		return Quote{}, ErrNoData
	}
	q.Liquidity = decimal.NewNullDecimal(depth)
	q.deriveMid()
	return q, nil
}

// StreamSource reads the top of book from a live BookProvider. Unknown
// tokens are subscribed on first use and report no data until the first
// snapshot arrives; books older than maxAge are ignored.
type StreamSource struct {
	books  BookProvider
	maxAge time.Duration
	now    func() time.Time
}

func NewStreamSource(books BookProvider, maxAge time.Duration) *StreamSource {
	return &StreamSource{books: books, maxAge: maxAge, now: time.Now}
}

func (s *StreamSource) Name() string { return "clob_stream" }

func (s *StreamSource) Quote(_ context.Context, externalID string) (Quote, error) {
	if !isTokenID(externalID) {
		return Quote{}, ErrNoData
	}
	book := s.books.GetBook(externalID)
	if book == nil {
		s.books.Subscribe([]string{externalID})
		return Quote{}, ErrNoData
	}
	bid, ask, updated := book.Top()
	if updated.IsZero() || (s.maxAge > 0 && s.now().Sub(updated) > s.maxAge) {
		return Quote{}, ErrNoData
	}
	if !bid.Valid && !ask.Valid {
		return Quote{}, ErrNoData
	}
	q := Quote{BestBid: bid, BestAsk: ask, Source: s.Name()}
	q.deriveMid()
	return q, nil
}

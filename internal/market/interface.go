package market

import (
	"context"
	"errors"
)

// ErrNoData means a source has nothing for the identifier. It is expected
// and not logged as a failure.
var ErrNoData = errors.New("market: no data")

// Source is one price lookup strategy. A Quote may be partial; the Feed
// keeps trying later sources until one yields a usable mid price.
type Source interface {
	Name() string
	Quote(ctx context.Context, externalID string) (Quote, error)
}

// BookProvider keeps live order books for subscribed token ids.
type BookProvider interface {
	Subscribe(tokenIDs []string)
	GetBook(tokenID string) *Orderbook
	Start()
	Stop()
}

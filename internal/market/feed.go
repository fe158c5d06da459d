package market

import (
	"context"
	"errors"

	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/GoPolymarket/paperbot/internal/pkg/metrics"
)

// Feed queries its sources in order and returns as soon as one yields a
// usable mid price. Richer fields seen on the way are kept. When no source
// succeeds the Fallback generator supplies the price, so Snapshot only fails
// when ctx is done.
type Feed struct {
	sources  []Source
	fallback *Fallback
}

func NewFeed(fallback *Fallback, sources ...Source) *Feed {
	if fallback == nil {
		fallback = NewFallback()
	}
	return &Feed{sources: sources, fallback: fallback}
}

func (f *Feed) Snapshot(ctx context.Context, externalID string) (*Snapshot, error) {
	var acc Quote
	served := SourceFallback

	for _, src := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := src.Quote(ctx, externalID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, ErrNoData) {
				logger.Debug("Feed source failed", "source", src.Name(), "external_id", externalID, "error", err)
			}
			continue
		}
		acc.merge(q)
		if acc.UsableMid() {
			served = src.Name()
			break
		}
	}

	if !acc.UsableMid() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc.Mid.Decimal = f.fallback.Price(externalID)
		acc.Mid.Valid = true
		acc.Source = SourceFallback
	}

	metrics.FeedSource.WithLabelValues(served).Inc()
	return acc.snapshot(), nil
}

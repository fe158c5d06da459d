package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxPayloadBytes = 4 << 20

var errUpstreamNotFound = errors.New("upstream: not found")

// Upstream performs throttled JSON GETs against the Polymarket REST APIs.
type Upstream struct {
	client  *http.Client
	apiKey  string
	limiter *rate.Limiter
}

// NewUpstream caps outbound requests at rps per second (0 disables the cap).
func NewUpstream(client *http.Client, apiKey string, rps float64) *Upstream {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	return &Upstream{client: client, apiKey: apiKey, limiter: limiter}
}

func (u *Upstream) getJSON(ctx context.Context, rawURL string) (any, error) {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errUpstreamNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return payload, nil
}

// EndpointSource tries the market-specific endpoints in order. A 404 moves
// on silently; the first payload that decodes is used even if it lacks a
// mid price, leaving the mid to later sources.
type EndpointSource struct {
	up         *Upstream
	apiBase    string
	publicBase string
}

func NewEndpointSource(up *Upstream, apiBase, publicBase string) *EndpointSource {
	return &EndpointSource{
		up:         up,
		apiBase:    strings.TrimRight(apiBase, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *EndpointSource) Name() string { return "endpoint" }

func (s *EndpointSource) candidates(externalID string) []string {
	id := url.PathEscape(externalID)
	return []string{
		s.apiBase + "/markets/" + id,
		s.apiBase + "/markets-data/" + id,
		s.publicBase + "/markets/" + id,
	}
}

func (s *EndpointSource) Quote(ctx context.Context, externalID string) (Quote, error) {
	if externalID == "" {
		return Quote{}, ErrNoData
	}
	var errs []error
	for _, candidate := range s.candidates(externalID) {
		payload, err := s.up.getJSON(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return Quote{}, ctx.Err()
			}
			if !errors.Is(err, errUpstreamNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		obj, ok := asObject(payload)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unexpected payload shape", candidate))
			continue
		}
		q := quoteFromPayload(obj)
		q.Source = candidate
		return q, nil
	}
	if len(errs) == 0 {
		return Quote{}, ErrNoData
	}
	return Quote{}, errors.Join(errs...)
}

// ListingSource scans the public market listing for an entry whose slug or
// question contains the identifier, or whose ticker equals it.
type ListingSource struct {
	up         *Upstream
	publicBase string
	limit      int
}

func NewListingSource(up *Upstream, publicBase string) *ListingSource {
	return &ListingSource{up: up, publicBase: strings.TrimRight(publicBase, "/"), limit: 50}
}

func (s *ListingSource) Name() string { return "listing" }

func (s *ListingSource) Quote(ctx context.Context, externalID string) (Quote, error) {
	needle := normalizeID(externalID)
	if needle == "" {
		return Quote{}, ErrNoData
	}
	listURL := fmt.Sprintf("%s/markets?limit=%d", s.publicBase, s.limit)
	payload, err := s.up.getJSON(ctx, listURL)
	if err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return Quote{}, ErrNoData
		}
		return Quote{}, err
	}

	for _, item := range listItems(payload) {
		obj, ok := item.(map[string]any)
		if !ok || !listingMatches(obj, needle) {
			continue
		}
		q := Quote{
			BestBid:   firstField(obj, "bestBid"),
			BestAsk:   firstField(obj, "bestAsk"),
			YesPrice:  firstField(obj, "yesPrice"),
			NoPrice:   firstField(obj, "noPrice"),
			Liquidity: firstField(obj, "liquidity", "totalYesVolume"),
			Source:    listURL,
		}
		q.Mid = listingMid(q)
		return q, nil
	}
	return Quote{}, ErrNoData
}

func listItems(payload any) []any {
	switch x := payload.(type) {
	case []any:
		return x
	case map[string]any:
		if data, ok := x["data"].([]any); ok {
			return data
		}
	}
	return nil
}

func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// listingMatches takes a normalized, non-empty needle.
func listingMatches(obj map[string]any, needle string) bool {
	slug, _ := obj["slug"].(string)
	question, _ := obj["question"].(string)
	ticker, _ := obj["ticker"].(string)
	return strings.Contains(strings.ToLower(slug), needle) ||
		strings.Contains(strings.ToLower(question), needle) ||
		normalizeID(ticker) == needle
}

// listingMid averages whichever of yes, 1-no, bid and ask are present and
// accepts the result only strictly inside (0, 1).
func listingMid(q Quote) decimal.NullDecimal {
	var parts []decimal.Decimal
	if q.YesPrice.Valid {
		parts = append(parts, q.YesPrice.Decimal)
	}
	if q.NoPrice.Valid {
		parts = append(parts, one.Sub(q.NoPrice.Decimal))
	}
	if q.BestBid.Valid {
		parts = append(parts, q.BestBid.Decimal)
	}
	if q.BestAsk.Valid {
		parts = append(parts, q.BestAsk.Decimal)
	}
	if len(parts) == 0 {
		return decimal.NullDecimal{}
	}
	mid := decimal.Avg(parts[0], parts[1:]...)
	if !mid.IsPositive() || !mid.LessThan(one) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(mid)
}

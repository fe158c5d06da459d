package market

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// shapeMatcher extracts a price from one payload shape.
type shapeMatcher func(v any) (decimal.Decimal, bool)

// priceShapes are tried in order; the first match wins.
var priceShapes = []shapeMatcher{scalarShape, objectShape, listHeadShape}

var priceKeys = []string{"price", "p", "value"}

// parsePrice returns an invalid NullDecimal when no shape matches.
func parsePrice(v any) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	for _, match := range priceShapes {
		if d, ok := match(v); ok {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func scalarShape(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

func objectShape(v any) (decimal.Decimal, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return decimal.Decimal{}, false
	}
	for _, key := range priceKeys {
		if raw, ok := obj[key]; ok {
			if d, ok := scalarShape(raw); ok {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func listHeadShape(v any) (decimal.Decimal, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return decimal.Decimal{}, false
	}
	if d, ok := scalarShape(list[0]); ok {
		return d, true
	}
	return objectShape(list[0])
}

// firstField returns the first key whose value parses as a price.
func firstField(obj map[string]any, keys ...string) decimal.NullDecimal {
	for _, key := range keys {
		if d := parsePrice(obj[key]); d.Valid {
			return d
		}
	}
	return decimal.NullDecimal{}
}

// quoteFromPayload reads the fields a market payload may carry under any of
// their known aliases.
func quoteFromPayload(payload map[string]any) Quote {
	q := Quote{
		Mid:       firstField(payload, "midPrice", "mid_price"),
		BestBid:   firstField(payload, "bids", "bestBids", "bestBid"),
		BestAsk:   firstField(payload, "asks", "bestAsks", "bestAsk"),
		YesPrice:  firstField(payload, "yesPrice"),
		NoPrice:   firstField(payload, "noPrice"),
		Liquidity: firstField(payload, "liquidity", "totalYesVolume"),
	}
	if nested, ok := payload["market"].(map[string]any); ok {
		fill(&q.YesPrice, firstField(nested, "yesPrice"))
		fill(&q.NoPrice, firstField(nested, "noPrice"))
	}
	q.deriveMid()
	return q
}

// asObject accepts an object or a list whose first element is an object.
func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case []any:
		if len(x) > 0 {
			obj, ok := x[0].(map[string]any)
			return obj, ok
		}
	}
	return nil, false
}

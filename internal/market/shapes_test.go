package market

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParsePriceShapes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"json number", json.Number("0.42"), "0.42"},
		{"float", 0.25, "0.25"},
		{"numeric string", " 0.5 ", "0.5"},
		{"object price", map[string]any{"price": "0.3"}, "0.3"},
		{"object p", map[string]any{"p": json.Number("0.31")}, "0.31"},
		{"object value", map[string]any{"value": 0.32}, "0.32"},
		{"list of scalars", []any{"0.7", "0.8"}, "0.7"},
		{"list of objects", []any{map[string]any{"price": "0.61", "size": "10"}}, "0.61"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parsePrice(tc.in)
			require.True(t, got.Valid)
			assert.True(t, got.Decimal.Equal(dec(tc.want)), "got %s", got.Decimal)
		})
	}
}

func TestParsePriceRejects(t *testing.T) {
	for _, in := range []any{nil, "", "abc", []any{}, map[string]any{"size": "1"}, true} {
		assert.False(t, parsePrice(in).Valid, "%v", in)
	}
}

func TestQuoteFromPayloadAliases(t *testing.T) {
	q := quoteFromPayload(map[string]any{
		"bestBids":       []any{map[string]any{"price": "0.40"}},
		"bestAsk":        "0.60",
		"totalYesVolume": json.Number("1234.5"),
	})
	require.True(t, q.Mid.Valid)
	assert.True(t, q.Mid.Decimal.Equal(dec("0.5")))
	assert.True(t, q.Liquidity.Decimal.Equal(dec("1234.5")))
}

func TestQuoteFromPayloadMidPrecedence(t *testing.T) {
	q := quoteFromPayload(map[string]any{"mid_price": "0.33", "bestBid": "0.1", "bestAsk": "0.2"})
	assert.True(t, q.Mid.Decimal.Equal(dec("0.33")))

	q = quoteFromPayload(map[string]any{"market": map[string]any{"noPrice": "0.35"}})
	require.True(t, q.Mid.Valid)
	assert.True(t, q.Mid.Decimal.Equal(dec("0.65")))
	assert.False(t, q.YesPrice.Valid)

	q = quoteFromPayload(map[string]any{"yesPrice": "0.2", "noPrice": "0.9"})
	assert.True(t, q.Mid.Decimal.Equal(dec("0.2")))
}

func TestQuoteUsableMid(t *testing.T) {
	assert.True(t, Quote{Mid: decimal.NewNullDecimal(dec("1"))}.UsableMid())
	assert.False(t, Quote{Mid: decimal.NewNullDecimal(dec("0"))}.UsableMid())
	assert.False(t, Quote{Mid: decimal.NewNullDecimal(dec("1.2"))}.UsableMid())
	assert.False(t, Quote{}.UsableMid())
}

func TestAsObject(t *testing.T) {
	obj, ok := asObject([]any{map[string]any{"a": 1}})
	require.True(t, ok)
	assert.Equal(t, 1, obj["a"])

	_, ok = asObject([]any{})
	assert.False(t, ok)
	_, ok = asObject("x")
	assert.False(t, ok)
}

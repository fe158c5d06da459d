package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSourceTopOfBook(t *testing.T) {
	src := NewBookSource(func(_ context.Context, tokenID string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		assert.Equal(t, "12345", tokenID)
		bids := []clobtypes.PriceLevel{{Price: "0.40", Size: "10"}, {Price: "0.45", Size: "5"}}
		asks := []clobtypes.PriceLevel{{Price: "0.55", Size: "3"}, {Price: "0.50", Size: "2"}}
		return bids, asks, nil
	})

	q, err := src.Quote(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, q.BestBid.Decimal.Equal(dec("0.45")))
	assert.True(t, q.BestAsk.Decimal.Equal(dec("0.5")))
	assert.True(t, q.Mid.Decimal.Equal(dec("0.475")))
	assert.True(t, q.Liquidity.Decimal.Equal(dec("20")))
	assert.Equal(t, "clob_book", q.Source)
}

func TestBookSourceSkipsNonTokenIDs(t *testing.T) {
	called := false
	src := NewBookSource(func(context.Context, string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		called = true
		return nil, nil, nil
	})
	_, err := src.Quote(context.Background(), "will-it-rain")
	assert.ErrorIs(t, err, ErrNoData)
	assert.False(t, called)
}

func TestBookSourceEmptyAndErrors(t *testing.T) {
	empty := NewBookSource(func(context.Context, string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		return nil, nil, nil
	})
	_, err := empty.Quote(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNoData)

	boom := errors.New("boom")
	failing := NewBookSource(func(context.Context, string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		return nil, nil, boom
	})
	_, err = failing.Quote(context.Background(), "1")
	assert.ErrorIs(t, err, boom)

	bad := NewBookSource(func(context.Context, string) ([]clobtypes.PriceLevel, []clobtypes.PriceLevel, error) {
		return []clobtypes.PriceLevel{{Price: "x", Size: "1"}}, nil, nil
	})
	_, err = bad.Quote(context.Background(), "1")
	assert.Error(t, err)
}

func TestOrderbookApply(t *testing.T) {
	ob := NewOrderbook("1")
	now := time.Now()
	ob.Replace([]Level{{Price: dec("0.3"), Size: dec("1")}, {Price: dec("0.4"), Size: dec("1")}},
		[]Level{{Price: dec("0.7"), Size: dec("1")}, {Price: dec("0.6"), Size: dec("1")}}, now)

	bid, ask, updated := ob.Top()
	assert.True(t, bid.Decimal.Equal(dec("0.4")))
	assert.True(t, ask.Decimal.Equal(dec("0.6")))
	assert.Equal(t, now, updated)

	require.NoError(t, ob.Apply(SideBid, "0.45", "2", now))
	require.NoError(t, ob.Apply(SideAsk, "0.6", "0", now))
	bid, ask, _ = ob.Top()
	assert.True(t, bid.Decimal.Equal(dec("0.45")))
	assert.True(t, ask.Decimal.Equal(dec("0.7")))

	require.NoError(t, ob.Apply(SideBid, "0.4", "5", now))
	bids, _ := ob.Levels()
	require.Len(t, bids, 3)
	assert.True(t, bids[1].Size.Equal(dec("5")))

	assert.Error(t, ob.Apply(SideBid, "bad", "1", now))
}

func TestStreamSourceFromMessages(t *testing.T) {
	stream := NewBookStream("")
	src := NewStreamSource(stream, time.Minute)

	_, err := src.Quote(context.Background(), "777")
	assert.ErrorIs(t, err, ErrNoData)
	require.NotNil(t, stream.GetBook("777"), "unknown token should be subscribed")

	_, err = src.Quote(context.Background(), "777")
	assert.ErrorIs(t, err, ErrNoData, "no snapshot yet")

	for _, m := range decodeMessages([]byte(`[{"event_type":"book","asset_id":"777",
		"bids":[{"price":"0.41","size":"10"}],"asks":[{"price":"0.47","size":"4"}]}]`)) {
		stream.handle(m)
	}
	q, err := src.Quote(context.Background(), "777")
	require.NoError(t, err)
	assert.True(t, q.Mid.Decimal.Equal(dec("0.44")))

	for _, m := range decodeMessages([]byte(`{"event_type":"price_change","asset_id":"777",
		"changes":[{"price":"0.43","side":"BUY","size":"1"}]}`)) {
		stream.handle(m)
	}
	q, err = src.Quote(context.Background(), "777")
	require.NoError(t, err)
	assert.True(t, q.BestBid.Decimal.Equal(dec("0.43")))

	src.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = src.Quote(context.Background(), "777")
	assert.ErrorIs(t, err, ErrNoData, "stale book")
}

func TestBookStreamSubscribesOnConnect(t *testing.T) {
	subscribed := make(chan []any, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		ids, _ := msg["assets_ids"].([]any)
		subscribed <- ids

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"event_type":"book","asset_id":"42",
			"bids":[{"price":"0.2","size":"1"}],"asks":[{"price":"0.4","size":"1"}]}]`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewBookStream("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream.Subscribe([]string{"42"})
	stream.Start()
	defer stream.Stop()

	select {
	case ids := <-subscribed:
		assert.Equal(t, []any{"42"}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe message")
	}

	require.Eventually(t, func() bool {
		_, _, updated := stream.GetBook("42").Top()
		return !updated.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	bid, ask, _ := stream.GetBook("42").Top()
	assert.True(t, bid.Decimal.Equal(dec("0.2")))
	assert.True(t, ask.Decimal.Equal(dec("0.4")))
}

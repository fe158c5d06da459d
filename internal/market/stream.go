package market

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	DefaultWSURL    = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second // Keep-alive interval
)

// BookStream maintains live order books from the CLOB market channel,
// reconnecting with exponential delay and resubscribing on every connect.
type BookStream struct {
	url string

	mu          sync.RWMutex
	books       map[string]*Orderbook
	subs        []string
	isConnected bool

	writeMu sync.Mutex
	conn    *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewBookStream(wsURL string) *BookStream {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BookStream{
		url:    wsURL,
		books:  make(map[string]*Orderbook),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Start launches the connection loop in a background goroutine
func (s *BookStream) Start() {
	go s.runLoop()
}

func (s *BookStream) Stop() {
	s.cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Subscribe registers token ids; new ones are sent right away when connected.
func (s *BookStream) Subscribe(tokenIDs []string) {
	s.mu.Lock()
	var added []string
	for _, id := range tokenIDs {
		if slices.Contains(s.subs, id) {
			continue
		}
		s.subs = append(s.subs, id)
		s.books[id] = NewOrderbook(id)
		added = append(added, id)
	}
	connected := s.isConnected
	s.mu.Unlock()

	if len(added) > 0 && connected {
		if err := s.sendSubscribe(added); err != nil {
			logger.Warn("Book stream subscribe failed", "error", err)
		}
	}
}

func (s *BookStream) GetBook(tokenID string) *Orderbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[tokenID]
}

func (s *BookStream) runLoop() {
	delay := ReconnBaseDelay

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, err := s.connect()
		if err != nil {
			logger.Error("Book stream connection failed", "error", err, "retry_in", delay)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, ReconnMaxDelay)
			continue
		}

		delay = ReconnBaseDelay
		s.mu.Lock()
		s.isConnected = true
		allSubs := slices.Clone(s.subs)
		s.mu.Unlock()

		if len(allSubs) > 0 {
			if err := s.sendSubscribe(allSubs); err != nil {
				logger.Error("Failed to resubscribe", "error", err)
				s.disconnect(conn)
				continue
			}
		}

		pingCtx, stopPing := context.WithCancel(s.ctx)
		go s.pingLoop(pingCtx)
		s.readLoop(conn)
		stopPing()
		s.disconnect(conn)
	}
}

func (s *BookStream) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	// No data or pong within PingPeriod plus a buffer means the link is dead.
	readTimeout := PingPeriod + 10*time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	return conn, nil
}

func (s *BookStream) disconnect(conn *websocket.Conn) {
	s.mu.Lock()
	s.isConnected = false
	s.mu.Unlock()

	s.writeMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.writeMu.Unlock()
	_ = conn.Close()
}

func (s *BookStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			var err error
			if s.conn != nil {
				err = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type wsMessage struct {
	EventType string          `json:"event_type"` // "book" or "price_change"
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Bids      []priceLevelRaw `json:"bids"`
	Asks      []priceLevelRaw `json:"asks"`
	Changes   []priceChange   `json:"changes"`
}

type priceLevelRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type priceChange struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

func (m wsMessage) tokenID() string {
	if m.AssetID != "" {
		return m.AssetID
	}
	return m.Market
}

func (s *BookStream) readLoop(conn *websocket.Conn) {
	readTimeout := PingPeriod + 10*time.Second

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				logger.Warn("Book stream read error", "error", err)
			}
			return
		}
		for _, m := range decodeMessages(message) {
			s.handle(m)
		}
	}
}

// decodeMessages accepts the array form the server normally sends as well
// as a single object. Anything else is a control frame and ignored.
func decodeMessages(raw []byte) []wsMessage {
	var batch []wsMessage
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch
	}
	var single wsMessage
	if err := json.Unmarshal(raw, &single); err == nil {
		return []wsMessage{single}
	}
	return nil
}

func (s *BookStream) handle(msg wsMessage) {
	book := s.GetBook(msg.tokenID())
	if book == nil {
		return
	}
	at := s.now()

	switch msg.EventType {
	case "book":
		book.Replace(toLevels(msg.Bids), toLevels(msg.Asks), at)
	case "price_change":
		for _, ch := range msg.Changes {
			side := SideAsk
			if ch.Side == string(SideBid) {
				side = SideBid
			}
			if err := book.Apply(side, ch.Price, ch.Size, at); err != nil {
				logger.Debug("Bad price change", "token_id", book.TokenID, "error", err)
			}
		}
	}
}

func toLevels(raw []priceLevelRaw) []Level {
	levels := make([]Level, 0, len(raw))
	for _, r := range raw {
		lvl, err := parseLevel(r.Price, r.Size)
		if err != nil || lvl.Size.IsZero() {
			continue
		}
		levels = append(levels, lvl)
	}
	return levels
}

func (s *BookStream) sendSubscribe(tokenIDs []string) error {
	msg := map[string]any{
		"type":       "market",
		"assets_ids": tokenIDs,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("no connection")
	}
	return s.conn.WriteJSON(msg)
}

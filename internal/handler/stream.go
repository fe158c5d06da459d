package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const writeWait = 10 * time.Second

// PnLSource lists the latest pnl_tick message of every market.
type PnLSource interface {
	PnLStream(ctx context.Context) ([]model.PnLResponse, error)
}

// StreamHandler pushes PnL updates over a websocket at a fixed interval.
type StreamHandler struct {
	source   PnLSource
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewStreamHandler accepts browser connections only from allowedOrigins;
// "*" allows any origin. Requests without an Origin header are accepted.
func NewStreamHandler(source PnLSource, interval time.Duration, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// PnL handles GET /ws/pnl
func (h *StreamHandler) PnL(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(c.Request.Context())

	// The reader only notices the client going away.
	g.Go(func() error {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			if err := h.push(ctx, conn); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	go func() {
		// Unblock the reader once the writer gives up.
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug("PnL stream closed", "error", err)
	}
}

func (h *StreamHandler) push(ctx context.Context, conn *websocket.Conn) error {
	msgs, err := h.source.PnLStream(ctx)
	if err != nil {
		// A store hiccup skips this cycle only.
		logger.Warn("PnL stream poll failed", "error", err)
		return nil
	}
	for _, msg := range msgs {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// TickerHandler is called for every ticker message with the parsed price.
type TickerHandler func(price float64, ts time.Time)

// WSClient is a WebSocket client for the Coinbase Exchange market data feed.
// It subscribes to the ticker channel for a single product and dispatches
// prices to a registered handler. Reconnection is the caller's concern; when
// the connection drops, Run returns and the caller dials again.
type WSClient struct {
	wsURL   string
	product string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	onTicker  TickerHandler

	done chan struct{}
}

// NewWSClient creates a client for the given WebSocket URL and product, e.g.
// "wss://ws-feed.exchange.coinbase.com" and "BTC-USD".
func NewWSClient(wsURL, product string) *WSClient {
	return &WSClient{
		wsURL:   wsURL,
		product: product,
		done:    make(chan struct{}),
	}
}

// OnTicker registers the handler invoked for each ticker price.
func (w *WSClient) OnTicker(handler TickerHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onTicker = handler
}

// Connect dials the WebSocket endpoint and subscribes to the ticker channel.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("coinbase/ws: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("coinbase/ws: connect: %w", err)
	}
	w.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := map[string]any{
		"type":        "subscribe",
		"product_ids": []string{w.product},
		"channels":    []string{"ticker"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("coinbase/ws: subscribe: %w", err)
	}

	go w.pingLoop(conn)

	return nil
}

// ReadLoop blocks reading ticker messages until the connection drops, the
// context is cancelled, or Close is called. It returns the read error that
// ended the loop.
func (w *WSClient) ReadLoop(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("coinbase/ws: not connected")
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-w.done:
		}
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("coinbase/ws: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleMessage(message)
	}
}

// Close shuts down the connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw message and dispatches ticker prices.
func (w *WSClient) handleMessage(raw []byte) {
	var msg struct {
		Type      string    `json:"type"`
		ProductID string    `json:"product_id"`
		Price     string    `json:"price"`
		Time      time.Time `json:"time"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // silently drop unparseable messages
	}
	if msg.Type != "ticker" || msg.ProductID != w.product {
		return
	}

	var price float64
	if _, err := fmt.Sscanf(msg.Price, "%f", &price); err != nil || price <= 0 {
		return
	}
	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	w.handlerMu.RLock()
	handler := w.onTicker
	w.handlerMu.RUnlock()
	if handler != nil {
		handler(price, ts)
	}
}

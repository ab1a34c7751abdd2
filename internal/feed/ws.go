package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/platform/coinbase"
)

// maxSpotAge is how old a streamed price may be before GetSpotPrice refuses
// to serve it.
const maxSpotAge = 30 * time.Second

// WSFeed streams the reference price over the Coinbase ticker channel and
// serves the latest streamed price through the PriceFeed interface. Run must
// be started before the first GetSpotPrice call returns data.
type WSFeed struct {
	wsURL  string
	pair   string
	logger *slog.Logger

	mu        sync.RWMutex
	lastPrice float64
	lastAt    time.Time

	closeOnce sync.Once
	done      chan struct{}
}

var _ domain.PriceFeed = (*WSFeed)(nil)

// NewWSFeed creates a streaming feed for the given WebSocket URL and pair.
func NewWSFeed(wsURL, pair string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		wsURL:  wsURL,
		pair:   pair,
		logger: logger.With(slog.String("component", "ws_feed")),
		done:   make(chan struct{}),
	}
}

// Run connects, subscribes, and keeps the stream alive until ctx is
// cancelled or Close is called, reconnecting with a short delay on
// disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}

		f.logger.Warn("ticker stream disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	client := coinbase.NewWSClient(f.wsURL, f.pair)
	defer client.Close()

	client.OnTicker(func(price float64, ts time.Time) {
		f.mu.Lock()
		f.lastPrice = price
		f.lastAt = ts
		f.mu.Unlock()
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	f.logger.Info("ticker stream subscribed", slog.String("pair", f.pair))

	return client.ReadLoop(ctx)
}

// GetSpotPrice returns the latest streamed price. It fails when no price has
// arrived yet or the last one is older than maxSpotAge.
func (f *WSFeed) GetSpotPrice(ctx context.Context) (float64, error) {
	f.mu.RLock()
	price, at := f.lastPrice, f.lastAt
	f.mu.RUnlock()

	if at.IsZero() {
		return 0, fmt.Errorf("feed: no ticker price received yet for %s", f.pair)
	}
	if age := time.Since(at); age > maxSpotAge {
		return 0, fmt.Errorf("feed: ticker price for %s is stale (%s old)", f.pair, age.Round(time.Second))
	}
	return price, nil
}

// Close stops the feed.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Package signal derives trade signals from settled markets and the sampled
// reference price.
package signal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/feed"
)

// Engine answers the two questions the strategies ask every cycle: which side
// won the previous market, and which way has the reference price moved over a
// lookback window. Both answers are memoized per ticker: the exchange is
// asked about each settled market only once, and a momentum side, once
// resolved for a market, stays frozen so every strategy reading it sees the
// same side for that market.
type Engine struct {
	markets domain.MarketAPI
	buffer  *feed.PriceBuffer
	asset   string // short asset label for momentum notes, e.g. "BTC"
	logger  *slog.Logger

	mu       sync.Mutex
	results  map[string]domain.Side
	momentum map[momentumKey]momentumSignal
}

// momentumKey identifies one resolved momentum signal. The two window
// variants resolve independently for the same market.
type momentumKey struct {
	ticker string
	window time.Duration
}

type momentumSignal struct {
	side domain.Side
	note string
}

// NewEngine creates a signal engine reading settlement results from markets
// and price history from buffer. pair is the feed pair, e.g. "BTC-USD"; the
// base asset is used to label momentum notes.
func NewEngine(markets domain.MarketAPI, buffer *feed.PriceBuffer, pair string, logger *slog.Logger) *Engine {
	asset := pair
	if i := strings.IndexByte(pair, '-'); i > 0 {
		asset = pair[:i]
	}
	return &Engine{
		markets:  markets,
		buffer:   buffer,
		asset:    asset,
		logger:   logger.With(slog.String("component", "signal")),
		results:  make(map[string]domain.Side),
		momentum: make(map[momentumKey]momentumSignal),
	}
}

// PreviousResult returns the winning side of ticker. While the market has not
// settled yet it returns domain.ErrNotSettled; once a result is known it is
// memoized and later calls never hit the exchange again.
func (e *Engine) PreviousResult(ctx context.Context, ticker string) (domain.Side, error) {
	e.mu.Lock()
	if side, ok := e.results[ticker]; ok {
		e.mu.Unlock()
		return side, nil
	}
	e.mu.Unlock()

	m, err := e.markets.GetMarket(ctx, ticker)
	if err != nil {
		return "", fmt.Errorf("signal: previous result %s: %w", ticker, err)
	}
	if !m.Settled() {
		return "", fmt.Errorf("signal: %s: %w", ticker, domain.ErrNotSettled)
	}

	e.mu.Lock()
	e.results[ticker] = m.Result
	e.mu.Unlock()

	e.logger.Debug("settlement memoized",
		slog.String("ticker", ticker),
		slog.String("result", string(m.Result)),
	)
	return m.Result, nil
}

// Momentum returns the direction of the reference price move over window for
// the market identified by ticker, comparing the latest sample against the
// newest sample at least window old. An upward move signals yes, a downward
// move or an exact tie signals no. The note describes the move, e.g.
// "BTC +0.123%". ok is false while the buffer does not yet span the window.
//
// The side is resolved at most once per (ticker, window): after the first
// successful resolution later calls return the frozen side regardless of new
// samples, so the signal cannot flip between cycles for the same market.
func (e *Engine) Momentum(ticker string, now time.Time, window time.Duration) (side domain.Side, note string, ok bool) {
	key := momentumKey{ticker: ticker, window: window}

	e.mu.Lock()
	if sig, done := e.momentum[key]; done {
		e.mu.Unlock()
		return sig.side, sig.note, true
	}
	e.mu.Unlock()

	latest, haveLatest := e.buffer.Latest()
	if !haveLatest {
		return "", "", false
	}
	old, haveOld := e.buffer.AtOrBefore(now.Add(-window))
	if !haveOld || old.Price == 0 {
		return "", "", false
	}

	pct := (latest.Price - old.Price) / old.Price * 100
	note = fmt.Sprintf("%s %+.3f%%", e.asset, pct)

	side = domain.SideNo
	if latest.Price > old.Price {
		side = domain.SideYes
	}

	e.mu.Lock()
	e.momentum[key] = momentumSignal{side: side, note: note}
	e.mu.Unlock()

	e.logger.Debug("momentum memoized",
		slog.String("ticker", ticker),
		slog.Duration("window", window),
		slog.String("side", string(side)),
		slog.String("note", note),
	)
	return side, note, true
}

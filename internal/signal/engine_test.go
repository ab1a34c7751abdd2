package signal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubMarketAPI struct {
	markets map[string]domain.Market
	calls   int
}

func (s *stubMarketAPI) ListOpenMarkets(context.Context, string) ([]domain.Market, error) {
	return nil, nil
}

func (s *stubMarketAPI) GetMarket(_ context.Context, ticker string) (domain.Market, error) {
	s.calls++
	m, ok := s.markets[ticker]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func TestPreviousResultMemoized(t *testing.T) {
	api := &stubMarketAPI{markets: map[string]domain.Market{
		"KXBTC15M-A": {Ticker: "KXBTC15M-A", Result: domain.SideYes},
	}}
	e := NewEngine(api, feed.NewPriceBuffer(4), "BTC-USD", discardLogger())

	side, err := e.PreviousResult(context.Background(), "KXBTC15M-A")
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, side)

	// Second call is served from the memo.
	side, err = e.PreviousResult(context.Background(), "KXBTC15M-A")
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, side)
	assert.Equal(t, 1, api.calls)
}

func TestPreviousResultUnsettled(t *testing.T) {
	api := &stubMarketAPI{markets: map[string]domain.Market{
		"KXBTC15M-A": {Ticker: "KXBTC15M-A"},
	}}
	e := NewEngine(api, feed.NewPriceBuffer(4), "BTC-USD", discardLogger())

	_, err := e.PreviousResult(context.Background(), "KXBTC15M-A")
	assert.ErrorIs(t, err, domain.ErrNotSettled)
	// Unsettled results are not memoized: the next cycle asks again.
	_, err = e.PreviousResult(context.Background(), "KXBTC15M-A")
	assert.ErrorIs(t, err, domain.ErrNotSettled)
	assert.Equal(t, 2, api.calls)
}

func TestMomentum(t *testing.T) {
	buf := feed.NewPriceBuffer(16)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base.Add(2 * time.Minute)

	for i := 0; i <= 24; i++ {
		buf.Append(domain.PricePoint{
			Time:  base.Add(time.Duration(i*5) * time.Second),
			Price: 67000 + float64(i)*10,
		})
	}

	e := NewEngine(&stubMarketAPI{}, buf, "BTC-USD", discardLogger())

	side, note, ok := e.Momentum("KXBTC15M-A", now, time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideYes, side)
	assert.Contains(t, note, "BTC +")
}

func TestMomentumFrozenPerTicker(t *testing.T) {
	buf := feed.NewPriceBuffer(64)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base.Add(2 * time.Minute)

	for i := 0; i <= 24; i++ {
		buf.Append(domain.PricePoint{
			Time:  base.Add(time.Duration(i*5) * time.Second),
			Price: 67000 + float64(i)*10,
		})
	}

	e := NewEngine(&stubMarketAPI{}, buf, "BTC-USD", discardLogger())

	side, note, ok := e.Momentum("KXBTC15M-A", now, time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideYes, side)

	// A crash after the side resolved does not flip it for the same market.
	buf.Append(domain.PricePoint{Time: now.Add(5 * time.Second), Price: 60000})
	later := now.Add(10 * time.Second)

	side, note2, ok := e.Momentum("KXBTC15M-A", later, time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideYes, side)
	assert.Equal(t, note, note2)

	// The next market resolves fresh and sees the crash.
	side, _, ok = e.Momentum("KXBTC15M-B", later, time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideNo, side)

	// The long-window variant of the first market is still unresolved; the
	// short-window memo does not bleed into it.
	_, _, ok = e.Momentum("KXBTC15M-A", later, 15*time.Minute)
	assert.False(t, ok)
}

func TestMomentumDownAndTie(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	e := func(prices ...float64) *Engine {
		buf := feed.NewPriceBuffer(16)
		for i, p := range prices {
			buf.Append(domain.PricePoint{Time: base.Add(time.Duration(i*30) * time.Second), Price: p})
		}
		return NewEngine(&stubMarketAPI{}, buf, "BTC-USD", discardLogger())
	}

	// Downward move signals no.
	side, note, ok := e(67000, 66500, 66000).Momentum("KXBTC15M-A", base.Add(time.Minute), time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideNo, side)
	assert.Contains(t, note, "BTC -")

	// An exact tie also signals no.
	side, _, ok = e(67000, 67500, 67000).Momentum("KXBTC15M-A", base.Add(time.Minute), time.Minute)
	require.True(t, ok)
	assert.Equal(t, domain.SideNo, side)
}

func TestMomentumNotReady(t *testing.T) {
	buf := feed.NewPriceBuffer(16)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	e := NewEngine(&stubMarketAPI{}, buf, "BTC-USD", discardLogger())

	// Empty buffer.
	_, _, ok := e.Momentum("KXBTC15M-A", now, time.Minute)
	assert.False(t, ok)

	// Buffer does not span the window yet. An unresolved signal is not
	// frozen, so the next cycle tries again.
	buf.Append(domain.PricePoint{Time: now.Add(-30 * time.Second), Price: 67000})
	buf.Append(domain.PricePoint{Time: now, Price: 67100})
	_, _, ok = e.Momentum("KXBTC15M-A", now, time.Minute)
	assert.False(t, ok)
}

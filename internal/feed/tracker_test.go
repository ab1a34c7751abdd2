package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func TestTrackerPicksNextExpiring(t *testing.T) {
	tr := NewTracker(discardLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	open := []domain.Market{
		{Ticker: "KXBTC15M-B", CloseTime: now.Add(30 * time.Minute)},
		{Ticker: "KXBTC15M-A", CloseTime: now.Add(15 * time.Minute)},
		{Ticker: "KXBTC15M-STALE", CloseTime: now.Add(-time.Minute)},
	}

	m, rolled, err := tr.Observe(open, now)
	require.NoError(t, err)
	assert.Equal(t, "KXBTC15M-A", m.Ticker)
	assert.False(t, rolled, "first observation is not a rollover")
	assert.Equal(t, "KXBTC15M-A", tr.Current())
	assert.Empty(t, tr.Previous())
}

func TestTrackerRollover(t *testing.T) {
	tr := NewTracker(discardLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	_, _, err := tr.Observe([]domain.Market{
		{Ticker: "KXBTC15M-A", CloseTime: now.Add(15 * time.Minute)},
	}, now)
	require.NoError(t, err)

	// Same market again: no rollover.
	_, rolled, err := tr.Observe([]domain.Market{
		{Ticker: "KXBTC15M-A", CloseTime: now.Add(15 * time.Minute)},
	}, now.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, rolled)

	// A expired, B takes over.
	later := now.Add(16 * time.Minute)
	m, rolled, err := tr.Observe([]domain.Market{
		{Ticker: "KXBTC15M-A", CloseTime: now.Add(15 * time.Minute)},
		{Ticker: "KXBTC15M-B", CloseTime: now.Add(30 * time.Minute)},
	}, later)
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Equal(t, "KXBTC15M-B", m.Ticker)
	assert.Equal(t, "KXBTC15M-A", tr.Previous())
}

func TestTrackerNoOpenMarket(t *testing.T) {
	tr := NewTracker(discardLogger())
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	_, _, err := tr.Observe(nil, now)
	assert.ErrorIs(t, err, domain.ErrNoOpenMarket)

	_, _, err = tr.Observe([]domain.Market{
		{Ticker: "KXBTC15M-OLD", CloseTime: now.Add(-time.Hour)},
	}, now)
	assert.ErrorIs(t, err, domain.ErrNoOpenMarket)
}

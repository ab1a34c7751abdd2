package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func settled(strategy string, outcome domain.Outcome, stake, profit float64) domain.Trade {
	return domain.Trade{
		Strategy:  strategy,
		Outcome:   outcome,
		StakeUSD:  stake,
		ProfitUSD: profit,
	}
}

func TestComputeAggregates(t *testing.T) {
	r := Compute([]domain.Trade{
		settled(domain.StrategyPrevious, domain.OutcomeWin, 5, 7.5),
		settled(domain.StrategyPrevious, domain.OutcomeLoss, 5, -5),
		{Strategy: domain.StrategyPrevious, StakeUSD: 5}, // pending
		settled(domain.StrategyMomentum, domain.OutcomeWin, 5, 5),
	})

	require.Len(t, r.Strategies, 2)

	// Momentum is all wins, so it sorts first.
	mom := r.Strategies[0]
	assert.Equal(t, domain.StrategyMomentum, mom.Strategy)
	assert.InDelta(t, 100, mom.WinRate(), 1e-9)

	prev := r.Strategies[1]
	assert.Equal(t, domain.StrategyPrevious, prev.Strategy)
	assert.Equal(t, 1, prev.Wins)
	assert.Equal(t, 1, prev.Losses)
	assert.Equal(t, 1, prev.Pending)
	assert.InDelta(t, 50, prev.WinRate(), 1e-9)
	// Pending stake is excluded from the staked total.
	assert.InDelta(t, 10, prev.StakedUSD, 1e-9)
	assert.InDelta(t, 2.5, prev.ProfitUSD, 1e-9)
	assert.InDelta(t, 25, prev.ROI(), 1e-9)
	assert.InDelta(t, 1.25, prev.AvgProfitUSD(), 1e-9)
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil)
	assert.Empty(t, r.Strategies)

	total := r.Totals()
	assert.Zero(t, total.Total())
	assert.Zero(t, total.WinRate())
	assert.Zero(t, total.ROI())
}

func TestTotals(t *testing.T) {
	r := Compute([]domain.Trade{
		settled(domain.StrategyPrevious, domain.OutcomeWin, 5, 7.5),
		settled(domain.StrategyMomentum, domain.OutcomeLoss, 5, -5),
	})

	total := r.Totals()
	assert.Equal(t, 1, total.Wins)
	assert.Equal(t, 1, total.Losses)
	assert.InDelta(t, 10, total.StakedUSD, 1e-9)
	assert.InDelta(t, 2.5, total.ProfitUSD, 1e-9)
}

func TestRenderTable(t *testing.T) {
	r := Compute([]domain.Trade{
		settled(domain.StrategyPrevious, domain.OutcomeWin, 5, 7.5),
	})

	var sb strings.Builder
	r.Render(&sb)
	out := sb.String()

	assert.Contains(t, out, "Strategy")
	assert.Contains(t, out, domain.StrategyPrevious)
	assert.Contains(t, out, "TOTALS")
	assert.Contains(t, out, "100.0%")
}

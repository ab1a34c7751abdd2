// Package report computes per-strategy performance metrics from the trade
// ledger and renders them as a plain-text table.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// StrategyStats aggregates settled trades for one strategy. Pending trades
// count toward Pending only; their stake and profit are excluded.
type StrategyStats struct {
	Strategy  string
	Wins      int
	Losses    int
	Pending   int
	StakedUSD float64
	ProfitUSD float64
}

// Total returns the number of settled trades.
func (s StrategyStats) Total() int {
	return s.Wins + s.Losses
}

// WinRate returns the settled win rate in percent, zero when nothing settled.
func (s StrategyStats) WinRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Total()) * 100
}

// ROI returns net profit over total staked in percent, zero when nothing
// was staked.
func (s StrategyStats) ROI() float64 {
	if s.StakedUSD <= 0 {
		return 0
	}
	return s.ProfitUSD / s.StakedUSD * 100
}

// AvgProfitUSD returns net profit per settled trade.
func (s StrategyStats) AvgProfitUSD() float64 {
	if s.Total() == 0 {
		return 0
	}
	return s.ProfitUSD / float64(s.Total())
}

// Report holds per-strategy stats sorted by win rate, best first.
type Report struct {
	Strategies []StrategyStats
}

// Compute aggregates the ledger into a Report.
func Compute(trades []domain.Trade) Report {
	byName := map[string]*StrategyStats{}
	var order []string

	for i := range trades {
		t := &trades[i]
		s, ok := byName[t.Strategy]
		if !ok {
			s = &StrategyStats{Strategy: t.Strategy}
			byName[t.Strategy] = s
			order = append(order, t.Strategy)
		}

		switch t.Outcome {
		case domain.OutcomeWin:
			s.Wins++
		case domain.OutcomeLoss:
			s.Losses++
		default:
			s.Pending++
			continue
		}
		s.StakedUSD += t.StakeUSD
		s.ProfitUSD += t.ProfitUSD
	}

	out := make([]StrategyStats, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WinRate() > out[j].WinRate()
	})
	return Report{Strategies: out}
}

// Totals sums the settled columns across all strategies.
func (r Report) Totals() StrategyStats {
	total := StrategyStats{Strategy: "TOTALS"}
	for _, s := range r.Strategies {
		total.Wins += s.Wins
		total.Losses += s.Losses
		total.Pending += s.Pending
		total.StakedUSD += s.StakedUSD
		total.ProfitUSD += s.ProfitUSD
	}
	return total
}

// Render writes the report as a formatted table.
func (r Report) Render(w io.Writer) {
	fmt.Fprintf(w, "%-16s %6s %7s %7s %6s %9s %12s %9s\n",
		"Strategy", "Wins", "Losses", "Pending", "Total", "Win Rate", "Profit", "ROI")

	for _, s := range r.Strategies {
		fmt.Fprintf(w, "%-16s %6d %7d %7d %6d %8.1f%% $%11.2f %8.1f%%\n",
			s.Strategy, s.Wins, s.Losses, s.Pending, s.Total(), s.WinRate(), s.ProfitUSD, s.ROI())
	}

	t := r.Totals()
	fmt.Fprintf(w, "%-16s %6d %7d %7d %6d %8.1f%% $%11.2f %8.1f%%\n",
		t.Strategy, t.Wins, t.Losses, t.Pending, t.Total(), t.WinRate(), t.ProfitUSD, t.ROI())
}

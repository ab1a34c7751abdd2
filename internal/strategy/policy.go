// Package strategy defines the per-cycle trading policies. Each policy looks
// at the current market and the resolved signals and renders one of three
// verdicts: wait for more information, place a trade, or skip the market for
// good.
package strategy

import (
	"context"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/risk"
	"github.com/alanyoungcy/kalshibot/internal/signal"
)

// Verdict is a policy's conclusion for its (strategy, market) pair this cycle.
type Verdict int

const (
	// Wait leaves the pair undecided; the policy is re-evaluated next cycle.
	Wait Verdict = iota
	// Trade places the order described by the decision's Intent. The pair is
	// decided regardless of whether the order succeeds.
	Trade
	// Skip decides the pair without a trade. It is terminal.
	Skip
)

// String returns the verdict name for logs.
func (v Verdict) String() string {
	switch v {
	case Wait:
		return "wait"
	case Trade:
		return "trade"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Intent describes the order a Trade verdict wants placed. Contracts may be
// fractional; live execution floors it to whole contracts.
type Intent struct {
	Side      domain.Side
	StakeUSD  float64
	PriceUSD  float64
	Contracts float64
	// Context is a human note persisted with the trade, e.g. the previous
	// result or the momentum move that produced the side.
	Context string
}

// Decision is the result of one policy evaluation.
type Decision struct {
	Verdict Verdict
	Intent  Intent // meaningful only when Verdict == Trade
	Reason  string // why the policy waited or skipped
}

// TradeView exposes the decision state the policies need to read.
type TradeView interface {
	// Decided reports whether the pair already reached a terminal decision.
	Decided(key domain.DecisionKey) bool
	// Find returns the recorded trade for the pair, if one was placed.
	Find(key domain.DecisionKey) (domain.Trade, bool)
}

// Params holds the tunables shared by the fixed-stake policies.
type Params struct {
	StakeUSD          float64
	DealMaxPrice      float64
	MaxHedgeBudgetUSD float64
	MomentumWindow    time.Duration
	Momentum15Window  time.Duration
}

// Env is the read-only view of the world a policy evaluates against.
type Env struct {
	Now        time.Time
	Market     domain.Market
	PrevTicker string // "" until the first rollover
	Signals    *signal.Engine
	Risk       *risk.Manager
	// Ledger is the full trade history, used for risk sizing.
	Ledger []domain.Trade
	Trades TradeView
}

// Policy is one strategy variant evaluated against its pair each cycle.
type Policy interface {
	Name() string
	Evaluate(ctx context.Context, env *Env) Decision
}

func wait(reason string) Decision {
	return Decision{Verdict: Wait, Reason: reason}
}

func skip(reason string) Decision {
	return Decision{Verdict: Skip, Reason: reason}
}

package domain

import "time"

// Side is one side of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether the side is one of the two tradable sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Outcome is the settlement result of a trade. The empty string means the
// bought market has not settled yet.
type Outcome string

const (
	OutcomeUnresolved Outcome = ""
	OutcomeWin        Outcome = "WIN"
	OutcomeLoss       Outcome = "LOSS"
)

// Strategy names as they appear in the ledger.
const (
	StrategyPrevious       = "PREVIOUS"
	StrategyMomentum       = "MOMENTUM"
	StrategyMomentum15     = "MOMENTUM_15"
	StrategyConsensus      = "CONSENSUS"
	StrategyPrevious2      = "PREVIOUS_2"
	StrategyConsensus2     = "CONSENSUS_2"
	StrategyArbitrage      = "ARBITRAGE"
	StrategyArbitrageHedge = "ARBITRAGE_HEDGE"
)

// RiskManaged reports whether the strategy sizes through the risk manager.
// Risk-managed trades share one bankroll and pay the configured fee.
func RiskManaged(strategy string) bool {
	return strategy == StrategyConsensus || strategy == StrategyConsensus2
}

// Trade is one persisted wager. Settlement fields (Outcome, PayoutUSD,
// GrossProfitUSD, FeeUSD, ProfitUSD) are write-once: the reconciler sets them
// when the bought market settles and they are never revised afterward.
type Trade struct {
	Time            time.Time
	Strategy        string
	PreviousTicker  string
	PreviousContext string
	BuyTicker       string
	BuySide         Side
	StakeUSD        float64
	PriceUSD        float64
	Contracts       float64
	OrderID         string

	Outcome        Outcome
	FeeUSD         float64
	GrossProfitUSD float64
	PayoutUSD      float64
	ProfitUSD      float64
}

// Settled reports whether the trade's outcome has been recorded.
func (t *Trade) Settled() bool {
	return t.Outcome != OutcomeUnresolved
}

// Key identifies a trade within a process run. Directional strategies place at
// most one trade per market, and the arbitrage legs use distinct strategy
// names, so (strategy, buy ticker) is unique across the ledger.
func (t *Trade) Key() DecisionKey {
	return DecisionKey{Strategy: t.Strategy, Ticker: t.BuyTicker}
}

// DecisionKey is a (strategy, market ticker) pair.
type DecisionKey struct {
	Strategy string
	Ticker   string
}

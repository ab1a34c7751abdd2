package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// hedgeEpsilon keeps the hedge cost strictly under the budget so a cap-priced
// fill cannot tip over it.
const hedgeEpsilon = 0.0001

// ArbitragePolicy opens the first leg of the two-leg arbitrage: it buys the
// cheaper side of the market at a fixed stake as soon as asks are available.
// The hedge policy closes the structure later if an edge appears.
type ArbitragePolicy struct {
	cfg Params
}

// NewArbitragePolicy creates the ARBITRAGE (first leg) policy.
func NewArbitragePolicy(cfg Params) *ArbitragePolicy {
	return &ArbitragePolicy{cfg: cfg}
}

func (p *ArbitragePolicy) Name() string { return domain.StrategyArbitrage }

func (p *ArbitragePolicy) Evaluate(_ context.Context, env *Env) Decision {
	if env.Market.YesAsk <= 0 || env.Market.NoAsk <= 0 {
		return wait("asks not available")
	}

	side := domain.SideYes
	if env.Market.NoAsk < env.Market.YesAsk {
		side = domain.SideNo
	}
	price := env.Market.Ask(side)
	return fixedStake(side, price, p.cfg.StakeUSD,
		fmt.Sprintf("cheaper side %s @ %.2f", side, price))
}

// ArbitrageHedgePolicy opens the opposite leg once the first leg exists and
// the combined cost of both legs drops below one dollar per contract pair.
// Until then the pair stays unhedged and is retried every cycle.
type ArbitrageHedgePolicy struct {
	cfg Params
}

// NewArbitrageHedgePolicy creates the ARBITRAGE_HEDGE (second leg) policy.
func NewArbitrageHedgePolicy(cfg Params) *ArbitrageHedgePolicy {
	return &ArbitrageHedgePolicy{cfg: cfg}
}

func (p *ArbitrageHedgePolicy) Name() string { return domain.StrategyArbitrageHedge }

func (p *ArbitrageHedgePolicy) Evaluate(_ context.Context, env *Env) Decision {
	leg1, ok := env.Trades.Find(domain.DecisionKey{
		Strategy: domain.StrategyArbitrage,
		Ticker:   env.Market.Ticker,
	})
	if !ok {
		return wait("no first leg yet")
	}

	side := leg1.BuySide.Opposite()
	price := env.Market.Ask(side)
	if price <= 0 {
		return wait("no ask for hedge side")
	}

	combined := leg1.PriceUSD + price
	if combined >= 1 {
		return wait(fmt.Sprintf("no edge: combined cost %.2f", combined))
	}

	budgetCap := math.Floor((p.cfg.MaxHedgeBudgetUSD - hedgeEpsilon) / price)
	// The hedge covers whole contracts only; a fractional paper-mode first
	// leg is hedged at its floor.
	contracts := math.Min(math.Floor(leg1.Contracts), budgetCap)
	if contracts < 1 {
		return wait("hedge would be under one contract")
	}

	return Decision{
		Verdict: Trade,
		Intent: Intent{
			Side:      side,
			StakeUSD:  contracts * price,
			PriceUSD:  price,
			Contracts: contracts,
			Context:   fmt.Sprintf("hedge of %s leg, combined %.2f", leg1.BuySide, combined),
		},
	}
}

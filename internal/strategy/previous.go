package strategy

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// PreviousPolicy bets that the new market settles the same way the previous
// one did. It waits until the previous market's settlement is known.
type PreviousPolicy struct {
	cfg Params
}

// NewPreviousPolicy creates the PREVIOUS policy.
func NewPreviousPolicy(cfg Params) *PreviousPolicy {
	return &PreviousPolicy{cfg: cfg}
}

func (p *PreviousPolicy) Name() string { return domain.StrategyPrevious }

func (p *PreviousPolicy) Evaluate(ctx context.Context, env *Env) Decision {
	side, note, dec := previousSide(ctx, env)
	if dec != nil {
		return *dec
	}
	return fixedStake(side, env.Market.Ask(side), p.cfg.StakeUSD, note)
}

// Previous2Policy is PREVIOUS with a price ceiling: it only buys when the ask
// for the settled side is at or below the deal threshold, and keeps waiting
// otherwise. A market that never gets cheap enough is simply never traded.
type Previous2Policy struct {
	cfg Params
}

// NewPrevious2Policy creates the PREVIOUS_2 policy.
func NewPrevious2Policy(cfg Params) *Previous2Policy {
	return &Previous2Policy{cfg: cfg}
}

func (p *Previous2Policy) Name() string { return domain.StrategyPrevious2 }

func (p *Previous2Policy) Evaluate(ctx context.Context, env *Env) Decision {
	side, note, dec := previousSide(ctx, env)
	if dec != nil {
		return *dec
	}
	price := env.Market.Ask(side)
	if price > p.cfg.DealMaxPrice {
		return wait(fmt.Sprintf("ask %.2f above deal threshold %.2f", price, p.cfg.DealMaxPrice))
	}
	return fixedStake(side, price, p.cfg.StakeUSD, note)
}

// previousSide resolves the previous market's settlement side. The returned
// Decision is non-nil when the caller should return it instead of trading.
func previousSide(ctx context.Context, env *Env) (domain.Side, string, *Decision) {
	if env.PrevTicker == "" {
		d := wait("no previous market yet")
		return "", "", &d
	}
	side, err := env.Signals.PreviousResult(ctx, env.PrevTicker)
	if err != nil {
		d := wait(fmt.Sprintf("previous result: %v", err))
		return "", "", &d
	}
	return side, "prev=" + string(side), nil
}

// fixedStake builds a fixed-stake Trade decision at the given ask price.
// Contracts stay fractional here; live execution floors them.
func fixedStake(side domain.Side, price, stake float64, note string) Decision {
	if price <= 0 {
		return wait("no ask price")
	}
	return Decision{
		Verdict: Trade,
		Intent: Intent{
			Side:      side,
			StakeUSD:  stake,
			PriceUSD:  price,
			Contracts: stake / price,
			Context:   note,
		},
	}
}

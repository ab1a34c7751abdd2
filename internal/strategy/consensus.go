package strategy

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// ConsensusPolicy trades only when the previous-result signal and the
// short-window momentum signal agree, and sizes the position through the risk
// manager. Disagreement and risk rejections are terminal: the market is
// skipped and never revisited.
type ConsensusPolicy struct {
	cfg Params
}

// NewConsensusPolicy creates the CONSENSUS policy.
func NewConsensusPolicy(cfg Params) *ConsensusPolicy {
	return &ConsensusPolicy{cfg: cfg}
}

func (p *ConsensusPolicy) Name() string { return domain.StrategyConsensus }

func (p *ConsensusPolicy) Evaluate(ctx context.Context, env *Env) Decision {
	side, note, dec := consensusSide(ctx, env, p.cfg)
	if dec != nil {
		return *dec
	}

	price := env.Market.Ask(side)
	res := env.Risk.Approve(price, env.Ledger, env.Now)
	if !res.Approved {
		return skip(fmt.Sprintf("risk rejected: %s", res.Reason))
	}
	return Decision{
		Verdict: Trade,
		Intent: Intent{
			Side:      side,
			StakeUSD:  res.StakeUSD,
			PriceUSD:  price,
			Contracts: res.Contracts,
			Context:   note,
		},
	}
}

// Consensus2Policy is CONSENSUS with a price ceiling and softer failure
// handling: a too-expensive ask or a risk rejection leaves the pair
// undecided, so the market is retried every cycle until it settles out of
// reach. Only signal disagreement is terminal.
type Consensus2Policy struct {
	cfg Params
}

// NewConsensus2Policy creates the CONSENSUS_2 policy.
func NewConsensus2Policy(cfg Params) *Consensus2Policy {
	return &Consensus2Policy{cfg: cfg}
}

func (p *Consensus2Policy) Name() string { return domain.StrategyConsensus2 }

func (p *Consensus2Policy) Evaluate(ctx context.Context, env *Env) Decision {
	side, note, dec := consensusSide(ctx, env, p.cfg)
	if dec != nil {
		return *dec
	}

	price := env.Market.Ask(side)
	if price > p.cfg.DealMaxPrice {
		return wait(fmt.Sprintf("ask %.2f above deal threshold %.2f", price, p.cfg.DealMaxPrice))
	}
	res := env.Risk.Approve(price, env.Ledger, env.Now)
	if !res.Approved {
		return wait(fmt.Sprintf("risk rejected: %s", res.Reason))
	}
	return Decision{
		Verdict: Trade,
		Intent: Intent{
			Side:      side,
			StakeUSD:  res.StakeUSD,
			PriceUSD:  price,
			Contracts: res.Contracts,
			Context:   note,
		},
	}
}

// consensusSide resolves both signals and checks they agree. The returned
// Decision is non-nil when the caller should return it: a wait while either
// signal is unresolved, or a terminal skip on disagreement.
func consensusSide(ctx context.Context, env *Env, cfg Params) (domain.Side, string, *Decision) {
	prevSide, prevNote, dec := previousSide(ctx, env)
	if dec != nil {
		return "", "", dec
	}
	momSide, momNote, ok := env.Signals.Momentum(env.Market.Ticker, env.Now, cfg.MomentumWindow)
	if !ok {
		d := wait("price history does not span the window yet")
		return "", "", &d
	}
	if prevSide != momSide {
		d := skip(fmt.Sprintf("signals disagree: %s vs %s", prevNote, momNote))
		return "", "", &d
	}
	return prevSide, prevNote + " " + momNote, nil
}

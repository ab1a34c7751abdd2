package strategy

import (
	"context"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// MomentumPolicy bets the direction of the reference price move over a
// lookback window. One instance covers both the short and long window
// variants; they differ only in name and window.
type MomentumPolicy struct {
	name   string
	window time.Duration
	cfg    Params
}

// NewMomentumPolicy creates the short-window MOMENTUM policy.
func NewMomentumPolicy(cfg Params) *MomentumPolicy {
	return &MomentumPolicy{
		name:   domain.StrategyMomentum,
		window: cfg.MomentumWindow,
		cfg:    cfg,
	}
}

// NewMomentum15Policy creates the long-window MOMENTUM_15 policy.
func NewMomentum15Policy(cfg Params) *MomentumPolicy {
	return &MomentumPolicy{
		name:   domain.StrategyMomentum15,
		window: cfg.Momentum15Window,
		cfg:    cfg,
	}
}

func (p *MomentumPolicy) Name() string { return p.name }

func (p *MomentumPolicy) Evaluate(_ context.Context, env *Env) Decision {
	// Momentum only acts once a rollover has been observed, like the
	// previous-result strategies.
	if env.PrevTicker == "" {
		return wait("no previous market yet")
	}
	side, note, ok := env.Signals.Momentum(env.Market.Ticker, env.Now, p.window)
	if !ok {
		return wait("price history does not span the window yet")
	}
	return fixedStake(side, env.Market.Ask(side), p.cfg.StakeUSD, note)
}

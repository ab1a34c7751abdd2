package strategy

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
	"github.com/alanyoungcy/kalshibot/internal/risk"
	"github.com/alanyoungcy/kalshibot/internal/signal"
)

func testStrategyParams() Params {
	return Params{
		StakeUSD:          5,
		DealMaxPrice:      0.45,
		MaxHedgeBudgetUSD: 10,
		MomentumWindow:    time.Minute,
		Momentum15Window:  15 * time.Minute,
	}
}

type stubMarkets struct {
	markets map[string]domain.Market
}

func (s *stubMarkets) ListOpenMarkets(context.Context, string) ([]domain.Market, error) {
	return nil, nil
}

func (s *stubMarkets) GetMarket(_ context.Context, ticker string) (domain.Market, error) {
	m, ok := s.markets[ticker]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

type stubTrades struct {
	trades map[domain.DecisionKey]domain.Trade
}

func (s *stubTrades) Decided(key domain.DecisionKey) bool {
	_, ok := s.trades[key]
	return ok
}

func (s *stubTrades) Find(key domain.DecisionKey) (domain.Trade, bool) {
	t, ok := s.trades[key]
	return t, ok
}

type envOption func(*testEnv)

type testEnv struct {
	prevResult domain.Side // "" means previous market unsettled
	prices     []float64   // one sample per 5s ending at now
	market     domain.Market
	trades     map[domain.DecisionKey]domain.Trade
	ledger     []domain.Trade
}

func withPrevResult(s domain.Side) envOption {
	return func(e *testEnv) { e.prevResult = s }
}

func withPrices(p ...float64) envOption {
	return func(e *testEnv) { e.prices = p }
}

func withMarket(m domain.Market) envOption {
	return func(e *testEnv) { e.market = m }
}

func withTrade(t domain.Trade) envOption {
	return func(e *testEnv) {
		e.trades[t.Key()] = t
		e.ledger = append(e.ledger, t)
	}
}

func newEnv(t *testing.T, opts ...envOption) *Env {
	t.Helper()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	te := &testEnv{
		market: domain.Market{
			Ticker:    "KXBTC15M-CUR",
			YesAsk:    0.40,
			NoAsk:     0.62,
			CloseTime: now.Add(10 * time.Minute),
		},
		trades: map[domain.DecisionKey]domain.Trade{},
	}
	for _, opt := range opts {
		opt(te)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prev := domain.Market{Ticker: "KXBTC15M-PREV"}
	if te.prevResult != "" {
		prev.Result = te.prevResult
	}
	markets := &stubMarkets{markets: map[string]domain.Market{prev.Ticker: prev}}

	buf := feed.NewPriceBuffer(256)
	for i, p := range te.prices {
		offset := time.Duration(len(te.prices)-1-i) * 5 * time.Second
		buf.Append(domain.PricePoint{Time: now.Add(-offset), Price: p})
	}

	return &Env{
		Now:        now,
		Market:     te.market,
		PrevTicker: prev.Ticker,
		Signals:    signal.NewEngine(markets, buf, "BTC-USD", logger),
		Risk: risk.NewManager(risk.Params{
			InitialBankrollUSD: 500,
			RiskPct:            0.01,
			MaxRiskPct:         0.02,
			MaxPrice:           0.55,
			RollingWindow:      30,
			DailyLossCapR:      3,
			WeeklyLossCapR:     8,
		}, logger),
		Ledger: te.ledger,
		Trades: &stubTrades{trades: te.trades},
	}
}

// risingPrices spans well past the 1-minute window with a steady climb.
func risingPrices() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = 67000 + float64(i)*10
	}
	return out
}

func fallingPrices() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = 67000 - float64(i)*10
	}
	return out
}

func TestPreviousPolicy(t *testing.T) {
	p := NewPreviousPolicy(testStrategyParams())

	// Previous market unsettled: wait.
	env := newEnv(t)
	d := p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)

	// No previous market at all: wait.
	env = newEnv(t, withPrevResult(domain.SideYes))
	env.PrevTicker = ""
	d = p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)

	// Settled yes: buy yes at the yes ask with the fixed stake.
	env = newEnv(t, withPrevResult(domain.SideYes))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)
	assert.Equal(t, 5.0, d.Intent.StakeUSD)
	assert.InDelta(t, 0.40, d.Intent.PriceUSD, 1e-9)
	assert.InDelta(t, 12.5, d.Intent.Contracts, 1e-9)
	assert.Contains(t, d.Intent.Context, "prev=yes")
}

func TestPrevious2PolicyThreshold(t *testing.T) {
	p := NewPrevious2Policy(testStrategyParams())

	// no side ask 0.62 is above the 0.45 threshold: wait, not skip.
	env := newEnv(t, withPrevResult(domain.SideNo))
	d := p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)

	// yes side at 0.40 is under the threshold.
	env = newEnv(t, withPrevResult(domain.SideYes))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)
}

func TestMomentumPolicies(t *testing.T) {
	cfg := testStrategyParams()

	// No history: wait.
	d := NewMomentumPolicy(cfg).Evaluate(context.Background(), newEnv(t))
	assert.Equal(t, Wait, d.Verdict)

	// No rollover observed yet: wait even with full history.
	env := newEnv(t, withPrices(risingPrices()...))
	env.PrevTicker = ""
	d = NewMomentumPolicy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)
	d = NewMomentum15Policy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)

	// Rising prices: buy yes.
	env = newEnv(t, withPrices(risingPrices()...))
	d = NewMomentumPolicy(cfg).Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)
	assert.Contains(t, d.Intent.Context, "BTC +")

	// Falling prices: buy no.
	env = newEnv(t, withPrices(fallingPrices()...))
	d = NewMomentumPolicy(cfg).Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideNo, d.Intent.Side)

	// The 15-minute variant needs 15 minutes of history; 95 seconds of
	// samples is not enough.
	env = newEnv(t, withPrices(risingPrices()...))
	d = NewMomentum15Policy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)
}

func TestConsensusPolicy(t *testing.T) {
	cfg := testStrategyParams()
	p := NewConsensusPolicy(cfg)

	// Momentum unresolved: wait.
	env := newEnv(t, withPrevResult(domain.SideYes))
	d := p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)

	// Signals disagree: terminal skip.
	env = newEnv(t, withPrevResult(domain.SideYes), withPrices(fallingPrices()...))
	d = p.Evaluate(context.Background(), env)
	assert.Equal(t, Skip, d.Verdict)

	// Agreement on yes at 0.40: risk approves 12 contracts of 0.40
	// (bankroll 500 -> target 5, floor(5/0.40)=12).
	env = newEnv(t, withPrevResult(domain.SideYes), withPrices(risingPrices()...))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)
	assert.Equal(t, 12.0, d.Intent.Contracts)
	assert.InDelta(t, 4.8, d.Intent.StakeUSD, 1e-9)

	// Risk rejection (ask above risk max price): terminal skip.
	env = newEnv(t,
		withPrevResult(domain.SideNo),
		withPrices(fallingPrices()...),
		withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.38, NoAsk: 0.62}),
	)
	d = p.Evaluate(context.Background(), env)
	assert.Equal(t, Skip, d.Verdict)
	assert.Contains(t, d.Reason, "risk rejected")
}

func TestConsensusReadsFrozenMomentum(t *testing.T) {
	cfg := testStrategyParams()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	buf := feed.NewPriceBuffer(256)
	prices := risingPrices()
	for i, p := range prices {
		offset := time.Duration(len(prices)-1-i) * 5 * time.Second
		buf.Append(domain.PricePoint{Time: now.Add(-offset), Price: p})
	}
	markets := &stubMarkets{markets: map[string]domain.Market{
		"KXBTC15M-PREV": {Ticker: "KXBTC15M-PREV", Result: domain.SideNo},
	}}
	env := &Env{
		Now:        now,
		Market:     domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.40, NoAsk: 0.62, CloseTime: now.Add(10 * time.Minute)},
		PrevTicker: "KXBTC15M-PREV",
		Signals:    signal.NewEngine(markets, buf, "BTC-USD", logger),
		Risk: risk.NewManager(risk.Params{
			InitialBankrollUSD: 500,
			RiskPct:            0.01,
			MaxRiskPct:         0.02,
			MaxPrice:           0.55,
			RollingWindow:      30,
			DailyLossCapR:      3,
			WeeklyLossCapR:     8,
		}, logger),
		Trades: &stubTrades{trades: map[domain.DecisionKey]domain.Trade{}},
	}

	// MOMENTUM resolves yes on the rising history and trades.
	d := NewMomentumPolicy(cfg).Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)

	// The price crashes one sample later. The frozen momentum side still
	// disagrees with the settled no, so consensus skips instead of trading
	// no against the recorded momentum position.
	buf.Append(domain.PricePoint{Time: now.Add(5 * time.Second), Price: 60000})
	env.Now = now.Add(10 * time.Second)

	d = NewConsensusPolicy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Skip, d.Verdict)
	assert.Contains(t, d.Reason, "disagree")
}

func TestConsensus2StaysUndecidedWhereConsensusActs(t *testing.T) {
	cfg := testStrategyParams()

	// Both signals agree on no, but the no ask 0.62 is above the 0.45 deal
	// threshold: CONSENSUS_2 waits forever, CONSENSUS goes to risk sizing
	// (and is rejected terminally since 0.62 > 0.55).
	env := newEnv(t, withPrevResult(domain.SideNo), withPrices(fallingPrices()...))

	d2 := NewConsensus2Policy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d2.Verdict)

	d1 := NewConsensusPolicy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Skip, d1.Verdict)
}

func TestConsensus2RiskRejectionWaits(t *testing.T) {
	cfg := testStrategyParams()
	// Agreement on yes at 0.44 (under deal threshold). Deplete the bankroll
	// so risk rejects; CONSENSUS_2 must wait rather than skip.
	env := newEnv(t,
		withPrevResult(domain.SideYes),
		withPrices(risingPrices()...),
		withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.44, NoAsk: 0.58}),
		withTrade(domain.Trade{
			Time:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			Strategy:  domain.StrategyConsensus,
			BuyTicker: "KXBTC15M-OLD",
			Outcome:   domain.OutcomeLoss,
			ProfitUSD: -600,
		}),
	)

	d := NewConsensus2Policy(cfg).Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)
	assert.Contains(t, d.Reason, "risk rejected")
}

func TestArbitragePolicy(t *testing.T) {
	cfg := testStrategyParams()
	p := NewArbitragePolicy(cfg)

	// Cheaper side is yes at 0.40.
	d := p.Evaluate(context.Background(), newEnv(t))
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)
	assert.InDelta(t, 12.5, d.Intent.Contracts, 1e-9)

	// Cheaper side is no.
	env := newEnv(t, withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.70, NoAsk: 0.35}))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideNo, d.Intent.Side)

	// A tie goes to yes.
	env = newEnv(t, withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.50, NoAsk: 0.50}))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideYes, d.Intent.Side)

	// Missing asks: wait.
	env = newEnv(t, withMarket(domain.Market{Ticker: "KXBTC15M-CUR"}))
	d = p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)
}

func TestArbitrageHedgePolicy(t *testing.T) {
	cfg := testStrategyParams()
	p := NewArbitrageHedgePolicy(cfg)

	leg1 := domain.Trade{
		Strategy:  domain.StrategyArbitrage,
		BuyTicker: "KXBTC15M-CUR",
		BuySide:   domain.SideYes,
		PriceUSD:  0.40,
		Contracts: 12.5,
		StakeUSD:  5,
	}

	// No first leg: wait.
	d := p.Evaluate(context.Background(), newEnv(t))
	assert.Equal(t, Wait, d.Verdict)

	// Combined cost 0.40 + 0.62 >= 1: no edge, wait.
	d = p.Evaluate(context.Background(), newEnv(t, withTrade(leg1)))
	assert.Equal(t, Wait, d.Verdict)

	// No ask drops to 0.55: combined 0.95 < 1. Budget cap is
	// floor((10 - eps)/0.55) = 18, so the first leg binds; its fractional
	// 12.5 contracts hedge at the whole-contract floor of 12.
	env := newEnv(t, withTrade(leg1),
		withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.42, NoAsk: 0.55}))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.Equal(t, domain.SideNo, d.Intent.Side)
	assert.InDelta(t, 12, d.Intent.Contracts, 1e-9)
	assert.InDelta(t, 12*0.55, d.Intent.StakeUSD, 1e-9)

	// A big first leg binds on the budget cap instead.
	bigLeg := leg1
	bigLeg.Contracts = 100
	env = newEnv(t, withTrade(bigLeg),
		withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.42, NoAsk: 0.55}))
	d = p.Evaluate(context.Background(), env)
	require.Equal(t, Trade, d.Verdict)
	assert.InDelta(t, 18, d.Intent.Contracts, 1e-9)

	// A tiny first leg cannot support a one-contract hedge: wait.
	tinyLeg := leg1
	tinyLeg.Contracts = 0.5
	env = newEnv(t, withTrade(tinyLeg),
		withMarket(domain.Market{Ticker: "KXBTC15M-CUR", YesAsk: 0.42, NoAsk: 0.55}))
	d = p.Evaluate(context.Background(), env)
	assert.Equal(t, Wait, d.Verdict)
}

func TestRegistry(t *testing.T) {
	cfg := testStrategyParams()

	r, err := NewRegistry(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		domain.StrategyPrevious,
		domain.StrategyMomentum,
		domain.StrategyMomentum15,
		domain.StrategyPrevious2,
		domain.StrategyConsensus,
		domain.StrategyConsensus2,
		domain.StrategyArbitrage,
		domain.StrategyArbitrageHedge,
	}, r.Names())

	// Filtering keeps canonical order regardless of config order.
	r, err = NewRegistry(cfg, []string{"consensus", "PREVIOUS"})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.StrategyPrevious, domain.StrategyConsensus}, r.Names())

	_, err = NewRegistry(cfg, []string{"MARTINGALE"})
	assert.Error(t, err)
}

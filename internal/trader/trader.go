// Package trader runs the per-cycle decision loop: sample the reference
// price, reconcile settlements, follow the market in play, and evaluate every
// active strategy policy against it.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/feed"
	"github.com/alanyoungcy/kalshibot/internal/notify"
	"github.com/alanyoungcy/kalshibot/internal/report"
	"github.com/alanyoungcy/kalshibot/internal/risk"
	"github.com/alanyoungcy/kalshibot/internal/settle"
	"github.com/alanyoungcy/kalshibot/internal/signal"
	"github.com/alanyoungcy/kalshibot/internal/strategy"
)

// eventStream is the bus stream bot events are appended to.
const eventStream = "kalshibot:events"

// Config holds the trader's loop parameters.
type Config struct {
	Series       string
	PollInterval time.Duration
	// Live floors placements to whole contracts and records the recomputed
	// stake; paper mode keeps fractional contracts.
	Live bool
}

// Deps bundles the trader's collaborators. Notifier and Bus are optional.
type Deps struct {
	Markets    domain.MarketAPI
	Orders     domain.OrderPlacer
	Ledger     domain.TradeLedger
	Sampler    *feed.Sampler
	Tracker    *feed.Tracker
	Signals    *signal.Engine
	Risk       *risk.Manager
	Registry   *strategy.Registry
	Reconciler *settle.Reconciler
	Notifier   *notify.Notifier
	Bus        domain.EventBus
	Logger     *slog.Logger
}

// Trader owns the cycle loop and all in-memory run state. It is single
// threaded: Init, Run, and Cycle must be called from one goroutine.
type Trader struct {
	cfg  Config
	deps Deps

	params strategy.Params
	idx    *DecisionIndex
	trades []domain.Trade
	logger *slog.Logger
}

// New creates a trader. Call Init before Run.
func New(cfg Config, params strategy.Params, deps Deps) *Trader {
	return &Trader{
		cfg:    cfg,
		deps:   deps,
		params: params,
		logger: deps.Logger.With(slog.String("component", "trader")),
	}
}

// Init loads the ledger and rebuilds the decision index from it.
func (t *Trader) Init(ctx context.Context) error {
	trades, err := t.deps.Ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("trader: load ledger: %w", err)
	}
	t.trades = trades
	t.idx = NewDecisionIndex(trades)

	t.logger.Info("ledger loaded",
		slog.Int("trades", len(trades)),
		slog.Any("strategies", t.deps.Registry.Names()),
	)
	for _, s := range report.Compute(trades).Strategies {
		t.logger.Info("ledger summary",
			slog.String("strategy", s.Strategy),
			slog.Int("wins", s.Wins),
			slog.Int("losses", s.Losses),
			slog.Int("pending", s.Pending),
			slog.Float64("profit_usd", s.ProfitUSD),
		)
	}
	return nil
}

// Trades returns the in-memory ledger mirror, for end-of-run reporting.
func (t *Trader) Trades() []domain.Trade {
	return t.trades
}

// Run executes one cycle per poll interval until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.Cycle(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Cycle(ctx, now)
		}
	}
}

// Cycle runs one full iteration. Every external failure is contained to its
// own step; the cycle always runs as far as its inputs allow.
func (t *Trader) Cycle(ctx context.Context, now time.Time) {
	// 1. Sample the reference price. A failed sample leaves the buffer stale
	// but the rest of the cycle still runs.
	if _, err := t.deps.Sampler.Sample(ctx, now); err != nil {
		t.logger.Warn("price sample failed", slog.String("error", err.Error()))
	}

	// 2. Settle pending wagers. Independent of the market in play.
	for _, s := range t.deps.Reconciler.Reconcile(ctx, t.trades) {
		t.idx.Refresh(s)
		t.publish(ctx, notify.EventTradeSettled, s)
		t.notifyf(ctx, notify.EventTradeSettled, "Trade settled",
			"%s %s: %s, net %+.2f", s.Strategy, s.BuyTicker, s.Outcome, s.ProfitUSD)
	}

	// 3. Find the market in play.
	open, err := t.deps.Markets.ListOpenMarkets(ctx, t.cfg.Series)
	if err != nil {
		t.logger.Warn("list open markets failed", slog.String("error", err.Error()))
		return
	}
	market, rolled, err := t.deps.Tracker.Observe(open, now)
	if err != nil {
		t.logger.Debug("no market in play", slog.String("error", err.Error()))
		return
	}
	if rolled {
		t.logger.Info("evaluating new market", slog.String("ticker", market.Ticker))
	}

	// 4. Evaluate every undecided policy pair.
	env := &strategy.Env{
		Now:        now,
		Market:     market,
		PrevTicker: t.deps.Tracker.Previous(),
		Signals:    t.deps.Signals,
		Risk:       t.deps.Risk,
		Ledger:     t.trades,
		Trades:     t.idx,
	}
	for _, policy := range t.deps.Registry.Policies() {
		key := domain.DecisionKey{Strategy: policy.Name(), Ticker: market.Ticker}
		if t.idx.Decided(key) {
			continue
		}

		d := policy.Evaluate(ctx, env)
		switch d.Verdict {
		case strategy.Wait:
			t.logger.Debug("waiting",
				slog.String("strategy", key.Strategy),
				slog.String("ticker", key.Ticker),
				slog.String("reason", d.Reason),
			)
		case strategy.Skip:
			t.idx.MarkSkipped(key)
			t.logger.Info("skipped",
				slog.String("strategy", key.Strategy),
				slog.String("ticker", key.Ticker),
				slog.String("reason", d.Reason),
			)
			if strings.Contains(d.Reason, string(risk.RejectDailyCap)) ||
				strings.Contains(d.Reason, string(risk.RejectWeeklyCap)) {
				t.notifyf(ctx, notify.EventCapHit, "Loss cap hit",
					"%s %s: %s", key.Strategy, key.Ticker, d.Reason)
			}
		case strategy.Trade:
			t.execute(ctx, key, env, d.Intent, now)
		}
	}
}

// execute places the order described by intent and records the decision. The
// pair is decided even when placement fails: orders are attempted at most
// once per pair.
func (t *Trader) execute(ctx context.Context, key domain.DecisionKey, env *strategy.Env, intent strategy.Intent, now time.Time) {
	contracts := intent.Contracts
	stake := intent.StakeUSD
	if t.cfg.Live {
		c := math.Floor(contracts)
		if c < 1 {
			c = 1
		}
		contracts = c
		stake = contracts * intent.PriceUSD
	}
	count := int64(contracts)
	if count < 1 {
		count = 1
	}

	orderID, err := t.deps.Orders.PlaceOrder(ctx, key.Ticker, intent.Side, count, intent.PriceUSD)
	if err != nil {
		// At most one placement attempt per pair.
		t.idx.MarkSkipped(key)
		t.logger.Error("order placement failed, pair decided without trade",
			slog.String("strategy", key.Strategy),
			slog.String("ticker", key.Ticker),
			slog.String("error", err.Error()),
		)
		t.notifyf(ctx, notify.EventOrderFailed, "Order failed",
			"%s %s %s: %v", key.Strategy, key.Ticker, intent.Side, err)
		return
	}

	trade := domain.Trade{
		Time:            now,
		Strategy:        key.Strategy,
		PreviousTicker:  env.PrevTicker,
		PreviousContext: intent.Context,
		BuyTicker:       key.Ticker,
		BuySide:         intent.Side,
		StakeUSD:        stake,
		PriceUSD:        intent.PriceUSD,
		Contracts:       contracts,
		OrderID:         orderID,
	}

	if err := t.deps.Ledger.Append(ctx, trade); err != nil {
		// The order is out regardless; keep the trade in memory so the
		// reconciler still settles it this run.
		t.logger.Error("ledger append failed",
			slog.String("strategy", key.Strategy),
			slog.String("ticker", key.Ticker),
			slog.String("error", err.Error()),
		)
	}
	t.trades = append(t.trades, trade)
	t.idx.MarkTraded(trade)

	t.logger.Info("trade placed",
		slog.String("strategy", key.Strategy),
		slog.String("ticker", key.Ticker),
		slog.String("side", string(intent.Side)),
		slog.Float64("stake", stake),
		slog.Float64("price", intent.PriceUSD),
		slog.Float64("contracts", contracts),
		slog.String("order_id", orderID),
		slog.String("context", intent.Context),
	)
	t.publish(ctx, notify.EventTradePlaced, trade)
	t.notifyf(ctx, notify.EventTradePlaced, "Trade placed",
		"%s %s: %s %.2f @ %.2f (%s)", key.Strategy, key.Ticker, intent.Side, stake, intent.PriceUSD, intent.Context)
}

// publish appends an event to the bus stream, when a bus is configured.
func (t *Trader) publish(ctx context.Context, event string, trade domain.Trade) {
	if t.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":    event,
		"time":     trade.Time,
		"strategy": trade.Strategy,
		"ticker":   trade.BuyTicker,
		"side":     trade.BuySide,
		"stake":    trade.StakeUSD,
		"price":    trade.PriceUSD,
		"outcome":  trade.Outcome,
		"profit":   trade.ProfitUSD,
		"order_id": trade.OrderID,
	})
	if err != nil {
		return
	}
	if err := t.deps.Bus.StreamAppend(ctx, eventStream, payload); err != nil {
		t.logger.Warn("event publish failed", slog.String("error", err.Error()))
	}
}

// notifyf sends a formatted notification, when a notifier is configured.
func (t *Trader) notifyf(ctx context.Context, event, title, format string, args ...any) {
	if t.deps.Notifier == nil {
		return
	}
	if err := t.deps.Notifier.Notify(ctx, event, title, fmt.Sprintf(format, args...)); err != nil {
		t.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

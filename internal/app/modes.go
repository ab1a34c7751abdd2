package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/feed"
	"github.com/alanyoungcy/kalshibot/internal/report"
	"github.com/alanyoungcy/kalshibot/internal/risk"
	"github.com/alanyoungcy/kalshibot/internal/settle"
	"github.com/alanyoungcy/kalshibot/internal/signal"
	"github.com/alanyoungcy/kalshibot/internal/strategy"
	"github.com/alanyoungcy/kalshibot/internal/trader"
)

// Momentum lookback windows. The buffer is sized for the longer one.
const (
	momentumWindow   = time.Minute
	momentum15Window = 15 * time.Minute
)

// PaperMode runs the full decision loop against live market data with orders
// routed to the paper executor.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")
	return a.runTrading(ctx, deps, false)
}

// LiveMode verifies exchange credentials, then runs the decision loop with
// real order placement. trading.dry_run keeps the loop live-shaped but routes
// orders to the paper executor.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	balance, err := deps.Kalshi.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("live mode: credential check: %w", err)
	}
	a.logger.InfoContext(ctx, "starting live mode",
		slog.Float64("balance_usd", balance),
		slog.Bool("dry_run", a.cfg.Trading.DryRun),
	)

	return a.runTrading(ctx, deps, !a.cfg.Trading.DryRun)
}

// runTrading assembles the trading loop and blocks until the context is
// cancelled. On exit it prints per-strategy performance to stdout.
func (a *App) runTrading(ctx context.Context, deps *Dependencies, live bool) error {
	poll := a.cfg.Feed.PollInterval.Duration

	buffer := feed.NewPriceBuffer(feed.BufferCap(momentum15Window, poll))
	sampler := feed.NewSampler(deps.Feed, buffer, deps.Spot, a.cfg.Feed.Pair, a.logger)
	signals := signal.NewEngine(deps.Kalshi, buffer, a.cfg.Feed.Pair, a.logger)

	riskMgr := risk.NewManager(risk.Params{
		InitialBankrollUSD: a.cfg.Risk.InitialBankrollUSD,
		RiskPct:            a.cfg.Risk.RiskPct,
		MaxRiskPct:         a.cfg.Risk.MaxRiskPct,
		MaxPrice:           a.cfg.Risk.MaxPrice,
		RollingWindow:      a.cfg.Risk.RollingWindow,
		DailyLossCapR:      a.cfg.Risk.DailyLossCapR,
		WeeklyLossCapR:     a.cfg.Risk.WeeklyLossCapR,
	}, a.logger)

	params := strategy.Params{
		StakeUSD:          a.cfg.Trading.StakeUSD,
		DealMaxPrice:      a.cfg.Trading.DealMaxPrice,
		MaxHedgeBudgetUSD: a.cfg.Trading.MaxHedgeBudgetUSD,
		MomentumWindow:    momentumWindow,
		Momentum15Window:  momentum15Window,
	}
	registry, err := strategy.NewRegistry(params, a.cfg.Trading.Active)
	if err != nil {
		return fmt.Errorf("run trading: %w", err)
	}

	var orders domain.OrderPlacer
	if live {
		orders = deps.Kalshi
	} else {
		orders = executor.NewPaper(a.logger)
	}

	tr := trader.New(
		trader.Config{
			Series:       a.cfg.Series.Ticker,
			PollInterval: poll,
			Live:         live,
		},
		params,
		trader.Deps{
			Markets:    deps.Kalshi,
			Orders:     orders,
			Ledger:     deps.Ledger,
			Sampler:    sampler,
			Tracker:    feed.NewTracker(a.logger),
			Signals:    signals,
			Risk:       riskMgr,
			Registry:   registry,
			Reconciler: settle.NewReconciler(deps.Kalshi, deps.Ledger, a.cfg.Risk.FeePct, a.logger),
			Notifier:   deps.Notifier,
			Bus:        deps.Bus,
			Logger:     a.logger,
		},
	)
	if err := tr.Init(ctx); err != nil {
		return fmt.Errorf("run trading: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if deps.WSFeed != nil {
		g.Go(func() error {
			return deps.WSFeed.Run(ctx)
		})
	}
	if deps.Archiver != nil {
		interval := a.cfg.S3.ArchiveInterval.Duration
		g.Go(func() error {
			return deps.Archiver.Run(ctx, interval)
		})
	}
	g.Go(func() error {
		return tr.Run(ctx)
	})

	err = g.Wait()

	rep := report.Compute(tr.Trades())
	if len(rep.Strategies) > 0 {
		fmt.Fprintln(os.Stdout)
		rep.Render(os.Stdout)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Package settle resolves pending wagers against market settlements.
package settle

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Reconciler scans the ledger for unsettled trades and fills in their
// settlement fields once the bought market reports a result. Each trade is
// settled exactly once; a lookup failure for one trade leaves it pending and
// never aborts the scan.
type Reconciler struct {
	markets domain.MarketAPI
	ledger  domain.TradeLedger
	feePct  float64
	logger  *slog.Logger
}

// NewReconciler creates a reconciler. feePct is the fee fraction charged on
// the stake of risk-managed strategies.
func NewReconciler(markets domain.MarketAPI, ledger domain.TradeLedger, feePct float64, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		markets: markets,
		ledger:  ledger,
		feePct:  feePct,
		logger:  logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile settles every resolvable trade in place and persists each one
// immediately. It returns the trades that settled this pass.
func (r *Reconciler) Reconcile(ctx context.Context, trades []domain.Trade) []domain.Trade {
	var settled []domain.Trade

	for i := range trades {
		t := &trades[i]
		if t.Settled() {
			continue
		}

		m, err := r.markets.GetMarket(ctx, t.BuyTicker)
		if err != nil {
			r.logger.Warn("settlement lookup failed, will retry",
				slog.String("ticker", t.BuyTicker),
				slog.String("strategy", t.Strategy),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !m.Settled() {
			continue
		}

		Apply(t, m.Result, r.feePct)

		if err := r.ledger.Update(ctx, *t); err != nil {
			// Roll the in-memory fields back so the next cycle retries the
			// persist rather than leaving ledger and memory split.
			*t = unsettle(*t)
			r.logger.Error("settlement persist failed, will retry",
				slog.String("ticker", t.BuyTicker),
				slog.String("strategy", t.Strategy),
				slog.String("error", err.Error()),
			)
			continue
		}

		r.logger.Info("trade settled",
			slog.String("ticker", t.BuyTicker),
			slog.String("strategy", t.Strategy),
			slog.String("outcome", string(t.Outcome)),
			slog.Float64("net_profit", t.ProfitUSD),
		)
		settled = append(settled, *t)
	}

	return settled
}

// Apply fills in a trade's settlement fields for the given winning side.
// Payout is one dollar per winning contract; risk-managed strategies pay
// feePct of the stake win or lose.
func Apply(t *domain.Trade, winner domain.Side, feePct float64) {
	if winner == t.BuySide {
		t.Outcome = domain.OutcomeWin
		t.PayoutUSD = t.Contracts
	} else {
		t.Outcome = domain.OutcomeLoss
		t.PayoutUSD = 0
	}
	t.GrossProfitUSD = t.PayoutUSD - t.StakeUSD
	if domain.RiskManaged(t.Strategy) {
		t.FeeUSD = t.StakeUSD * feePct
	} else {
		t.FeeUSD = 0
	}
	t.ProfitUSD = t.GrossProfitUSD - t.FeeUSD
}

// unsettle clears the settlement fields.
func unsettle(t domain.Trade) domain.Trade {
	t.Outcome = domain.OutcomeUnresolved
	t.PayoutUSD = 0
	t.GrossProfitUSD = 0
	t.FeeUSD = 0
	t.ProfitUSD = 0
	return t
}

// Package executor provides order placement backends for the trading loop.
package executor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Paper is an order placer that never touches the exchange. It fabricates an
// order identifier per placement so paper trades are traceable in the ledger
// the same way live ones are.
type Paper struct {
	logger *slog.Logger
}

var _ domain.OrderPlacer = (*Paper)(nil)

// NewPaper creates a paper order placer.
func NewPaper(logger *slog.Logger) *Paper {
	return &Paper{
		logger: logger.With(slog.String("component", "paper_executor")),
	}
}

// PlaceOrder pretends the order filled immediately at the requested price.
func (p *Paper) PlaceOrder(ctx context.Context, ticker string, side domain.Side, count int64, priceUSD float64) (string, error) {
	orderID := "PAPER-" + uuid.NewString()
	p.logger.Info("paper order filled",
		slog.String("ticker", ticker),
		slog.String("side", string(side)),
		slog.Int64("count", count),
		slog.Float64("price", priceUSD),
		slog.String("order_id", orderID),
	)
	return orderID, nil
}

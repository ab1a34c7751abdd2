package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// LedgerStore implements domain.TradeLedger on a trades table. Each wager is
// one row keyed by (strategy, buy_ticker); settlement rewrites the row.
type LedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeLedger = (*LedgerStore)(nil)

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const ledgerCols = `time, strategy, prev_ticker, prev_context, buy_ticker, buy_side,
	stake_usd, price_usd, contracts, fee_usd, gross_profit_usd,
	outcome, payout_usd, profit_usd, order_id`

// Load returns all recorded trades in insertion order.
func (s *LedgerStore) Load(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerCols+` FROM trades ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load ledger: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.Time, &t.Strategy, &t.PreviousTicker, &t.PreviousContext,
			&t.BuyTicker, &t.BuySide,
			&t.StakeUSD, &t.PriceUSD, &t.Contracts, &t.FeeUSD, &t.GrossProfitUSD,
			&t.Outcome, &t.PayoutUSD, &t.ProfitUSD, &t.OrderID,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read ledger rows: %w", err)
	}
	return trades, nil
}

// Append records a new trade.
func (s *LedgerStore) Append(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (` + ledgerCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		t.Time, t.Strategy, t.PreviousTicker, t.PreviousContext,
		t.BuyTicker, t.BuySide,
		t.StakeUSD, t.PriceUSD, t.Contracts, t.FeeUSD, t.GrossProfitUSD,
		t.Outcome, t.PayoutUSD, t.ProfitUSD, t.OrderID,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s/%s: %w", t.Strategy, t.BuyTicker, err)
	}
	return nil
}

// Update rewrites the trade identified by (Strategy, BuyTicker). It returns
// domain.ErrNotFound when no such trade exists.
func (s *LedgerStore) Update(ctx context.Context, t domain.Trade) error {
	const query = `
		UPDATE trades SET
			time = $3, prev_ticker = $4, prev_context = $5, buy_side = $6,
			stake_usd = $7, price_usd = $8, contracts = $9, fee_usd = $10,
			gross_profit_usd = $11, outcome = $12, payout_usd = $13,
			profit_usd = $14, order_id = $15
		WHERE strategy = $1 AND buy_ticker = $2`

	tag, err := s.pool.Exec(ctx, query,
		t.Strategy, t.BuyTicker,
		t.Time, t.PreviousTicker, t.PreviousContext, t.BuySide,
		t.StakeUSD, t.PriceUSD, t.Contracts, t.FeeUSD,
		t.GrossProfitUSD, t.Outcome, t.PayoutUSD,
		t.ProfitUSD, t.OrderID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s/%s: %w", t.Strategy, t.BuyTicker, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update %s/%s: %w", t.Strategy, t.BuyTicker, domain.ErrNotFound)
	}
	return nil
}

// Close is a no-op; the pool is owned and closed by the Client.
func (s *LedgerStore) Close() error {
	return nil
}

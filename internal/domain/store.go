package domain

import (
	"context"
	"time"
)

// TradeLedger is the durable record of every wager and its eventual outcome.
// The ledger has a single writer; implementations persist the full trade set
// on every mutation (atomic file swap or transactional upsert).
type TradeLedger interface {
	// Load returns all recorded trades in insertion order.
	Load(ctx context.Context) ([]Trade, error)
	// Append records a new trade.
	Append(ctx context.Context, t Trade) error
	// Update rewrites the trade identified by (Strategy, BuyTicker).
	Update(ctx context.Context, t Trade) error
	Close() error
}

// MarketAPI is the exchange collaborator consumed by the core loop.
type MarketAPI interface {
	// ListOpenMarkets returns the open markets for a series.
	ListOpenMarkets(ctx context.Context, series string) ([]Market, error)
	// GetMarket returns a single market, including its settlement side once
	// the market has settled.
	GetMarket(ctx context.Context, ticker string) (Market, error)
}

// PriceFeed is the external reference-price collaborator.
type PriceFeed interface {
	// GetSpotPrice returns the current spot price in dollars.
	GetSpotPrice(ctx context.Context) (float64, error)
}

// OrderPlacer submits buy orders to the exchange. Paper trading uses an
// implementation that fabricates order IDs without touching the exchange.
type OrderPlacer interface {
	// PlaceOrder buys count contracts of side at priceUSD per contract and
	// returns the exchange order identifier.
	PlaceOrder(ctx context.Context, ticker string, side Side, count int64, priceUSD float64) (string, error)
}

// SpotCache mirrors the latest spot price for external consumers.
type SpotCache interface {
	SetSpot(ctx context.Context, pair string, price float64, ts time.Time) error
	GetSpot(ctx context.Context, pair string) (float64, time.Time, error)
}

// EventBus publishes bot events (decisions, settlements) to a durable stream.
type EventBus interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Archiver snapshots settled ledger rows to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, now time.Time) (string, error)
}

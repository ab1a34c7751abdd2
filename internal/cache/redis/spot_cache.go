package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// SpotCache implements domain.SpotCache using Redis hashes. Each pair's spot
// price is stored at key "spot:{pair}" with fields "price" and "ts" (Unix
// nanosecond timestamp), so dashboards and other processes can read the
// bot's latest reference price.
type SpotCache struct {
	rdb *redis.Client
}

// NewSpotCache creates a SpotCache backed by the given Client.
func NewSpotCache(c *Client) *SpotCache {
	return &SpotCache{rdb: c.Underlying()}
}

func spotKey(pair string) string {
	return "spot:" + pair
}

// SetSpot stores the latest spot price and sample time for a pair.
func (sc *SpotCache) SetSpot(ctx context.Context, pair string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := sc.rdb.HSet(ctx, spotKey(pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: set spot %s: %w", pair, err)
	}
	return nil
}

// GetSpot retrieves the latest spot price and sample time for a pair.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *SpotCache) GetSpot(ctx context.Context, pair string) (float64, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, spotKey(pair)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get spot %s: %w", pair, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse spot price %s: %w", pair, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse spot ts %s: %w", pair, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.SpotCache = (*SpotCache)(nil)

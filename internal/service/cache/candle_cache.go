// Package cache holds the candle window cache sitting between the HTTP
// candle feed and ClickHouse.
package cache

import (
	"context"
	"fmt"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	pkgcache "CandleScope/pkg/cache"
)

// Per-timeframe cache TTLs: short frames churn faster and go stale sooner.
var defaultTTLs = map[drepo.Timeframe]time.Duration{
	drepo.TF1m:  6 * time.Hour,
	drepo.TF5m:  12 * time.Hour,
	drepo.TF15m: 24 * time.Hour,
	drepo.TF30m: 24 * time.Hour,
	drepo.TF1h:  3 * 24 * time.Hour,
	drepo.TF4h:  7 * 24 * time.Hour,
	drepo.TF1d:  14 * 24 * time.Hour,
}

// Per-timeframe caps on how many candles one entry may hold.
var defaultMaxCandles = map[drepo.Timeframe]int{
	drepo.TF1m:  1440, // one day of minutes
	drepo.TF5m:  2016, // one week
	drepo.TF15m: 672,
	drepo.TF30m: 336,
	drepo.TF1h:  720, // one month
	drepo.TF4h:  360,
	drepo.TF1d:  365, // one year
}

// CandleCache caches the latest descending candle window per symbol and
// timeframe on top of a cache.Service backend (memory, redis or layered).
type CandleCache struct {
	backend pkgcache.Service
	ttls    map[drepo.Timeframe]time.Duration
	limits  map[drepo.Timeframe]int
}

func NewCandleCache(backend pkgcache.Service) *CandleCache {
	return &CandleCache{backend: backend, ttls: defaultTTLs, limits: defaultMaxCandles}
}

func key(symbol string, tf drepo.Timeframe) string {
	return pkgcache.GenerateKeyWithParams("candles", symbol, string(tf))
}

// Get returns the cached window, or false on a miss. The caller trims to
// its own limit; the cache stores the widest window it is allowed to.
func (c *CandleCache) Get(ctx context.Context, symbol string, tf drepo.Timeframe) ([]models.Candle, bool) {
	var candles []models.Candle
	if err := c.backend.Get(ctx, key(symbol, tf), &candles); err != nil {
		return nil, false
	}
	return candles, true
}

// Set stores the descending candle window, capped at the timeframe limit.
func (c *CandleCache) Set(ctx context.Context, symbol string, tf drepo.Timeframe, candles []models.Candle) error {
	if max := c.limits[tf]; max > 0 && len(candles) > max {
		candles = candles[:max]
	}
	if err := c.backend.Set(ctx, key(symbol, tf), candles, c.ttls[tf]); err != nil {
		return fmt.Errorf("cache candles %s %s: %w", symbol, tf, err)
	}
	return nil
}

// Invalidate drops the cached window for symbol/tf.
func (c *CandleCache) Invalidate(ctx context.Context, symbol string, tf drepo.Timeframe) {
	_ = c.backend.Delete(ctx, key(symbol, tf))
}

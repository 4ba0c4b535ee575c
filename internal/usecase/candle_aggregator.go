package usecase

import (
	"context"
	"sync"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	applogger "CandleScope/pkg/logger"
	"CandleScope/pkg/util"
)

// CacheInvalidator drops cached candle pages after a flush; nil disables it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, symbol string, tf drepo.Timeframe)
}

type bucketKey struct {
	symbol string
	start  int64 // unix seconds of bucket start
}

type acc struct {
	open, high, low, close float64
	volume                 float64
	filled                 bool
}

// CandleAggregator folds ticks into one forming candle per symbol and
// timeframe. A bucket closes once a tick lands past its end; closed buckets
// are persisted and the per-symbol cache entry dropped so readers see
// the new candle on the next fetch.
type CandleAggregator struct {
	store   drepo.CandleStore
	cache   CacheInvalidator
	metrics drepo.Metrics
	log     *applogger.Logger

	mu      sync.Mutex
	forming map[drepo.Timeframe]map[bucketKey]*acc
}

// NewCandleAggregator creates an aggregator over all supported timeframes.
func NewCandleAggregator(store drepo.CandleStore, cache CacheInvalidator, metrics drepo.Metrics, log *applogger.Logger) *CandleAggregator {
	if log == nil {
		log = applogger.Nop()
	}
	forming := make(map[drepo.Timeframe]map[bucketKey]*acc, len(drepo.AllTimeframes()))
	for _, tf := range drepo.AllTimeframes() {
		forming[tf] = make(map[bucketKey]*acc)
	}
	return &CandleAggregator{store: store, cache: cache, metrics: metrics, log: log, forming: forming}
}

// Add folds one tick into every timeframe bucket and flushes buckets the
// tick has moved past.
func (a *CandleAggregator) Add(ctx context.Context, t *models.Tick) error {
	a.mu.Lock()
	closed := a.addLocked(t)
	a.mu.Unlock()

	return a.flush(ctx, closed)
}

type closedBucket struct {
	tf     drepo.Timeframe
	candle *models.Candle
}

func (a *CandleAggregator) addLocked(t *models.Tick) []closedBucket {
	var closed []closedBucket
	ts := time.Unix(t.Timestamp, 0).UTC()

	for _, tf := range drepo.AllTimeframes() {
		d := tf.Duration()
		start := util.BucketStart(ts, string(tf))
		key := bucketKey{symbol: t.Symbol, start: start.Unix()}
		buckets := a.forming[tf]

		// A tick past a forming bucket's end closes that bucket.
		for k, c := range buckets {
			if k.symbol == t.Symbol && k.start+int64(d.Seconds()) <= t.Timestamp {
				closed = append(closed, closedBucket{tf: tf, candle: a.toCandle(k, c)})
				delete(buckets, k)
			}
		}

		c, ok := buckets[key]
		if !ok {
			c = &acc{}
			buckets[key] = c
		}
		if !c.filled {
			c.open, c.high, c.low = t.Price, t.Price, t.Price
			c.filled = true
		}
		if t.Price > c.high {
			c.high = t.Price
		}
		if t.Price < c.low {
			c.low = t.Price
		}
		c.close = t.Price
		c.volume += t.Volume
	}
	return closed
}

func (a *CandleAggregator) toCandle(k bucketKey, c *acc) *models.Candle {
	return &models.Candle{
		Symbol:    k.symbol,
		Timestamp: time.Unix(k.start, 0).UTC(),
		Open:      c.open,
		High:      c.high,
		Low:       c.low,
		Close:     c.close,
		Volume:    c.volume,
	}
}

func (a *CandleAggregator) flush(ctx context.Context, closed []closedBucket) error {
	var firstErr error
	for _, cb := range closed {
		start := time.Now()
		if err := a.store.Store(ctx, cb.tf, cb.candle); err != nil {
			a.metrics.RecordError("aggregator_store")
			a.log.Error("candle flush failed",
				applogger.String("symbol", cb.candle.Symbol),
				applogger.String("tf", string(cb.tf)),
				applogger.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		a.metrics.RecordLatency("candle_flush", time.Since(start).Seconds())
		if a.cache != nil {
			a.cache.Invalidate(ctx, cb.candle.Symbol, cb.tf)
		}
	}
	return firstErr
}

// Forming returns a copy of the in-progress candle for symbol/tf, newest
// bucket only, or false when no tick has arrived in the current bucket.
func (a *CandleAggregator) Forming(symbol string, tf drepo.Timeframe) (models.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var best *models.Candle
	for k, c := range a.forming[tf] {
		if k.symbol != symbol {
			continue
		}
		cand := a.toCandle(k, c)
		if best == nil || cand.Timestamp.After(best.Timestamp) {
			best = cand
		}
	}
	if best == nil {
		return models.Candle{}, false
	}
	return *best, true
}

// FlushAll persists every forming bucket, used at shutdown so partial
// candles are not lost.
func (a *CandleAggregator) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	var closed []closedBucket
	for tf, buckets := range a.forming {
		for k, c := range buckets {
			closed = append(closed, closedBucket{tf: tf, candle: a.toCandle(k, c)})
			delete(buckets, k)
		}
	}
	a.mu.Unlock()

	return a.flush(ctx, closed)
}

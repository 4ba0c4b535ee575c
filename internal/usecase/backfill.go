package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	"CandleScope/pkg/logger"
	"CandleScope/pkg/queue"
)

const backfillJobType = "backfill.range"

// BarsFetcher fetches historical candles from the upstream REST API.
type BarsFetcher interface {
	Fetch(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time) ([]*models.Candle, error)
}

// BackfillRange is the payload of one backfill job: a single symbol,
// timeframe and time window small enough to fetch in one pass.
type BackfillRange struct {
	Symbol string          `json:"symbol"`
	TF     drepo.Timeframe `json:"tf"`
	FromTS int64           `json:"from_ts"`
	ToTS   int64           `json:"to_ts"`
}

// BackfillJob pulls a candle range from the bars API and persists it.
// Registered on the redis queue so failed ranges retry with backoff
// instead of dropping a hole in history.
type BackfillJob struct {
	fetcher BarsFetcher
	store   drepo.CandleStore
	cache   CacheInvalidator
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewBackfillJob(fetcher BarsFetcher, store drepo.CandleStore, cache CacheInvalidator, metrics drepo.Metrics, log *logger.Logger) *BackfillJob {
	if log == nil {
		log = logger.Nop()
	}
	return &BackfillJob{fetcher: fetcher, store: store, cache: cache, metrics: metrics, log: log}
}

func (j *BackfillJob) Name() string { return "backfill-range" }
func (j *BackfillJob) Type() string { return backfillJobType }

func (j *BackfillJob) Handle(ctx context.Context, payload interface{}) error {
	rng, err := queue.ParsePayload[BackfillRange](payload)
	if err != nil {
		return fmt.Errorf("parse backfill payload: %w", err)
	}

	from := time.Unix(rng.FromTS, 0).UTC()
	to := time.Unix(rng.ToTS, 0).UTC()

	start := time.Now()
	candles, err := j.fetcher.Fetch(ctx, rng.Symbol, rng.TF, from, to)
	if err != nil {
		if j.metrics != nil {
			j.metrics.RecordError("backfill_fetch")
		}
		return fmt.Errorf("fetch %s %s [%s, %s]: %w", rng.Symbol, rng.TF, from, to, err)
	}
	if len(candles) == 0 {
		j.log.Debug("backfill range empty",
			logger.String("symbol", rng.Symbol),
			logger.String("tf", string(rng.TF)),
		)
		return nil
	}

	if err := j.store.StoreBatch(ctx, rng.TF, candles); err != nil {
		if j.metrics != nil {
			j.metrics.RecordError("backfill_store")
		}
		return fmt.Errorf("store %s %s: %w", rng.Symbol, rng.TF, err)
	}
	if j.cache != nil {
		j.cache.Invalidate(ctx, rng.Symbol, rng.TF)
	}
	if j.metrics != nil {
		j.metrics.RecordLatency("backfill_range", time.Since(start).Seconds())
	}

	j.log.Info("backfill range stored",
		logger.String("symbol", rng.Symbol),
		logger.String("tf", string(rng.TF)),
		logger.Int("candles", len(candles)),
	)
	return nil
}

var _ queue.Job = (*BackfillJob)(nil)

// RangeLocker deduplicates concurrently scheduled ranges; nil disables it.
type RangeLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// BackfillCoordinator splits a lookback window into chunked ranges and
// enqueues them for the worker pool. An optional locker skips ranges some
// other instance already scheduled.
type BackfillCoordinator struct {
	queue       queue.QueueService
	locker      RangeLocker
	chunk       time.Duration
	lookbackMax time.Duration
	log         *logger.Logger
}

func NewBackfillCoordinator(q queue.QueueService, locker RangeLocker, chunkDays int, lookbackMax time.Duration, log *logger.Logger) *BackfillCoordinator {
	if chunkDays <= 0 {
		chunkDays = 7
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BackfillCoordinator{
		queue:       q,
		locker:      locker,
		chunk:       time.Duration(chunkDays) * 24 * time.Hour,
		lookbackMax: lookbackMax,
		log:         log,
	}
}

// Enqueue schedules backfill for symbol over [from, to] across the given
// timeframes. The window is clamped to the configured maximum lookback.
func (c *BackfillCoordinator) Enqueue(ctx context.Context, symbol string, tfs []drepo.Timeframe, from, to time.Time) error {
	if !to.After(from) {
		return fmt.Errorf("invalid backfill window: from %s, to %s", from, to)
	}
	if c.lookbackMax > 0 && to.Sub(from) > c.lookbackMax {
		from = to.Add(-c.lookbackMax)
	}

	chunks := 0
	for _, tf := range tfs {
		for cur := from; cur.Before(to); cur = cur.Add(c.chunk) {
			end := cur.Add(c.chunk)
			if end.After(to) {
				end = to
			}
			rng := BackfillRange{
				Symbol: symbol,
				TF:     tf,
				FromTS: cur.Unix(),
				ToTS:   end.Unix(),
			}
			if !c.acquire(ctx, rng) {
				continue
			}
			if err := c.queue.PublishMessage(ctx, backfillJobType, rng); err != nil {
				return fmt.Errorf("enqueue backfill %s %s: %w", symbol, tf, err)
			}
			chunks++
		}
	}

	c.log.Info("backfill enqueued",
		logger.String("symbol", symbol),
		logger.Int("timeframes", len(tfs)),
		logger.Int("chunks", chunks),
	)
	return nil
}

// acquire takes the dedupe lock for one range. Lock failures only skip the
// range; errors from the locker are treated as "not held" so a broken redis
// never blocks scheduling.
func (c *BackfillCoordinator) acquire(ctx context.Context, rng BackfillRange) bool {
	if c.locker == nil {
		return true
	}
	key := fmt.Sprintf("backfill:%s:%s:%d:%d", rng.Symbol, rng.TF, rng.FromTS, rng.ToTS)
	ok, err := c.locker.TryLock(ctx, key, time.Hour)
	if err != nil {
		c.log.Warn("backfill lock error", logger.String("key", key), logger.Error(err))
		return true
	}
	return ok
}

package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/service/cache"
	applogger "CandleScope/pkg/logger"
)

// FormingSource exposes the in-progress candle from the live aggregator.
type FormingSource interface {
	Forming(symbol string, tf drepo.Timeframe) (models.Candle, bool)
}

// CandlesUseCase serves descending candle pages. The newest page goes
// through the per-timeframe cache and is merged with the forming candle so
// the chart sees live movement between bucket closes.
type CandlesUseCase struct {
	store   drepo.CandleStore
	cache   *cache.CandleCache
	forming FormingSource
	metrics drepo.Metrics
	log     *applogger.Logger
}

func NewCandlesUseCase(store drepo.CandleStore, cc *cache.CandleCache, forming FormingSource, metrics drepo.Metrics, log *applogger.Logger) *CandlesUseCase {
	if log == nil {
		log = applogger.Nop()
	}
	return &CandlesUseCase{store: store, cache: cc, forming: forming, metrics: metrics, log: log}
}

// Latest returns up to limit candles for symbol/tf, newest first, with the
// current forming candle merged on top when one exists.
func (uc *CandlesUseCase) Latest(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit <= 0 {
		limit = 500
	}

	candles, err := uc.latestStored(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	candles = uc.mergeForming(symbol, tf, candles)
	if len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

// Page returns one page of the candle feed. An empty cursor means the
// newest page; otherwise cursor is the unix timestamp of the oldest candle
// already held by the client and the page continues strictly before it.
func (uc *CandlesUseCase) Page(ctx context.Context, symbol string, tf drepo.Timeframe, cursor string, limit int) (*models.CandlePage, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit <= 0 {
		limit = 500
	}

	var (
		candles []models.Candle
		err     error
	)
	if cursor == "" {
		candles, err = uc.Latest(ctx, symbol, tf, limit+1)
	} else {
		var ts int64
		ts, err = strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		candles, err = uc.store.Page(ctx, symbol, tf, time.Unix(ts, 0).UTC(), limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("candle page %s %s: %w", symbol, tf, err)
	}

	page := &models.CandlePage{}
	if len(candles) > limit {
		candles = candles[:limit]
		page.HasMore = true
	}
	page.Candles = candles
	if page.HasMore && len(candles) > 0 {
		oldest := candles[len(candles)-1]
		page.NextCursor = strconv.FormatInt(oldest.Timestamp.Unix(), 10)
	}
	return page, nil
}

// latestStored reads the newest window through the cache, falling back to
// the store on a miss and repopulating.
func (uc *CandlesUseCase) latestStored(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	if uc.cache != nil {
		if cached, ok := uc.cache.Get(ctx, symbol, tf); ok && len(cached) >= limit {
			if uc.metrics != nil {
				uc.metrics.RecordCacheEvent("candles", true)
			}
			return append([]models.Candle(nil), cached[:min(limit, len(cached))]...), nil
		}
		if uc.metrics != nil {
			uc.metrics.RecordCacheEvent("candles", false)
		}
	}

	candles, err := uc.store.LatestN(ctx, symbol, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("latest candles %s %s: %w", symbol, tf, err)
	}
	if uc.cache != nil && len(candles) > 0 {
		if err := uc.cache.Set(ctx, symbol, tf, candles); err != nil {
			uc.log.Warn("candle cache set failed",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		// The cached window shares this backing array; hand the caller a
		// copy so the forming overlay never leaks into the cache.
		candles = append([]models.Candle(nil), candles...)
	}
	return candles, nil
}

// mergeForming overlays the aggregator's in-progress candle onto the
// descending window: replacing the head when the bucket matches, otherwise
// prepending it as the newest entry.
func (uc *CandlesUseCase) mergeForming(symbol string, tf drepo.Timeframe, candles []models.Candle) []models.Candle {
	if uc.forming == nil {
		return candles
	}
	f, ok := uc.forming.Forming(symbol, tf)
	if !ok {
		return candles
	}
	if len(candles) > 0 {
		head := candles[0]
		if head.Timestamp.Equal(f.Timestamp) {
			candles[0] = f
			return candles
		}
		if head.Timestamp.After(f.Timestamp) {
			return candles
		}
	}
	return append([]models.Candle{f}, candles...)
}

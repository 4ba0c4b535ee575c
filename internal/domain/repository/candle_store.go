package repository

import (
	"context"
	"time"

	"CandleScope/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// CandleStore persists aggregated candles and serves the descending feed.
type CandleStore interface {
	Init(ctx context.Context) error

	Store(ctx context.Context, tf Timeframe, c *models.Candle) error
	StoreBatch(ctx context.Context, tf Timeframe, candles []*models.Candle) error

	// LatestN returns up to n candles for symbol/tf, newest first.
	LatestN(ctx context.Context, symbol string, tf Timeframe, n int) ([]models.Candle, error)
	// Page returns up to limit candles strictly older than before, newest
	// first. A zero before means "from the latest".
	Page(ctx context.Context, symbol string, tf Timeframe, before time.Time, limit int) ([]models.Candle, error)

	Health(ctx context.Context) error
	Close() error
}

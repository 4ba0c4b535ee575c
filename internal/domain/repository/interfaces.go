package repository

import (
	"context"

	"CandleScope/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

type Metrics interface {
	RecordTickIngested(source, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordCacheEvent(cache string, hit bool)
	RecordBufferRecompute(reason string)
}

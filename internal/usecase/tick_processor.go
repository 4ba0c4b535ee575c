package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
)

// TickProcessor routes validated ticks to the configured backend: either
// publishing to Kafka for the consumer side to aggregate, or feeding the
// in-process aggregator directly.
type TickProcessor struct {
	pub     drepo.Publisher
	agg     *CandleAggregator
	metrics drepo.Metrics
	backend string
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(pub drepo.Publisher, agg *CandleAggregator, metrics drepo.Metrics, backend string) *TickProcessor {
	return &TickProcessor{pub: pub, agg: agg, metrics: metrics, backend: backend}
}

// Process routes a single tick to the configured backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, t)
	case "inline":
		err = p.agg.Add(ctx, t)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch routes multiple ticks in a batch.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, ticks)
	case "inline":
		for _, t := range ticks {
			if e := p.agg.Add(ctx, t); e != nil {
				err = e
				break
			}
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}

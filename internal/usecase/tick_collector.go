package usecase

import (
	"context"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	mid "CandleScope/internal/middleware"
)

// TickCollector reads ticks from the market stream and feeds them through
// the pipeline into the processor.
type TickCollector struct {
	stream  drepo.MarketStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.TickPipeline
	source  string
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream drepo.MarketStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.TickPipeline) *TickCollector {
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, source: "stream"}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
			c.metrics.RecordTickIngested(c.source, t.Symbol)
			c.metrics.RecordLastPrice(t.Symbol, t.Price)
		}
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}

package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CandleScope/internal/domain/models"
	domrepo "CandleScope/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between the market stream and the downstream processor.
// It validates, throttles per symbol, optionally transforms, and buffers
// ticks when downstream is unavailable.
type TickPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Tick
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time

	transform func(*models.Tick) *models.Tick
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS sets the max ticks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook applied to every accepted tick.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *TickPipeline) { p.transform = fn }
}

// NewTickPipeline creates a new pipeline.
func NewTickPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Tick, p.bufSize)
	return p
}

// Start launches background flushing of buffered ticks.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case t := <-p.bufCh:
				if t == nil {
					continue
				}
				if err := p.proc.Process(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the tick, buffering on errors.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(t.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price < 0 || t.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

func (p *TickPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}

package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
)

type recordingProc struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (p *recordingProc) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ticks)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordTickIngested(string, string) {}
func (m *countingMetrics) RecordLastPrice(string, float64)   {}
func (m *countingMetrics) RecordLatency(string, float64)     {}
func (m *countingMetrics) RecordCacheEvent(string, bool)     {}
func (m *countingMetrics) RecordBufferRecompute(string)      {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validTick(symbol string) *models.Tick {
	return &models.Tick{Symbol: symbol, Timestamp: time.Now().Unix(), Price: 100, Volume: 1}
}

func TestPipelineForwardsValidTick(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), validTick("AAPL")))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewTickPipeline(proc, m)

	cases := []*models.Tick{
		nil,
		{Symbol: "", Timestamp: 1, Price: 1, Volume: 1},
		{Symbol: "AAPL", Timestamp: 0, Price: 1, Volume: 1},
		{Symbol: "AAPL", Timestamp: 1, Price: -1, Volume: 1},
	}
	for _, tc := range cases {
		assert.Error(t, p.Process(context.Background(), tc))
	}
	assert.Equal(t, 0, proc.count())
	assert.Equal(t, len(cases), m.errorCount("pipeline_validate"))
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewTickPipeline(proc, m, WithMaxRPS(1))

	require.NoError(t, p.Process(context.Background(), validTick("AAPL")))
	require.NoError(t, p.Process(context.Background(), validTick("AAPL")))
	require.NoError(t, p.Process(context.Background(), validTick("TSLA")))

	assert.Equal(t, 2, proc.count(), "second AAPL tick inside the window is dropped")
	assert.Equal(t, 1, m.errorCount("pipeline_throttle"))
}

func TestPipelineAppliesTransform(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, newCountingMetrics(), WithTransform(func(t *models.Tick) *models.Tick {
		out := *t
		out.Price = out.Price * 2
		return &out
	}))

	require.NoError(t, p.Process(context.Background(), validTick("AAPL")))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, 200.0, proc.ticks[0].Price)
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: fmt.Errorf("kafka down")}
	m := newCountingMetrics()
	p := NewTickPipeline(proc, m, WithBufferSize(4))

	err := p.Process(context.Background(), validTick("AAPL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka down")
	assert.Equal(t, 1, m.errorCount("pipeline_process"))
	assert.Len(t, p.bufCh, 1)
}

func TestPipelineFlushRetriesBufferedTicks(t *testing.T) {
	proc := &recordingProc{err: fmt.Errorf("kafka down")}
	m := newCountingMetrics()
	p := NewTickPipeline(proc, m, WithBufferSize(4))

	_ = p.Process(context.Background(), validTick("AAPL"))

	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 10*time.Millisecond)
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
)

type nopMetrics struct{}

func (nopMetrics) RecordTickIngested(string, string)  {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLastPrice(string, float64)    {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) RecordCacheEvent(string, bool)      {}
func (nopMetrics) RecordBufferRecompute(string)       {}

type fakeCandleStore struct {
	mu          sync.Mutex
	stored      map[drepo.Timeframe][]*models.Candle
	latest      []models.Candle
	page        []models.Candle
	latestCalls int
	storeErr    error
}

func newFakeCandleStore() *fakeCandleStore {
	return &fakeCandleStore{stored: make(map[drepo.Timeframe][]*models.Candle)}
}

func (s *fakeCandleStore) Init(context.Context) error { return nil }

func (s *fakeCandleStore) Store(_ context.Context, tf drepo.Timeframe, c *models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored[tf] = append(s.stored[tf], c)
	return nil
}

func (s *fakeCandleStore) StoreBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error {
	for _, c := range candles {
		if err := s.Store(ctx, tf, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeCandleStore) LatestN(_ context.Context, _ string, _ drepo.Timeframe, n int) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestCalls++
	if n > len(s.latest) {
		n = len(s.latest)
	}
	return append([]models.Candle(nil), s.latest[:n]...), nil
}

func (s *fakeCandleStore) Page(_ context.Context, _ string, _ drepo.Timeframe, _ time.Time, limit int) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.page) {
		limit = len(s.page)
	}
	return append([]models.Candle(nil), s.page[:limit]...), nil
}

func (s *fakeCandleStore) Health(context.Context) error { return nil }
func (s *fakeCandleStore) Close() error                 { return nil }

func (s *fakeCandleStore) storedFor(tf drepo.Timeframe) []*models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Candle(nil), s.stored[tf]...)
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, symbol string, tf drepo.Timeframe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s/%s", symbol, tf))
}

func tick(symbol string, ts time.Time, price, volume float64) *models.Tick {
	return &models.Tick{Symbol: symbol, Timestamp: ts.Unix(), Price: price, Volume: volume}
}

func TestAggregatorFoldsTicksIntoFormingBucket(t *testing.T) {
	store := newFakeCandleStore()
	agg := NewCandleAggregator(store, nil, nopMetrics{}, nil)

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(5*time.Second), 100, 2)))
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(30*time.Second), 105, 1)))
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(45*time.Second), 98, 3)))

	forming, ok := agg.Forming("AAPL", drepo.TF1m)
	require.True(t, ok)
	assert.Equal(t, base, forming.Timestamp)
	assert.Equal(t, 100.0, forming.Open)
	assert.Equal(t, 105.0, forming.High)
	assert.Equal(t, 98.0, forming.Low)
	assert.Equal(t, 98.0, forming.Close)
	assert.Equal(t, 6.0, forming.Volume)

	assert.Empty(t, store.storedFor(drepo.TF1m))
}

func TestAggregatorClosesBucketWhenTickMovesPast(t *testing.T) {
	store := newFakeCandleStore()
	inv := &fakeInvalidator{}
	agg := NewCandleAggregator(store, inv, nopMetrics{}, nil)

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(10*time.Second), 100, 1)))
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(70*time.Second), 101, 1)))

	stored := store.storedFor(drepo.TF1m)
	require.Len(t, stored, 1)
	assert.Equal(t, base, stored[0].Timestamp)
	assert.Equal(t, 100.0, stored[0].Close)

	// the wider buckets still contain both ticks and stay open
	assert.Empty(t, store.storedFor(drepo.TF5m))
	assert.Contains(t, inv.calls, "AAPL/1m")

	forming, ok := agg.Forming("AAPL", drepo.TF1m)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), forming.Timestamp)
	assert.Equal(t, 101.0, forming.Open)
}

func TestAggregatorKeepsSymbolsSeparate(t *testing.T) {
	store := newFakeCandleStore()
	agg := NewCandleAggregator(store, nil, nopMetrics{}, nil)

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base, 100, 1)))
	require.NoError(t, agg.Add(context.Background(), tick("TSLA", base, 250, 1)))
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base.Add(90*time.Second), 102, 1)))

	stored := store.storedFor(drepo.TF1m)
	require.Len(t, stored, 1)
	assert.Equal(t, "AAPL", stored[0].Symbol)

	forming, ok := agg.Forming("TSLA", drepo.TF1m)
	require.True(t, ok)
	assert.Equal(t, 250.0, forming.Close)
}

func TestAggregatorFlushAllPersistsFormingBuckets(t *testing.T) {
	store := newFakeCandleStore()
	agg := NewCandleAggregator(store, nil, nopMetrics{}, nil)

	base := time.Date(2024, 1, 2, 10, 0, 30, 0, time.UTC)
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base, 100, 1)))

	require.NoError(t, agg.FlushAll(context.Background()))

	for _, tf := range drepo.AllTimeframes() {
		stored := store.storedFor(tf)
		require.Len(t, stored, 1, "tf %s", tf)
		assert.Equal(t, 100.0, stored[0].Close)
	}

	_, ok := agg.Forming("AAPL", drepo.TF1m)
	assert.False(t, ok)
}

func TestAggregatorStoreErrorSurfacesButKeepsGoing(t *testing.T) {
	store := newFakeCandleStore()
	store.storeErr = fmt.Errorf("clickhouse down")
	agg := NewCandleAggregator(store, nil, nopMetrics{}, nil)

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, agg.Add(context.Background(), tick("AAPL", base, 100, 1)))
	err := agg.Add(context.Background(), tick("AAPL", base.Add(2*time.Minute), 101, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse down")
}

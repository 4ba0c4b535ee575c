package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
)

type fakeFetcher struct {
	candles []*models.Candle
	err     error
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, symbol string, tf drepo.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%d/%d", symbol, tf, from.Unix(), to.Unix()))
	return f.candles, f.err
}

type fakeQueue struct {
	published []BackfillRange
}

func (q *fakeQueue) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	rng, ok := payload.(BackfillRange)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	q.published = append(q.published, rng)
	return nil
}

func TestBackfillJobStoresFetchedRange(t *testing.T) {
	store := newFakeCandleStore()
	inv := &fakeInvalidator{}
	fetcher := &fakeFetcher{candles: []*models.Candle{
		{Symbol: "AAPL", Timestamp: time.Unix(1700000000, 0).UTC(), Close: 100},
		{Symbol: "AAPL", Timestamp: time.Unix(1700000060, 0).UTC(), Close: 101},
	}}
	job := NewBackfillJob(fetcher, store, inv, nopMetrics{}, nil)

	payload := BackfillRange{Symbol: "AAPL", TF: drepo.TF1m, FromTS: 1700000000, ToTS: 1700000120}
	require.NoError(t, job.Handle(context.Background(), payload))

	assert.Len(t, store.storedFor(drepo.TF1m), 2)
	assert.Contains(t, inv.calls, "AAPL/1m")
}

func TestBackfillJobDecodesQueuePayload(t *testing.T) {
	store := newFakeCandleStore()
	fetcher := &fakeFetcher{}
	job := NewBackfillJob(fetcher, store, nil, nopMetrics{}, nil)

	raw, err := json.Marshal(BackfillRange{Symbol: "TSLA", TF: drepo.TF1h, FromTS: 1700000000, ToTS: 1700003600})
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.NoError(t, job.Handle(context.Background(), generic))

	require.Len(t, fetcher.calls, 1)
	assert.Contains(t, fetcher.calls[0], "TSLA/1h")
}

func TestBackfillJobPropagatesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("rate limited")}
	job := NewBackfillJob(fetcher, newFakeCandleStore(), nil, nopMetrics{}, nil)

	payload := BackfillRange{Symbol: "AAPL", TF: drepo.TF1m, FromTS: 1, ToTS: 2}
	err := job.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCoordinatorChunksWindow(t *testing.T) {
	q := &fakeQueue{}
	coord := NewBackfillCoordinator(q, nil, 7, 0, nil)

	to := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -21)
	err := coord.Enqueue(context.Background(), "AAPL", []drepo.Timeframe{drepo.TF1m, drepo.TF1d}, from, to)
	require.NoError(t, err)

	// 21 days in 7-day chunks, for two timeframes
	require.Len(t, q.published, 6)
	assert.Equal(t, from.Unix(), q.published[0].FromTS)
	assert.Equal(t, to.Unix(), q.published[2].ToTS)
}

func TestCoordinatorClampsLookback(t *testing.T) {
	q := &fakeQueue{}
	coord := NewBackfillCoordinator(q, nil, 7, 7*24*time.Hour, nil)

	to := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -30)
	require.NoError(t, coord.Enqueue(context.Background(), "AAPL", []drepo.Timeframe{drepo.TF1d}, from, to))

	require.Len(t, q.published, 1)
	assert.Equal(t, to.AddDate(0, 0, -7).Unix(), q.published[0].FromTS)
}

type fakeLocker struct {
	held map[string]bool
	keys []string
	err  error
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	return true, nil
}

func TestCoordinatorSkipsLockedRanges(t *testing.T) {
	q := &fakeQueue{}
	to := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -14)

	heldKey := fmt.Sprintf("backfill:AAPL:%s:%d:%d", drepo.TF1d, from.Unix(), from.AddDate(0, 0, 7).Unix())
	locker := &fakeLocker{held: map[string]bool{heldKey: true}}

	coord := NewBackfillCoordinator(q, locker, 7, 0, nil)
	require.NoError(t, coord.Enqueue(context.Background(), "AAPL", []drepo.Timeframe{drepo.TF1d}, from, to))

	// first of the two chunks is already claimed elsewhere
	require.Len(t, q.published, 1)
	assert.Equal(t, from.AddDate(0, 0, 7).Unix(), q.published[0].FromTS)
	assert.Len(t, locker.keys, 2)
}

func TestCoordinatorEnqueuesDespiteLockerError(t *testing.T) {
	q := &fakeQueue{}
	locker := &fakeLocker{err: fmt.Errorf("redis down")}
	coord := NewBackfillCoordinator(q, locker, 7, 0, nil)

	to := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, coord.Enqueue(context.Background(), "AAPL", []drepo.Timeframe{drepo.TF1d}, to.AddDate(0, 0, -7), to))
	require.Len(t, q.published, 1)
}

func TestCoordinatorRejectsEmptyWindow(t *testing.T) {
	coord := NewBackfillCoordinator(&fakeQueue{}, nil, 7, 0, nil)
	now := time.Now()
	require.Error(t, coord.Enqueue(context.Background(), "AAPL", []drepo.Timeframe{drepo.TF1m}, now, now))
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	"CandleScope/internal/indicator"
)

func ascendingPoints(n int) []models.OHLCVPoint {
	var norm Normalizer
	return norm.Normalize(feedCandles(n))
}

func instanceOf(t *testing.T, store *InstanceStore, id string, cfg indicator.Config) indicator.Instance {
	t.Helper()
	inst, err := store.Add(id, cfg, "")
	require.NoError(t, err)
	return inst
}

func TestCalcCacheIdempotence(t *testing.T) {
	data := ascendingPoints(60)
	store := NewInstanceStore()
	instanceOf(t, store, "sma", indicator.Config{"period": 20})
	instanceOf(t, store, "rsi", nil)

	cache := NewCalcCache()
	first, recomputed := cache.Compute(data, store.Snapshot())
	require.Len(t, first, 2)
	assert.Equal(t, 2, recomputed)

	second, recomputed := cache.Compute(data, store.Snapshot())
	assert.Zero(t, recomputed, "unchanged inputs must not recompute")
	for i := range first {
		assert.Same(t, first[i].Output, second[i].Output,
			"cached output must be reference-equal, not a fresh allocation")
	}
}

func TestCalcCacheConfigInvalidation(t *testing.T) {
	data := ascendingPoints(60)
	store := NewInstanceStore()
	sma := instanceOf(t, store, "sma", indicator.Config{"period": 20})
	instanceOf(t, store, "ema", indicator.Config{"period": 10})

	cache := NewCalcCache()
	first, _ := cache.Compute(data, store.Snapshot())

	_, err := store.Update(sma.ID, indicator.Config{"period": 30}, nil, nil)
	require.NoError(t, err)

	second, recomputed := cache.Compute(data, store.Snapshot())
	assert.Equal(t, 1, recomputed, "only the edited instance recomputes")
	assert.NotSame(t, first[0].Output, second[0].Output)
	assert.Same(t, first[1].Output, second[1].Output, "untouched instance stays cached")
}

func TestCalcCacheLengthInvalidation(t *testing.T) {
	store := NewInstanceStore()
	instanceOf(t, store, "sma", indicator.Config{"period": 5})

	cache := NewCalcCache()
	first, _ := cache.Compute(ascendingPoints(30), store.Snapshot())
	second, recomputed := cache.Compute(ascendingPoints(31), store.Snapshot())
	assert.Equal(t, 1, recomputed)
	assert.NotSame(t, first[0].Output, second[0].Output)
}

func TestCalcCacheRebuiltSeriesInvalidation(t *testing.T) {
	store := NewInstanceStore()
	instanceOf(t, store, "sma", indicator.Config{"period": 5})
	cache := NewCalcCache()

	var norm Normalizer
	candles := feedCandles(30)
	first, _ := cache.Compute(norm.Normalize(candles), store.Snapshot())

	// The forming candle mutates in place; length is unchanged but the
	// normalizer hands back a fresh array.
	candles[0].Close += 10
	second, recomputed := cache.Compute(norm.Normalize(candles), store.Snapshot())
	assert.Equal(t, 1, recomputed)
	assert.NotSame(t, first[0].Output, second[0].Output)
}

func TestCalcCacheMinDataGate(t *testing.T) {
	store := NewInstanceStore()
	instanceOf(t, store, "sma", indicator.Config{"period": 20})
	cache := NewCalcCache()

	short, _ := cache.Compute(ascendingPoints(19), store.Snapshot())
	require.Len(t, short, 1)
	assert.Nil(t, short[0].Output)
	assert.NotEmpty(t, short[0].Err)

	enough, _ := cache.Compute(ascendingPoints(20), store.Snapshot())
	require.NotNil(t, enough[0].Output)
	assert.Empty(t, enough[0].Err)
	assert.Len(t, enough[0].Output.Points, 1)
}

func TestCalcCacheFailureBoundary(t *testing.T) {
	data := ascendingPoints(30)
	instances := []indicator.Instance{
		{ID: "bad-1", IndicatorID: "does-not-exist", Config: indicator.Config{}, Visible: true},
		{ID: "sma-1", IndicatorID: "sma", Config: indicator.Config{"period": 5}, Visible: true},
	}

	cache := NewCalcCache()
	results, _ := cache.Compute(data, instances)
	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].Err)
	assert.Nil(t, results[0].Output)
	assert.NotNil(t, results[1].Output, "one failing indicator must not break the batch")
}

func TestCalcCacheEvictsDroppedInstances(t *testing.T) {
	data := ascendingPoints(30)
	store := NewInstanceStore()
	sma := instanceOf(t, store, "sma", indicator.Config{"period": 5})
	ema := instanceOf(t, store, "ema", indicator.Config{"period": 5})

	cache := NewCalcCache()
	cache.Compute(data, store.Snapshot())
	assert.Len(t, cache.entries, 2)

	store.Remove(sma.ID)
	cache.Compute(data, store.Snapshot())
	assert.Len(t, cache.entries, 1)
	_, kept := cache.entries[ema.ID]
	assert.True(t, kept)
}

func TestCalcCacheSkipsHiddenInstances(t *testing.T) {
	data := ascendingPoints(30)
	store := NewInstanceStore()
	sma := instanceOf(t, store, "sma", indicator.Config{"period": 5})

	hidden := false
	_, err := store.Update(sma.ID, nil, &hidden, nil)
	require.NoError(t, err)

	cache := NewCalcCache()
	results, _ := cache.Compute(data, store.Snapshot())
	assert.Empty(t, results)
	assert.Empty(t, cache.entries, "hidden instances hold no cache entry")
}

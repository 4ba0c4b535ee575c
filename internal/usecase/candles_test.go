package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	icache "CandleScope/internal/service/cache"
	pkgcache "CandleScope/pkg/cache"
)

// descCandles builds n candles newest-first, one minute apart, newest at ts.
func descCandles(symbol string, n int, ts time.Time) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		bucket := ts.Add(-time.Duration(i) * time.Minute)
		out[i] = models.Candle{
			Symbol:    symbol,
			Timestamp: bucket,
			Open:      100,
			High:      102,
			Low:       99,
			Close:     101,
			Volume:    1000,
		}
	}
	return out
}

type fakeForming struct {
	candle models.Candle
	ok     bool
}

func (f *fakeForming) Forming(string, drepo.Timeframe) (models.Candle, bool) {
	return f.candle, f.ok
}

func TestCandlesLatestCachesWindow(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", 10, newest)
	cc := icache.NewCandleCache(pkgcache.NewMemoryCache())
	uc := NewCandlesUseCase(store, cc, nil, nopMetrics{}, nil)

	first, err := uc.Latest(context.Background(), "AAPL", drepo.TF1m, 5)
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, 1, store.latestCalls)

	second, err := uc.Latest(context.Background(), "AAPL", drepo.TF1m, 5)
	require.NoError(t, err)
	require.Len(t, second, 5)
	assert.Equal(t, 1, store.latestCalls, "second read should come from cache")
	assert.Equal(t, newest, second[0].Timestamp)
}

func TestCandlesLatestFormingDoesNotLeakIntoCache(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", 5, newest)
	cc := icache.NewCandleCache(pkgcache.NewMemoryCache())

	// Same bucket as the stored head, as after a restart mid-bucket.
	forming := &fakeForming{
		candle: models.Candle{Symbol: "AAPL", Timestamp: newest, Close: 150},
		ok:     true,
	}
	uc := NewCandlesUseCase(store, cc, forming, nopMetrics{}, nil)

	out, err := uc.Latest(context.Background(), "AAPL", drepo.TF1m, 5)
	require.NoError(t, err)
	assert.Equal(t, 150.0, out[0].Close)

	cached, ok := cc.Get(context.Background(), "AAPL", drepo.TF1m)
	require.True(t, ok)
	assert.Equal(t, 101.0, cached[0].Close, "cache must hold the stored candle, not the forming overlay")
}

func TestCandlesLatestMergesFormingHead(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", 5, newest)

	forming := &fakeForming{
		candle: models.Candle{Symbol: "AAPL", Timestamp: newest, Close: 150},
		ok:     true,
	}
	uc := NewCandlesUseCase(store, nil, forming, nopMetrics{}, nil)

	out, err := uc.Latest(context.Background(), "AAPL", drepo.TF1m, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, 150.0, out[0].Close, "forming candle replaces the matching head")
}

func TestCandlesLatestPrependsNewerFormingBucket(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", 5, newest)

	forming := &fakeForming{
		candle: models.Candle{Symbol: "AAPL", Timestamp: newest.Add(time.Minute), Close: 160},
		ok:     true,
	}
	uc := NewCandlesUseCase(store, nil, forming, nopMetrics{}, nil)

	out, err := uc.Latest(context.Background(), "AAPL", drepo.TF1m, 10)
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, 160.0, out[0].Close)
	assert.Equal(t, newest, out[1].Timestamp)
}

func TestCandlesPageReturnsCursor(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", 6, newest)
	uc := NewCandlesUseCase(store, nil, nil, nopMetrics{}, nil)

	page, err := uc.Page(context.Background(), "AAPL", drepo.TF1m, "", 5)
	require.NoError(t, err)
	require.Len(t, page.Candles, 5)
	assert.True(t, page.HasMore)

	oldest := page.Candles[4]
	assert.Equal(t, strconv.FormatInt(oldest.Timestamp.Unix(), 10), page.NextCursor)
}

func TestCandlesPageFollowsCursor(t *testing.T) {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.page = descCandles("AAPL", 3, newest.Add(-10*time.Minute))
	uc := NewCandlesUseCase(store, nil, nil, nopMetrics{}, nil)

	cursor := strconv.FormatInt(newest.Add(-9*time.Minute).Unix(), 10)
	page, err := uc.Page(context.Background(), "AAPL", drepo.TF1m, cursor, 5)
	require.NoError(t, err)
	require.Len(t, page.Candles, 3)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestCandlesPageRejectsBadCursor(t *testing.T) {
	store := newFakeCandleStore()
	uc := NewCandlesUseCase(store, nil, nil, nopMetrics{}, nil)

	_, err := uc.Page(context.Background(), "AAPL", drepo.TF1m, "not-a-timestamp", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor")
}

func TestCandlesLatestRequiresSymbol(t *testing.T) {
	uc := NewCandlesUseCase(newFakeCandleStore(), nil, nil, nopMetrics{}, nil)
	_, err := uc.Latest(context.Background(), "", drepo.TF1m, 5)
	require.Error(t, err)
}

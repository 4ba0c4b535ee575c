package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	pkgcache "CandleScope/pkg/cache"
)

func windowOf(n int) []models.Candle {
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			Symbol:    "AAPL",
			Timestamp: newest.Add(-time.Duration(i) * time.Minute),
			Close:     100 + float64(i),
		}
	}
	return out
}

func TestCandleCacheRoundTrip(t *testing.T) {
	cc := NewCandleCache(pkgcache.NewMemoryCache())
	ctx := context.Background()

	_, ok := cc.Get(ctx, "AAPL", drepo.TF1m)
	assert.False(t, ok)

	window := windowOf(10)
	require.NoError(t, cc.Set(ctx, "AAPL", drepo.TF1m, window))

	got, ok := cc.Get(ctx, "AAPL", drepo.TF1m)
	require.True(t, ok)
	require.Len(t, got, 10)
	assert.Equal(t, window[0].Timestamp, got[0].Timestamp)
}

func TestCandleCacheKeysBySymbolAndTimeframe(t *testing.T) {
	cc := NewCandleCache(pkgcache.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, cc.Set(ctx, "AAPL", drepo.TF1m, windowOf(3)))

	_, ok := cc.Get(ctx, "AAPL", drepo.TF5m)
	assert.False(t, ok)
	_, ok = cc.Get(ctx, "TSLA", drepo.TF1m)
	assert.False(t, ok)
}

func TestCandleCacheCapsWindowPerTimeframe(t *testing.T) {
	cc := NewCandleCache(pkgcache.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, cc.Set(ctx, "AAPL", drepo.TF1m, windowOf(2000)))

	got, ok := cc.Get(ctx, "AAPL", drepo.TF1m)
	require.True(t, ok)
	assert.Len(t, got, 1440, "1m windows cap at one day of minutes")
}

func TestCandleCacheInvalidate(t *testing.T) {
	cc := NewCandleCache(pkgcache.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, cc.Set(ctx, "AAPL", drepo.TF1m, windowOf(5)))
	cc.Invalidate(ctx, "AAPL", drepo.TF1m)

	_, ok := cc.Get(ctx, "AAPL", drepo.TF1m)
	assert.False(t, ok)
}

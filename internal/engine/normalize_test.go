package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
)

// feedCandles builds a descending (newest-first) feed of n candles, one
// minute apart, ending at a fixed epoch.
func feedCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		// i == 0 is the newest candle.
		idx := n - 1 - i
		base := 100 + float64(idx)
		out[i] = models.Candle{
			Symbol:    "AAPL",
			Timestamp: time.Unix(int64(1700000000+idx*60), 0).UTC(),
			Open:      base,
			High:      base + 2,
			Low:       base - 1,
			Close:     base + 1,
			Volume:    1000 + float64(idx)*10,
		}
	}
	return out
}

func sameSlice(a, b []models.OHLCVPoint) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func TestNormalizeAscending(t *testing.T) {
	var n Normalizer
	candles := feedCandles(5)
	pts := n.Normalize(candles)

	require.Len(t, pts, 5)
	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].Time, pts[i-1].Time)
	}
	// Oldest candle first.
	assert.InDelta(t, 100.0, pts[0].Open, 1e-9)
	assert.InDelta(t, 105.0, pts[4].Close, 1e-9)
	assert.Equal(t, candles[4].Timestamp.Unix(), pts[0].Time)
}

func TestNormalizeEmpty(t *testing.T) {
	var n Normalizer
	assert.Empty(t, n.Normalize(nil))
}

func TestNormalizeReferentialStability(t *testing.T) {
	var n Normalizer
	candles := feedCandles(10)

	a := n.Normalize(candles)
	b := n.Normalize(candles)
	assert.True(t, sameSlice(a, b), "unchanged feed must return the cached array instance")

	// A fresh-but-equal slice still hits the cache (value key, not identity).
	c := n.Normalize(feedCandles(10))
	assert.True(t, sameSlice(a, c))
}

func TestNormalizeDetectsFormingCandleMutation(t *testing.T) {
	var n Normalizer
	candles := feedCandles(10)
	a := n.Normalize(candles)

	// Live update: the newest candle's close moves, count and bounds do not.
	candles[0].Close += 0.5
	candles[0].High += 0.5
	b := n.Normalize(candles)

	assert.False(t, sameSlice(a, b), "fingerprint change must rebuild the series")
	assert.InDelta(t, candles[0].Close, b[len(b)-1].Close, 1e-9)
}

func TestNormalizeDetectsLengthChange(t *testing.T) {
	var n Normalizer
	a := n.Normalize(feedCandles(10))
	b := n.Normalize(feedCandles(11))
	assert.False(t, sameSlice(a, b))
	require.Len(t, b, 11)
}

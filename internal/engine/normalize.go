// Package engine is the indicator calculation and replay-buffering core: it
// turns a raw descending candle feed into derived series, memoizes per
// instance, and supports a replay playhead over history without recomputing
// on every tick.
package engine

import (
	"fmt"

	"CandleScope/internal/domain/models"
)

// Normalizer converts a descending candle feed into an ascending OHLCV
// series. It returns the same slice instance as long as the feed is
// unchanged, so downstream memoization can rely on referential stability.
type Normalizer struct {
	key    normKey
	cached []models.OHLCVPoint
}

type normKey struct {
	n           int
	first, last int64
	// fingerprint of the most recent candle's OHLCV. A live, currently
	// forming candle mutates without the series length changing; a plain
	// length/bounds check would serve stale data.
	fingerprint string
}

// Normalize takes candles newest-first and returns points oldest-first.
func (n *Normalizer) Normalize(candles []models.Candle) []models.OHLCVPoint {
	key := keyFor(candles)
	if n.cached != nil && key == n.key {
		return n.cached
	}

	out := make([]models.OHLCVPoint, len(candles))
	for i, c := range candles {
		out[len(candles)-1-i] = models.OHLCVPoint{
			Time:   c.Timestamp.Unix(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	n.key = key
	n.cached = out
	return out
}

// Reset drops the cached series.
func (n *Normalizer) Reset() {
	n.key = normKey{}
	n.cached = nil
}

func keyFor(candles []models.Candle) normKey {
	if len(candles) == 0 {
		return normKey{}
	}
	latest := candles[0]
	return normKey{
		n:     len(candles),
		first: latest.Timestamp.Unix(),
		last:  candles[len(candles)-1].Timestamp.Unix(),
		fingerprint: fmt.Sprintf("%v|%v|%v|%v|%v",
			latest.Open, latest.High, latest.Low, latest.Close, latest.Volume),
	}
}

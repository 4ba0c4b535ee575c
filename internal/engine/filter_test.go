package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/indicator"
)

func pts(times ...int64) []indicator.Point {
	out := make([]indicator.Point, len(times))
	for i, ts := range times {
		out[i] = indicator.Point{Time: ts, Value: float64(i)}
	}
	return out
}

func TestFilterLineByTimestamp(t *testing.T) {
	out := &indicator.Output{Kind: indicator.KindLine, Points: pts(10, 20, 30, 40)}

	got := FilterOutput(out, 25)
	assert.Equal(t, pts(10, 20), got.Points)

	got = FilterOutput(out, 40)
	assert.Len(t, got.Points, 4)

	got = FilterOutput(out, 5)
	assert.Empty(t, got.Points)
}

func TestFilterBandSubSeriesIndependently(t *testing.T) {
	// Middle line warms up later than the envelope, so the sub-series
	// legitimately differ in length after filtering.
	out := &indicator.Output{
		Kind:   indicator.KindBand,
		Upper:  pts(10, 20, 30),
		Middle: pts(20, 30),
		Lower:  pts(10, 20, 30),
	}

	got := FilterOutput(out, 20)
	assert.Len(t, got.Upper, 2)
	assert.Len(t, got.Middle, 1)
	assert.Len(t, got.Lower, 2)
}

func TestFilterMultiSeries(t *testing.T) {
	out := &indicator.Output{
		Kind: indicator.KindMulti,
		Series: []indicator.NamedSeries{
			{Key: "macd", Kind: indicator.SeriesLine, Points: pts(10, 20, 30)},
			{Key: "hist", Kind: indicator.SeriesHistogram, Points: pts(20, 30)},
		},
	}

	got := FilterOutput(out, 20)
	require.Len(t, got.Series, 2)
	assert.Equal(t, "macd", got.Series[0].Key)
	assert.Len(t, got.Series[0].Points, 2)
	assert.Len(t, got.Series[1].Points, 1)
	assert.Equal(t, indicator.SeriesHistogram, got.Series[1].Kind)
}

func TestFilterNilOutput(t *testing.T) {
	assert.Nil(t, FilterOutput(nil, 100))
}

func TestFilterCalculatedPassesErrorsThrough(t *testing.T) {
	results := []indicator.Calculated{
		{Err: "insufficient data"},
		{Output: &indicator.Output{Kind: indicator.KindLine, Points: pts(10, 20, 30)}},
	}

	got := FilterCalculated(results, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "insufficient data", got[0].Err)
	assert.Nil(t, got[0].Output)
	assert.Len(t, got[1].Output.Points, 1)
}

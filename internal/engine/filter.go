package engine

import (
	"sort"

	"CandleScope/internal/indicator"
)

// FilterOutput truncates a computed output to the points visible at the
// replay position with timestamp maxTime. Outputs may be shorter than their
// input series (warm-up, NaN dropping), so truncation compares timestamps,
// never array indexes. Sub-series are filtered independently and may end up
// with different lengths.
func FilterOutput(out *indicator.Output, maxTime int64) *indicator.Output {
	if out == nil {
		return nil
	}
	switch out.Kind {
	case indicator.KindLine, indicator.KindHistogram:
		return &indicator.Output{Kind: out.Kind, Points: filterPoints(out.Points, maxTime)}
	case indicator.KindBand:
		return &indicator.Output{
			Kind:   indicator.KindBand,
			Upper:  filterPoints(out.Upper, maxTime),
			Middle: filterPoints(out.Middle, maxTime),
			Lower:  filterPoints(out.Lower, maxTime),
		}
	case indicator.KindMulti:
		series := make([]indicator.NamedSeries, len(out.Series))
		for i, s := range out.Series {
			series[i] = indicator.NamedSeries{Key: s.Key, Kind: s.Kind, Points: filterPoints(s.Points, maxTime)}
		}
		return &indicator.Output{Kind: indicator.KindMulti, Series: series}
	default:
		return out
	}
}

// FilterCalculated applies FilterOutput across a batch, passing error
// results through untouched.
func FilterCalculated(results []indicator.Calculated, maxTime int64) []indicator.Calculated {
	out := make([]indicator.Calculated, len(results))
	for i, r := range results {
		out[i] = r
		if r.Output != nil {
			out[i].Output = FilterOutput(r.Output, maxTime)
		}
	}
	return out
}

// filterPoints returns the prefix with Time <= maxTime. Points are ordered
// by time, so this is a binary search plus a subslice with no copying.
func filterPoints(pts []indicator.Point, maxTime int64) []indicator.Point {
	n := sort.Search(len(pts), func(i int) bool { return pts[i].Time > maxTime })
	return pts[:n]
}

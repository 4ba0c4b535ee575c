package indicator

import (
	"math"

	"CandleScope/internal/domain/models"
)

// Calculators build full-length value slices aligned with the input series,
// using NaN for indices inside the warm-up period, then convert to points
// with the NaN entries dropped. Charts must never see a spurious flat value
// in place of "not yet computable".

func closes(data []models.OHLCVPoint) []float64 {
	out := make([]float64, len(data))
	for i, p := range data {
		out[i] = p.Close
	}
	return out
}

func typicalPrices(data []models.OHLCVPoint) []float64 {
	out := make([]float64, len(data))
	for i, p := range data {
		out[i] = (p.High + p.Low + p.Close) / 3
	}
	return out
}

// smaValues returns a slice aligned with values; entries before period-1 are
// NaN.
func smaValues(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaValues seeds with the SMA of the first period values, then applies the
// standard smoothing factor 2/(period+1).
func emaValues(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		out[i] = ema
	}
	return out
}

// wilderValues applies Wilder smoothing (period-1)/period carry, seeded with
// the mean of the first period values starting at seedIdx.
func wilderValues(values []float64, period int, seedIdx int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < seedIdx+period {
		return out
	}
	sum := 0.0
	for i := seedIdx; i < seedIdx+period; i++ {
		sum += values[i]
	}
	avg := sum / float64(period)
	out[seedIdx+period-1] = avg
	for i := seedIdx + period; i < len(values); i++ {
		avg = (avg*float64(period-1) + values[i]) / float64(period)
		out[i] = avg
	}
	return out
}

// stdevValues is the rolling population standard deviation over period.
func stdevValues(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += values[j]
		}
		mean /= float64(period)
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

// trueRanges returns TR aligned with data; index 0 is NaN (needs prev close).
func trueRanges(data []models.OHLCVPoint) []float64 {
	out := nanSlice(len(data))
	for i := 1; i < len(data); i++ {
		hl := data[i].High - data[i].Low
		hc := math.Abs(data[i].High - data[i-1].Close)
		lc := math.Abs(data[i].Low - data[i-1].Close)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// atrValues is Wilder-smoothed true range; first value at index period.
func atrValues(data []models.OHLCVPoint, period int) []float64 {
	return wilderValues(trueRanges(data), period, 1)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// linePoints pairs values with candle times, dropping NaN/Inf warm-up
// entries. The result may be shorter than the input series.
func linePoints(data []models.OHLCVPoint, values []float64) []Point {
	out := make([]Point, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, Point{Time: data[i].Time, Value: v})
	}
	return out
}

func lineOutput(data []models.OHLCVPoint, values []float64) *Output {
	return &Output{Kind: KindLine, Points: linePoints(data, values)}
}

package indicator

import (
	"math"

	"CandleScope/internal/domain/models"
)

func init() {
	Register(Entry{
		Definition: Definition{
			ID:        "rsi",
			Name:      "Relative Strength Index",
			ShortName: "RSI",
			Category:  CategoryPanel,
			Family:    FamilyMomentum,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 14, Min: 2, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#7e57c2"},
			},
			Outputs: []SeriesSpec{{Key: "rsi", Label: "RSI", Kind: SeriesLine, Color: "#7e57c2", Width: 2}},
			RefLines: []ReferenceLine{
				{Value: 70, Label: "Overbought", Color: "#787b86"},
				{Value: 30, Label: "Oversold", Color: "#787b86"},
			},
			MinData: func(cfg Config) int { return cfg.Int("period", 14) + 1 },
		},
		Calculate: calcRSI,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "stoch",
			Name:      "Stochastic Oscillator",
			ShortName: "Stoch",
			Category:  CategoryPanel,
			Family:    FamilyMomentum,
			Params: []ParamSpec{
				{Key: "k_period", Label: "%K Period", Type: ParamNumber, Default: 14, Min: 1, Max: 500},
				{Key: "k_smooth", Label: "%K Smoothing", Type: ParamNumber, Default: 3, Min: 1, Max: 50},
				{Key: "d_period", Label: "%D Period", Type: ParamNumber, Default: 3, Min: 1, Max: 50},
			},
			Outputs: []SeriesSpec{
				{Key: "k", Label: "%K", Kind: SeriesLine, Color: "#2962ff", Width: 2},
				{Key: "d", Label: "%D", Kind: SeriesLine, Color: "#ff6d00", Width: 1},
			},
			RefLines: []ReferenceLine{
				{Value: 80, Label: "Overbought", Color: "#787b86"},
				{Value: 20, Label: "Oversold", Color: "#787b86"},
			},
			MinData: func(cfg Config) int {
				return cfg.Int("k_period", 14) + cfg.Int("k_smooth", 3) + cfg.Int("d_period", 3) - 2
			},
		},
		Calculate: calcStochastic,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "macd",
			Name:      "Moving Average Convergence Divergence",
			ShortName: "MACD",
			Category:  CategoryPanel,
			Family:    FamilyMomentum,
			Params: []ParamSpec{
				{Key: "fast", Label: "Fast Period", Type: ParamNumber, Default: 12, Min: 1, Max: 500},
				{Key: "slow", Label: "Slow Period", Type: ParamNumber, Default: 26, Min: 2, Max: 500},
				{Key: "signal", Label: "Signal Period", Type: ParamNumber, Default: 9, Min: 1, Max: 500},
			},
			Outputs: []SeriesSpec{
				{Key: "macd", Label: "MACD", Kind: SeriesLine, Color: "#2962ff", Width: 2},
				{Key: "signal", Label: "Signal", Kind: SeriesLine, Color: "#ff6d00", Width: 1},
				{Key: "histogram", Label: "Histogram", Kind: SeriesHistogram, Color: "#26a69a", Width: 1},
			},
			MinData: func(cfg Config) int { return cfg.Int("slow", 26) + cfg.Int("signal", 9) - 1 },
		},
		Calculate: calcMACD,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "roc",
			Name:      "Rate of Change",
			ShortName: "ROC",
			Category:  CategoryPanel,
			Family:    FamilyMomentum,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 10, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#039be5"},
			},
			Outputs:  []SeriesSpec{{Key: "roc", Label: "ROC", Kind: SeriesLine, Color: "#039be5", Width: 2}},
			RefLines: []ReferenceLine{{Value: 0, Color: "#787b86"}},
			MinData:  func(cfg Config) int { return cfg.Int("period", 10) + 1 },
		},
		Calculate: calcROC,
	})
}

func calcRSI(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 14)
	gains := nanSlice(len(data))
	losses := nanSlice(len(data))
	for i := 1; i < len(data); i++ {
		d := data[i].Close - data[i-1].Close
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	avgGain := wilderValues(gains, period, 1)
	avgLoss := wilderValues(losses, period, 1)
	values := nanSlice(len(data))
	for i := range data {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			values[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		values[i] = 100 - 100/(1+rs)
	}
	return lineOutput(data, values), nil
}

func calcStochastic(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	kPeriod := cfg.Int("k_period", 14)
	kSmooth := cfg.Int("k_smooth", 3)
	dPeriod := cfg.Int("d_period", 3)

	raw := nanSlice(len(data))
	for i := kPeriod - 1; i < len(data); i++ {
		hi, lo := data[i-kPeriod+1].High, data[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			if data[j].High > hi {
				hi = data[j].High
			}
			if data[j].Low < lo {
				lo = data[j].Low
			}
		}
		if hi == lo {
			raw[i] = 50
		} else {
			raw[i] = (data[i].Close - lo) / (hi - lo) * 100
		}
	}
	k := rollingMeanSkipNaN(raw, kSmooth)
	d := rollingMeanSkipNaN(k, dPeriod)
	return &Output{
		Kind: KindMulti,
		Series: []NamedSeries{
			{Key: "k", Kind: SeriesLine, Points: linePoints(data, k)},
			{Key: "d", Kind: SeriesLine, Points: linePoints(data, d)},
		},
	}, nil
}

// rollingMeanSkipNaN averages the trailing window; a window containing any
// NaN yields NaN, so warm-up propagates instead of skewing early values.
func rollingMeanSkipNaN(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func calcMACD(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	fast := cfg.Int("fast", 12)
	slow := cfg.Int("slow", 26)
	signal := cfg.Int("signal", 9)

	cl := closes(data)
	fastEMA := emaValues(cl, fast)
	slowEMA := emaValues(cl, slow)
	macd := nanSlice(len(data))
	for i := range data {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal is an EMA over the defined region of the MACD line.
	sig := nanSlice(len(data))
	if start := slow - 1; start < len(data) && len(data)-start >= signal {
		sub := emaValues(macd[start:], signal)
		copy(sig[start:], sub)
	}

	hist := nanSlice(len(data))
	for i := range data {
		hist[i] = macd[i] - sig[i]
	}

	return &Output{
		Kind: KindMulti,
		Series: []NamedSeries{
			{Key: "macd", Kind: SeriesLine, Points: linePoints(data, macd)},
			{Key: "signal", Kind: SeriesLine, Points: linePoints(data, sig)},
			{Key: "histogram", Kind: SeriesHistogram, Points: linePoints(data, hist)},
		},
	}, nil
}

func calcROC(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 10)
	values := nanSlice(len(data))
	for i := period; i < len(data); i++ {
		prev := data[i-period].Close
		if prev != 0 {
			values[i] = (data[i].Close - prev) / prev * 100
		}
	}
	return lineOutput(data, values), nil
}

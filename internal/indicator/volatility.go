package indicator

import "CandleScope/internal/domain/models"

func init() {
	Register(Entry{
		Definition: Definition{
			ID:        "bbands",
			Name:      "Bollinger Bands",
			ShortName: "BB",
			Category:  CategoryOverlay,
			Family:    FamilyVolatility,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 2, Max: 500},
				{Key: "mult", Label: "StdDev Multiplier", Type: ParamNumber, Default: 2.0, Min: 0.1, Max: 10},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#546e7a"},
			},
			Outputs: []SeriesSpec{
				{Key: "upper", Label: "Upper", Kind: SeriesLine, Color: "#546e7a", Width: 1},
				{Key: "middle", Label: "Basis", Kind: SeriesLine, Color: "#ff6d00", Width: 1, Style: "dashed"},
				{Key: "lower", Label: "Lower", Kind: SeriesLine, Color: "#546e7a", Width: 1},
			},
			MinData: periodMinData("period", 20),
		},
		Calculate: calcBollinger,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "keltner",
			Name:      "Keltner Channels",
			ShortName: "KC",
			Category:  CategoryOverlay,
			Family:    FamilyVolatility,
			Params: []ParamSpec{
				{Key: "period", Label: "EMA Period", Type: ParamNumber, Default: 20, Min: 2, Max: 500},
				{Key: "atr_period", Label: "ATR Period", Type: ParamNumber, Default: 10, Min: 1, Max: 500},
				{Key: "mult", Label: "ATR Multiplier", Type: ParamNumber, Default: 2.0, Min: 0.1, Max: 10},
			},
			Outputs: []SeriesSpec{
				{Key: "upper", Label: "Upper", Kind: SeriesLine, Color: "#26a69a", Width: 1},
				{Key: "middle", Label: "Basis", Kind: SeriesLine, Color: "#26a69a", Width: 1, Style: "dashed"},
				{Key: "lower", Label: "Lower", Kind: SeriesLine, Color: "#26a69a", Width: 1},
			},
			MinData: func(cfg Config) int {
				period := cfg.Int("period", 20)
				if atr := cfg.Int("atr_period", 10) + 1; atr > period {
					return atr
				}
				return period
			},
		},
		Calculate: calcKeltner,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "donchian",
			Name:      "Donchian Channels",
			ShortName: "DC",
			Category:  CategoryOverlay,
			Family:    FamilyVolatility,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
			},
			Outputs: []SeriesSpec{
				{Key: "upper", Label: "Upper", Kind: SeriesLine, Color: "#1e88e5", Width: 1},
				{Key: "middle", Label: "Basis", Kind: SeriesLine, Color: "#1e88e5", Width: 1, Style: "dashed"},
				{Key: "lower", Label: "Lower", Kind: SeriesLine, Color: "#1e88e5", Width: 1},
			},
			MinData: periodMinData("period", 20),
		},
		Calculate: calcDonchian,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "atr",
			Name:      "Average True Range",
			ShortName: "ATR",
			Category:  CategoryPanel,
			Family:    FamilyVolatility,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 14, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#ef6c00"},
			},
			Outputs: []SeriesSpec{{Key: "atr", Label: "ATR", Kind: SeriesLine, Color: "#ef6c00", Width: 2}},
			MinData: func(cfg Config) int { return cfg.Int("period", 14) + 1 },
		},
		Calculate: func(data []models.OHLCVPoint, cfg Config) (*Output, error) {
			return lineOutput(data, atrValues(data, cfg.Int("period", 14))), nil
		},
	})
}

func calcBollinger(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 20)
	mult := cfg.Float("mult", 2.0)
	cl := closes(data)
	mid := smaValues(cl, period)
	sd := stdevValues(cl, period)
	upper := nanSlice(len(data))
	lower := nanSlice(len(data))
	for i := range data {
		upper[i] = mid[i] + mult*sd[i]
		lower[i] = mid[i] - mult*sd[i]
	}
	return &Output{
		Kind:   KindBand,
		Upper:  linePoints(data, upper),
		Middle: linePoints(data, mid),
		Lower:  linePoints(data, lower),
	}, nil
}

func calcKeltner(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 20)
	atrPeriod := cfg.Int("atr_period", 10)
	mult := cfg.Float("mult", 2.0)
	mid := emaValues(closes(data), period)
	atr := atrValues(data, atrPeriod)
	upper := nanSlice(len(data))
	lower := nanSlice(len(data))
	for i := range data {
		upper[i] = mid[i] + mult*atr[i]
		lower[i] = mid[i] - mult*atr[i]
	}
	return &Output{
		Kind:   KindBand,
		Upper:  linePoints(data, upper),
		Middle: linePoints(data, mid),
		Lower:  linePoints(data, lower),
	}, nil
}

func calcDonchian(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 20)
	upper := nanSlice(len(data))
	middle := nanSlice(len(data))
	lower := nanSlice(len(data))
	for i := period - 1; i < len(data); i++ {
		hi, lo := data[i-period+1].High, data[i-period+1].Low
		for j := i - period + 2; j <= i; j++ {
			if data[j].High > hi {
				hi = data[j].High
			}
			if data[j].Low < lo {
				lo = data[j].Low
			}
		}
		upper[i], lower[i], middle[i] = hi, lo, (hi+lo)/2
	}
	return &Output{
		Kind:   KindBand,
		Upper:  linePoints(data, upper),
		Middle: linePoints(data, middle),
		Lower:  linePoints(data, lower),
	}, nil
}

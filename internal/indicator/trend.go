package indicator

import "CandleScope/internal/domain/models"

func periodMinData(key string, def int) func(cfg Config) int {
	return func(cfg Config) int { return cfg.Int(key, def) }
}

func init() {
	Register(Entry{
		Definition: Definition{
			ID:        "sma",
			Name:      "Simple Moving Average",
			ShortName: "SMA",
			Category:  CategoryOverlay,
			Family:    FamilyTrend,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#2962ff"},
			},
			Outputs: []SeriesSpec{{Key: "sma", Label: "SMA", Kind: SeriesLine, Color: "#2962ff", Width: 2}},
			MinData: periodMinData("period", 20),
		},
		Calculate: func(data []models.OHLCVPoint, cfg Config) (*Output, error) {
			return lineOutput(data, smaValues(closes(data), cfg.Int("period", 20))), nil
		},
	})

	Register(Entry{
		Definition: Definition{
			ID:        "ema",
			Name:      "Exponential Moving Average",
			ShortName: "EMA",
			Category:  CategoryOverlay,
			Family:    FamilyTrend,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#f57c00"},
			},
			Outputs: []SeriesSpec{{Key: "ema", Label: "EMA", Kind: SeriesLine, Color: "#f57c00", Width: 2}},
			MinData: periodMinData("period", 20),
		},
		Calculate: func(data []models.OHLCVPoint, cfg Config) (*Output, error) {
			return lineOutput(data, emaValues(closes(data), cfg.Int("period", 20))), nil
		},
	})

	Register(Entry{
		Definition: Definition{
			ID:        "wma",
			Name:      "Weighted Moving Average",
			ShortName: "WMA",
			Category:  CategoryOverlay,
			Family:    FamilyTrend,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#7b1fa2"},
			},
			Outputs: []SeriesSpec{{Key: "wma", Label: "WMA", Kind: SeriesLine, Color: "#7b1fa2", Width: 2}},
			MinData: periodMinData("period", 20),
		},
		Calculate: calcWMA,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "vwma",
			Name:      "Volume Weighted Moving Average",
			ShortName: "VWMA",
			Category:  CategoryOverlay,
			Family:    FamilyTrend,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#00897b"},
			},
			Outputs: []SeriesSpec{{Key: "vwma", Label: "VWMA", Kind: SeriesLine, Color: "#00897b", Width: 2}},
			MinData: periodMinData("period", 20),
		},
		Calculate: calcVWMA,
	})
}

func calcWMA(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 20)
	values := nanSlice(len(data))
	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += data[i-period+1+j].Close * float64(j+1)
		}
		values[i] = sum / denom
	}
	return lineOutput(data, values), nil
}

func calcVWMA(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 20)
	values := nanSlice(len(data))
	for i := period - 1; i < len(data); i++ {
		pv, vol := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			pv += data[j].Close * data[j].Volume
			vol += data[j].Volume
		}
		if vol > 0 {
			values[i] = pv / vol
		}
	}
	return lineOutput(data, values), nil
}

package indicator

import (
	"math"

	"CandleScope/internal/domain/models"
)

func init() {
	Register(Entry{
		Definition: Definition{
			ID:        "volume",
			Name:      "Volume",
			ShortName: "Vol",
			Category:  CategoryPanel,
			Family:    FamilyVolume,
			Params: []ParamSpec{
				{Key: "ma_period", Label: "MA Period", Type: ParamNumber, Default: 20, Min: 1, Max: 500},
				{Key: "show_ma", Label: "Show MA", Type: ParamBool, Default: true},
			},
			Outputs: []SeriesSpec{
				{Key: "volume", Label: "Volume", Kind: SeriesHistogram, Color: "#26a69a", Width: 1},
				{Key: "ma", Label: "Volume MA", Kind: SeriesLine, Color: "#ff6d00", Width: 1},
			},
			MinData: func(cfg Config) int { return 1 },
		},
		Calculate: calcVolume,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "obv",
			Name:      "On-Balance Volume",
			ShortName: "OBV",
			Category:  CategoryPanel,
			Family:    FamilyVolume,
			Params: []ParamSpec{
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#5c6bc0"},
			},
			Outputs: []SeriesSpec{{Key: "obv", Label: "OBV", Kind: SeriesLine, Color: "#5c6bc0", Width: 2}},
			MinData: func(cfg Config) int { return 2 },
		},
		Calculate: calcOBV,
	})

	Register(Entry{
		Definition: Definition{
			ID:        "mfi",
			Name:      "Money Flow Index",
			ShortName: "MFI",
			Category:  CategoryPanel,
			Family:    FamilyVolume,
			Params: []ParamSpec{
				{Key: "period", Label: "Period", Type: ParamNumber, Default: 14, Min: 2, Max: 500},
				{Key: "color", Label: "Color", Type: ParamColor, Default: "#8d6e63"},
			},
			Outputs: []SeriesSpec{{Key: "mfi", Label: "MFI", Kind: SeriesLine, Color: "#8d6e63", Width: 2}},
			RefLines: []ReferenceLine{
				{Value: 80, Label: "Overbought", Color: "#787b86"},
				{Value: 20, Label: "Oversold", Color: "#787b86"},
			},
			MinData: func(cfg Config) int { return cfg.Int("period", 14) + 1 },
		},
		Calculate: calcMFI,
	})
}

func calcVolume(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	vols := make([]float64, len(data))
	for i, p := range data {
		vols[i] = p.Volume
	}
	series := []NamedSeries{
		{Key: "volume", Kind: SeriesHistogram, Points: linePoints(data, vols)},
	}
	if cfg["show_ma"] == nil || cfg["show_ma"] == true {
		series = append(series, NamedSeries{
			Key:    "ma",
			Kind:   SeriesLine,
			Points: linePoints(data, smaValues(vols, cfg.Int("ma_period", 20))),
		})
	}
	return &Output{Kind: KindMulti, Series: series}, nil
}

func calcOBV(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	values := nanSlice(len(data))
	obv := 0.0
	for i := 1; i < len(data); i++ {
		switch {
		case data[i].Close > data[i-1].Close:
			obv += data[i].Volume
		case data[i].Close < data[i-1].Close:
			obv -= data[i].Volume
		}
		values[i] = obv
	}
	return lineOutput(data, values), nil
}

func calcMFI(data []models.OHLCVPoint, cfg Config) (*Output, error) {
	period := cfg.Int("period", 14)
	tp := typicalPrices(data)

	posFlow := nanSlice(len(data))
	negFlow := nanSlice(len(data))
	for i := 1; i < len(data); i++ {
		raw := tp[i] * data[i].Volume
		switch {
		case tp[i] > tp[i-1]:
			posFlow[i], negFlow[i] = raw, 0
		case tp[i] < tp[i-1]:
			posFlow[i], negFlow[i] = 0, raw
		default:
			posFlow[i], negFlow[i] = 0, 0
		}
	}

	values := nanSlice(len(data))
	for i := period; i < len(data); i++ {
		pos, neg := 0.0, 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(posFlow[j]) {
				ok = false
				break
			}
			pos += posFlow[j]
			neg += negFlow[j]
		}
		if !ok {
			continue
		}
		if neg == 0 {
			values[i] = 100
			continue
		}
		values[i] = 100 - 100/(1+pos/neg)
	}
	return lineOutput(data, values), nil
}

// Package indicator is the static catalog of technical indicators: their
// definitions (parameters, output shape, minimum data requirement) and pure
// calculator functions over normalized OHLCV series.
package indicator

import (
	"fmt"
	"sort"
	"strings"

	"CandleScope/internal/domain/models"
)

// Category decides which axis an indicator draws on.
type Category string

const (
	CategoryOverlay Category = "overlay" // main price axis
	CategoryPanel   Category = "panel"   // own axis below the chart
)

// Family groups indicators in the catalog UI.
type Family string

const (
	FamilyTrend      Family = "trend"
	FamilyMomentum   Family = "momentum"
	FamilyVolatility Family = "volatility"
	FamilyVolume     Family = "volume"
)

// ParamType enumerates the supported parameter kinds.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamColor  ParamType = "color"
	ParamSelect ParamType = "select"
	ParamBool   ParamType = "bool"
)

// ParamSpec describes one configurable parameter of an indicator.
type ParamSpec struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Type    ParamType `json:"type"`
	Default any       `json:"default"`
	Min     float64   `json:"min,omitempty"`
	Max     float64   `json:"max,omitempty"`
	Options []string  `json:"options,omitempty"`
}

// SeriesKind is how a single output series is drawn.
type SeriesKind string

const (
	SeriesLine      SeriesKind = "line"
	SeriesHistogram SeriesKind = "histogram"
)

// SeriesSpec describes one named output series and its default styling.
type SeriesSpec struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Kind  SeriesKind `json:"kind"`
	Color string     `json:"color"`
	Width int        `json:"width"`
	Style string     `json:"style,omitempty"` // solid, dashed
}

// ReferenceLine is a fixed horizontal guide drawn in a panel (e.g. RSI 70).
type ReferenceLine struct {
	Value float64 `json:"value"`
	Label string  `json:"label,omitempty"`
	Color string  `json:"color,omitempty"`
}

// Definition is the static description of one indicator. Never mutated at
// runtime.
type Definition struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	ShortName string          `json:"short_name"`
	Category  Category        `json:"category"`
	Family    Family          `json:"family"`
	Params    []ParamSpec     `json:"params"`
	Outputs   []SeriesSpec    `json:"outputs"`
	RefLines  []ReferenceLine `json:"ref_lines,omitempty"`

	// MinData reports how many candles the calculator needs before it can
	// produce any value with the given config. Enforced by the caller, not
	// the calculator.
	MinData func(cfg Config) int `json:"-"`
}

// Config maps parameter key to value for one indicator instance.
type Config map[string]any

// Hash returns a deterministic serialization of the config, used as a
// cache-invalidation key. Keys are sorted so two equal configs always hash
// identically regardless of map iteration order.
func (c Config) Hash() string {
	if len(c) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%v", k, c[k])
	}
	return b.String()
}

// Int reads an integer parameter, falling back to the definition default.
func (c Config) Int(key string, def int) int {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// Float reads a float parameter, falling back to the definition default.
func (c Config) Float(key string, def float64) float64 {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// String reads a string parameter, falling back to the definition default.
func (c Config) String(key string, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Instance is one configured, addressable use of an indicator definition.
// Identity is stable across recalculation; it is the cache key.
type Instance struct {
	ID          string `json:"instance_id"`
	IndicatorID string `json:"indicator_id"`
	Config      Config `json:"config"`
	Visible     bool   `json:"visible"`
	Label       string `json:"label,omitempty"`
}

// OutputKind is the closed set of indicator output shapes.
type OutputKind string

const (
	KindLine      OutputKind = "line"
	KindHistogram OutputKind = "histogram"
	KindBand      OutputKind = "band"
	KindMulti     OutputKind = "multi"
)

// Point is one value of an output series. Series are ordered by time and may
// be shorter than the input candles (warm-up period, NaN filtering).
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// NamedSeries is one sub-series of a multi output.
type NamedSeries struct {
	Key    string     `json:"key"`
	Kind   SeriesKind `json:"kind"`
	Points []Point    `json:"points"`
}

// Output is the tagged union of calculator results. Exactly the fields for
// Kind are populated: Points for line/histogram, Upper/Middle/Lower for
// band, Series for multi.
type Output struct {
	Kind   OutputKind    `json:"kind"`
	Points []Point       `json:"points,omitempty"`
	Upper  []Point       `json:"upper,omitempty"`
	Middle []Point       `json:"middle,omitempty"`
	Lower  []Point       `json:"lower,omitempty"`
	Series []NamedSeries `json:"series,omitempty"`
}

// Calculated is the unit handed to the renderer: the instance, its
// definition, and either an output or a per-instance error.
type Calculated struct {
	Instance   Instance    `json:"instance"`
	Definition *Definition `json:"definition"`
	Output     *Output     `json:"output"`
	Err        string      `json:"error,omitempty"`
}

// CalcFunc computes an indicator over an ascending OHLCV series. It must be
// pure, must not mutate data, and may assume len(data) >= MinData(cfg).
type CalcFunc func(data []models.OHLCVPoint, cfg Config) (*Output, error)

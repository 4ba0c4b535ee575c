package models

import "time"

// Tick is a single trade print from the market stream.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}

// Candle represents one OHLCV bucket as stored and served to clients.
// Feeds deliver candles newest-first (descending by Timestamp).
type Candle struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// OHLCVPoint is the chart-ready form of a candle: ascending by time,
// unix-second timestamps, plain floats. Derived 1:1 from Candle by the
// normalizer.
type OHLCVPoint struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// VolumePoint is one bar of the volume histogram. Up reports whether the
// candle closed at or above its open, which drives the bar color.
type VolumePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Up    bool    `json:"up"`
}

// CandlePage is one page of a descending candle feed.
type CandlePage struct {
	Candles    []Candle `json:"candles"`
	NextCursor string   `json:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more"`
}

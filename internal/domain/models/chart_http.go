package models

// Requests for the chart HTTP endpoints. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	Cursor string `query:"cursor" json:"cursor"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type CreateSessionRequest struct {
	Symbol      string `json:"symbol" validate:"required"`
	TF          string `json:"tf" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	AutoRefresh bool   `json:"auto_refresh" default:"true"`
	Limit       int    `json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type AddIndicatorRequest struct {
	IndicatorID string         `json:"indicator_id" validate:"required"`
	Config      map[string]any `json:"config"`
	Label       string         `json:"label"`
}

type UpdateIndicatorRequest struct {
	Config  map[string]any `json:"config"`
	Visible *bool          `json:"visible"`
	Label   *string        `json:"label"`
}

type ReplayToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type ReplaySeekRequest struct {
	Step int `json:"step" validate:"gte=0"`
}

type ReplaySpeedRequest struct {
	Speed float64 `json:"speed" validate:"gt=0,lte=10"`
}

type ReplayStepRequest struct {
	Delta int `json:"delta" default:"1" validate:"ne=0,gte=-1000,lte=1000"`
}

type ReplayAnimateRequest struct {
	Animate bool `json:"animate"`
}

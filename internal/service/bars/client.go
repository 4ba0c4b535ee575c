// Package bars fetches historical candles from the market data REST API,
// used by the backfill coordinator to fill gaps the live stream missed.
package bars

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/service/ratelimit"
	xhttp "CandleScope/pkg/http"
	applogger "CandleScope/pkg/logger"
	"CandleScope/pkg/util"
)

// tfParam maps our timeframes onto the API's bar resolutions.
var tfParam = map[drepo.Timeframe]string{
	drepo.TF1m:  "1Min",
	drepo.TF5m:  "5Min",
	drepo.TF15m: "15Min",
	drepo.TF30m: "30Min",
	drepo.TF1h:  "1Hour",
	drepo.TF4h:  "4Hour",
	drepo.TF1d:  "1Day",
}

// Client pages through the bars endpoint with a token-bucket rate limit so
// backfill bursts stay inside the provider's request budget.
type Client struct {
	http      *xhttp.Client
	baseURL   string
	apiKey    string
	apiSecret string
	pageLimit int
	limiter   *ratelimit.Limiter
	rateRPS   float64
	log       *applogger.Logger
}

type Option func(*Client)

func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rateRPS = rps
		}
	}
}

func New(httpClient *xhttp.Client, baseURL, apiKey, apiSecret string, log *applogger.Logger, opts ...Option) *Client {
	if log == nil {
		log = applogger.Nop()
	}
	c := &Client{
		http:      httpClient,
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		pageLimit: 1000,
		limiter:   ratelimit.New(),
		rateRPS:   3,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type barsResponse struct {
	Bars []struct {
		T time.Time `json:"t"`
		O float64   `json:"o"`
		H float64   `json:"h"`
		L float64   `json:"l"`
		C float64   `json:"c"`
		V float64   `json:"v"`
	} `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// Fetch returns all bars for symbol/tf in [from, to], ascending, following
// pagination tokens until the range is exhausted.
func (c *Client) Fetch(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	resolution, ok := tfParam[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	from, to = util.AlignFromTo(from, to, string(tf))

	var out []*models.Candle
	pageToken := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		params := map[string][]string{
			"timeframe": {resolution},
			"start":     {from.UTC().Format(time.RFC3339)},
			"end":       {to.UTC().Format(time.RFC3339)},
			"limit":     {strconv.Itoa(c.pageLimit)},
		}
		if pageToken != "" {
			params["page_token"] = []string{pageToken}
		}

		var resp barsResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    fmt.Sprintf("%s/v2/stocks/%s/bars", c.baseURL, symbol),
			Headers: map[string]string{
				"APCA-API-KEY-ID":     c.apiKey,
				"APCA-API-SECRET-KEY": c.apiSecret,
			},
			QueryParams: params,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch bars %s %s: %w", symbol, tf, err)
		}

		for _, b := range resp.Bars {
			out = append(out, &models.Candle{
				Symbol:    symbol,
				Timestamp: b.T.UTC(),
				Open:      b.O,
				High:      b.H,
				Low:       b.L,
				Close:     b.C,
				Volume:    b.V,
			})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		pageToken = *resp.NextPageToken
	}

	c.log.Debug("bars fetched",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("count", len(out)),
	)
	return out, nil
}

// wait blocks until a request token is available or the context ends.
func (c *Client) wait(ctx context.Context) error {
	for !c.limiter.Allow("bars", c.rateRPS, c.rateRPS) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

package bars

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "CandleScope/internal/domain/repository"
	xhttp "CandleScope/pkg/http"
)

func TestFetchFollowsPagination(t *testing.T) {
	var gotKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeys = append(gotKeys, r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "/v2/stocks/AAPL/bars", r.URL.Path)
		assert.Equal(t, "1Min", r.URL.Query().Get("timeframe"))

		token := "page-2"
		resp := map[string]any{
			"bars": []map[string]any{
				{"t": "2024-01-02T10:00:00Z", "o": 100.0, "h": 102.0, "l": 99.0, "c": 101.0, "v": 10.0},
			},
			"next_page_token": &token,
		}
		if r.URL.Query().Get("page_token") == "page-2" {
			resp = map[string]any{
				"bars": []map[string]any{
					{"t": "2024-01-02T10:01:00Z", "o": 101.0, "h": 103.0, "l": 100.0, "c": 102.0, "v": 12.0},
				},
				"next_page_token": nil,
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), srv.URL, "key-id", "secret", nil)

	from := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	candles, err := c.Fetch(context.Background(), "AAPL", drepo.TF1m, from, from.Add(2*time.Minute))
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, []string{"key-id", "key-id"}, gotKeys)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 102.0, candles[1].Close)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
}

func TestFetchAlignsWindowToBuckets(t *testing.T) {
	var gotStart, gotEnd string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		_ = json.NewEncoder(w).Encode(map[string]any{"bars": []map[string]any{}, "next_page_token": nil})
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), srv.URL, "k", "s", nil)

	from := time.Date(2024, 1, 2, 10, 0, 37, 0, time.UTC)
	to := time.Date(2024, 1, 2, 10, 12, 14, 0, time.UTC)
	_, err := c.Fetch(context.Background(), "AAPL", drepo.TF5m, from, to)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02T10:00:00Z", gotStart)
	assert.Equal(t, "2024-01-02T10:10:00Z", gotEnd)
}

func TestFetchRejectsUnknownTimeframe(t *testing.T) {
	c := New(xhttp.NewClient(), "http://unused", "k", "s", nil)
	_, err := c.Fetch(context.Background(), "AAPL", drepo.Timeframe("2w"), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported timeframe")
}

func TestFetchSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(xhttp.NewClient(), srv.URL, "k", "s", nil)
	_, err := c.Fetch(context.Background(), "AAPL", drepo.TF1m, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

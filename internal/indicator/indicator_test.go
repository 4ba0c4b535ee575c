package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
)

func testSeries(n int) []models.OHLCVPoint {
	out := make([]models.OHLCVPoint, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		out[i] = models.OHLCVPoint{
			Time:   int64(1700000000 + i*60),
			Open:   base,
			High:   base + 2,
			Low:    base - 1,
			Close:  base + 1,
			Volume: 1000 + float64(i)*10,
		}
	}
	return out
}

func TestRegistryCatalog(t *testing.T) {
	defs := Definitions()
	require.NotEmpty(t, defs)

	seen := map[string]bool{}
	for _, d := range defs {
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.NotEmpty(t, d.Name)
		assert.NotEmpty(t, d.Outputs, "%s has no output schema", d.ID)
		assert.Contains(t, []Category{CategoryOverlay, CategoryPanel}, d.Category)
	}

	for _, id := range []string{"sma", "ema", "wma", "vwma", "bbands", "keltner", "donchian", "atr", "rsi", "stoch", "macd", "roc", "volume", "obv", "mfi"} {
		_, ok := Get(id)
		assert.True(t, ok, "missing %s", id)
	}

	_, ok := Get("nope")
	assert.False(t, ok)
}

func TestSMA(t *testing.T) {
	data := testSeries(10)
	out, err := Calculate("sma", data, Config{"period": 5})
	require.NoError(t, err)
	require.Equal(t, KindLine, out.Kind)

	// Warm-up dropped: 10 inputs, period 5 => 6 points starting at index 4.
	require.Len(t, out.Points, 6)
	assert.Equal(t, data[4].Time, out.Points[0].Time)
	// Closes 101..105 => mean 103.
	assert.InDelta(t, 103.0, out.Points[0].Value, 1e-9)
	assert.InDelta(t, 108.0, out.Points[5].Value, 1e-9)
}

func TestEMASeededWithSMA(t *testing.T) {
	data := testSeries(6)
	out, err := Calculate("ema", data, Config{"period": 5})
	require.NoError(t, err)
	require.Len(t, out.Points, 2)
	assert.InDelta(t, 103.0, out.Points[0].Value, 1e-9)
	// k = 2/6; next = (106-103)*k + 103 = 104.
	assert.InDelta(t, 104.0, out.Points[1].Value, 1e-9)
}

func TestWMA(t *testing.T) {
	data := testSeries(5)
	out, err := Calculate("wma", data, Config{"period": 3})
	require.NoError(t, err)
	require.Len(t, out.Points, 3)
	// Closes 101,102,103 weighted 1,2,3 => (101+204+309)/6.
	assert.InDelta(t, 614.0/6.0, out.Points[0].Value, 1e-9)
}

func TestBollingerBandShape(t *testing.T) {
	data := testSeries(30)
	out, err := Calculate("bbands", data, Config{"period": 20, "mult": 2.0})
	require.NoError(t, err)
	require.Equal(t, KindBand, out.Kind)
	require.Len(t, out.Middle, 11)
	require.Len(t, out.Upper, 11)
	require.Len(t, out.Lower, 11)

	for i := range out.Middle {
		assert.Equal(t, out.Middle[i].Time, out.Upper[i].Time)
		assert.GreaterOrEqual(t, out.Upper[i].Value, out.Middle[i].Value)
		assert.LessOrEqual(t, out.Lower[i].Value, out.Middle[i].Value)
		// Symmetric around the basis.
		assert.InDelta(t, out.Upper[i].Value-out.Middle[i].Value, out.Middle[i].Value-out.Lower[i].Value, 1e-9)
	}
}

func TestDonchian(t *testing.T) {
	data := testSeries(25)
	out, err := Calculate("donchian", data, Config{"period": 20})
	require.NoError(t, err)
	require.Len(t, out.Upper, 6)
	// Highs run base+2, so the 20-bar high at index 19 is 119+2.
	assert.InDelta(t, 121.0, out.Upper[0].Value, 1e-9)
	assert.InDelta(t, 99.0, out.Lower[0].Value, 1e-9)
}

func TestRSIMonotonicUptrend(t *testing.T) {
	data := testSeries(30) // strictly rising closes
	out, err := Calculate("rsi", data, Config{"period": 14})
	require.NoError(t, err)
	require.Equal(t, KindLine, out.Kind)
	require.Len(t, out.Points, 30-14)
	for _, p := range out.Points {
		assert.InDelta(t, 100.0, p.Value, 1e-9, "all-gains series must pin RSI at 100")
	}
}

func TestRSIRange(t *testing.T) {
	data := testSeries(40)
	// Perturb into a zig-zag so gains and losses both occur.
	for i := range data {
		if i%2 == 0 {
			data[i].Close -= 3
		}
	}
	out, err := Calculate("rsi", data, Config{"period": 14})
	require.NoError(t, err)
	for _, p := range out.Points {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, 100.0)
	}
}

func TestStochasticSeries(t *testing.T) {
	data := testSeries(40)
	out, err := Calculate("stoch", data, Config{"k_period": 14, "k_smooth": 3, "d_period": 3})
	require.NoError(t, err)
	require.Equal(t, KindMulti, out.Kind)
	require.Len(t, out.Series, 2)
	assert.Equal(t, "k", out.Series[0].Key)
	assert.Equal(t, "d", out.Series[1].Key)
	// %D lags %K by d_period-1: sub-series lengths legitimately differ.
	assert.Greater(t, len(out.Series[0].Points), len(out.Series[1].Points))
	for _, s := range out.Series {
		for _, p := range s.Points {
			assert.GreaterOrEqual(t, p.Value, 0.0)
			assert.LessOrEqual(t, p.Value, 100.0)
		}
	}
}

func TestMACDSeries(t *testing.T) {
	data := testSeries(60)
	out, err := Calculate("macd", data, Config{"fast": 12, "slow": 26, "signal": 9})
	require.NoError(t, err)
	require.Equal(t, KindMulti, out.Kind)
	require.Len(t, out.Series, 3)

	macd, sig, hist := out.Series[0], out.Series[1], out.Series[2]
	assert.Equal(t, SeriesLine, macd.Kind)
	assert.Equal(t, SeriesHistogram, hist.Kind)
	// MACD line defined from index slow-1; signal lags it by signal-1 more.
	assert.Len(t, macd.Points, 60-25)
	assert.Len(t, sig.Points, 60-25-8)
	assert.Len(t, hist.Points, len(sig.Points))
	// Histogram is macd - signal at aligned times.
	assert.InDelta(t, macd.Points[len(macd.Points)-1].Value-sig.Points[len(sig.Points)-1].Value,
		hist.Points[len(hist.Points)-1].Value, 1e-9)
}

func TestOBV(t *testing.T) {
	data := testSeries(5) // rising closes: every bar adds its volume
	out, err := Calculate("obv", data, Config{})
	require.NoError(t, err)
	require.Len(t, out.Points, 4)
	assert.InDelta(t, data[1].Volume, out.Points[0].Value, 1e-9)
	assert.InDelta(t, data[1].Volume+data[2].Volume+data[3].Volume+data[4].Volume,
		out.Points[3].Value, 1e-9)
}

func TestVolumeHistogramWithMA(t *testing.T) {
	data := testSeries(25)
	out, err := Calculate("volume", data, Config{"ma_period": 20})
	require.NoError(t, err)
	require.Equal(t, KindMulti, out.Kind)
	require.Len(t, out.Series, 2)
	assert.Len(t, out.Series[0].Points, 25)
	assert.Len(t, out.Series[1].Points, 6)

	out2, err := Calculate("volume", data, Config{"show_ma": false})
	require.NoError(t, err)
	assert.Len(t, out2.Series, 1)
}

func TestCalculatorsDoNotMutateInput(t *testing.T) {
	data := testSeries(60)
	snapshot := make([]models.OHLCVPoint, len(data))
	copy(snapshot, data)

	for _, d := range Definitions() {
		_, err := Calculate(d.ID, data, Config{})
		require.NoError(t, err, d.ID)
	}
	assert.Equal(t, snapshot, data)
}

func TestMinDataFollowsConfig(t *testing.T) {
	cases := []struct {
		id   string
		cfg  Config
		want int
	}{
		{"sma", Config{"period": 20}, 20},
		{"sma", Config{"period": 50}, 50},
		{"atr", Config{"period": 14}, 15},
		{"rsi", Config{}, 15},
		{"macd", Config{}, 34},
		{"keltner", Config{"period": 20, "atr_period": 30}, 31},
		{"volume", Config{}, 1},
	}
	for _, tc := range cases {
		e, ok := Get(tc.id)
		require.True(t, ok, tc.id)
		assert.Equal(t, tc.want, e.Definition.MinData(tc.cfg), "%s %v", tc.id, tc.cfg)
	}
}

func TestConfigHash(t *testing.T) {
	a := Config{"period": 20, "color": "#fff"}
	b := Config{"color": "#fff", "period": 20}
	assert.Equal(t, a.Hash(), b.Hash(), "hash must be order independent")

	c := Config{"period": 21, "color": "#fff"}
	assert.NotEqual(t, a.Hash(), c.Hash(), "any parameter change must change the hash")

	assert.Empty(t, Config{}.Hash())
}

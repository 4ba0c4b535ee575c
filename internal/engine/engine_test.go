package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleScope/internal/domain/models"
	"CandleScope/internal/indicator"
)

func newTestEngine(t *testing.T, candles int) (*Engine, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	e := New(NewInstanceStore(), WithScheduler(sched))
	e.SetCandles(feedCandles(candles))
	return e, sched
}

func TestEngineReplayMinDataGate(t *testing.T) {
	e, _ := newTestEngine(t, 25)
	_, err := e.Instances().Add("sma", indicator.Config{"period": 20}, "")
	require.NoError(t, err)

	e.EnableReplay()

	// The buffer holds all 25 candles from the first frame, but the SMA is
	// only entitled to appear once the playhead has revealed 20.
	for _, step := range []int{1, 10, 19} {
		e.Seek(step)
		frame := e.Frame()
		require.Len(t, frame.Overlays, 1, "step %d", step)
		assert.Nil(t, frame.Overlays[0].Output, "step %d", step)
		assert.Contains(t, frame.Overlays[0].Err, "insufficient data", "step %d", step)
		assert.Len(t, frame.Series, step)
	}

	e.Seek(20)
	frame := e.Frame()
	require.NotNil(t, frame.Overlays[0].Output)
	require.Len(t, frame.Overlays[0].Output.Points, 1)
	assert.InDelta(t, 110.5, frame.Overlays[0].Output.Points[0].Value, 1e-9)

	e.Seek(25)
	frame = e.Frame()
	pts := frame.Overlays[0].Output.Points
	require.Len(t, pts, 6, "one point per candle from the 20th on")
	assert.InDelta(t, 115.5, pts[len(pts)-1].Value, 1e-9)
	assert.NotEmpty(t, frame.ReplayLabel)
}

func TestEngineLiveCloseUpdateRecomputes(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	_, err := e.Instances().Add("sma", indicator.Config{"period": 5}, "")
	require.NoError(t, err)

	frame := e.Frame()
	require.Len(t, frame.Overlays, 1)
	pts := frame.Overlays[0].Output.Points
	assert.InDelta(t, 128.0, pts[len(pts)-1].Value, 1e-9)

	// The forming candle's close moves; count and bounds stay the same.
	candles := feedCandles(30)
	candles[0].Close = 200
	e.SetCandles(candles)

	frame = e.Frame()
	pts = frame.Overlays[0].Output.Points
	assert.InDelta(t, 142.0, pts[len(pts)-1].Value, 1e-9,
		"a mutated close must surface a fresh value, not the cached one")
}

func TestEngineFrameIdempotence(t *testing.T) {
	e, _ := newTestEngine(t, 60)
	_, err := e.Instances().Add("sma", indicator.Config{"period": 20}, "")
	require.NoError(t, err)
	_, err = e.Instances().Add("rsi", nil, "")
	require.NoError(t, err)

	a := e.Frame()
	b := e.Frame()
	require.Len(t, a.Overlays, 1)
	require.Len(t, a.Panels, 1)
	assert.Same(t, a.Overlays[0].Output, b.Overlays[0].Output)
	assert.Same(t, a.Panels[0].Output, b.Panels[0].Output)
}

func TestEngineSplitsOverlaysAndPanels(t *testing.T) {
	e, _ := newTestEngine(t, 60)
	e.Instances().Add("bbands", nil, "")
	e.Instances().Add("macd", nil, "")
	e.Instances().Add("volume", nil, "")

	frame := e.Frame()
	assert.Len(t, frame.Overlays, 1)
	assert.Len(t, frame.Panels, 2)
}

func TestEngineVolumeDirection(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	frame := e.Frame()
	require.Len(t, frame.Volume, 10)
	for i, v := range frame.Volume {
		assert.Equal(t, frame.Series[i].Time, v.Time)
		assert.True(t, v.Up, "fixture closes above its opens")
	}
}

func TestEngineDisableReplayRevealsAll(t *testing.T) {
	e, _ := newTestEngine(t, 40)
	e.Instances().Add("sma", indicator.Config{"period": 5}, "")

	e.EnableReplay()
	e.Seek(10)
	frame := e.Frame()
	assert.Len(t, frame.Series, 10)
	assert.True(t, frame.Replay.Enabled)

	e.DisableReplay()
	frame = e.Frame()
	assert.Len(t, frame.Series, 40)
	assert.False(t, frame.Replay.Enabled)
	assert.Empty(t, frame.ReplayLabel)
}

func TestEnginePrependShiftsReplayPosition(t *testing.T) {
	e, _ := newTestEngine(t, 40)
	e.EnableReplay()
	e.Seek(10)
	target := e.Data()[9].Time

	// History pagination prepends 20 older candles to the same feed.
	older := feedCandles(60)
	for i := range older {
		older[i].Timestamp = older[i].Timestamp.Add(-20 * time.Minute)
	}
	e.SetCandles(older)
	st := e.ReplayState()
	assert.Equal(t, 30, st.CurrentStep)
	assert.Equal(t, 60, st.TotalSteps)
	assert.Equal(t, target, e.Data()[st.CurrentStep-1].Time,
		"the playhead still points at the same logical candle")
}

func TestEngineAnimatedFrameInterpolatesLastCandle(t *testing.T) {
	e, sched := newTestEngine(t, 40)
	e.EnableReplay()
	e.Seek(10)
	e.SetAnimate(true)
	e.Play()
	sched.fire() // one animation frame, progress well below 1

	frame := e.Frame()
	require.Len(t, frame.Series, 10)
	st := frame.Replay
	require.True(t, st.Animate)
	require.Less(t, st.AnimationProgress, 1.0)

	forming := frame.Series[9]
	committed := e.Data()[9]
	assert.Equal(t, committed.Time, forming.Time)
	assert.Equal(t, committed.Open, forming.Open)
	assert.Less(t, forming.High, committed.High, "wicks are still growing")
	assert.Less(t, forming.Volume, committed.Volume)
	assert.Equal(t, committed, e.Data()[9], "the committed series is untouched")
}

func TestFormingCandlePhases(t *testing.T) {
	target := feedCandlePoint()

	early := formingCandle(target, 0.2)
	assert.Equal(t, target.Open, early.Close, "body holds at the open while wicks grow")
	assert.Less(t, early.High, target.High)
	assert.Greater(t, early.Low, target.Low)

	mid := formingCandle(target, 0.5)
	assert.Equal(t, target.High, mid.High)
	assert.Equal(t, target.Low, mid.Low)
	assert.Less(t, mid.Close, target.Close, "body extends toward the close")
	assert.Greater(t, mid.Close, target.Open)

	late := formingCandle(target, 0.99)
	assert.InDelta(t, target.Close, late.Close, 0.05)

	assert.Equal(t, target, formingCandle(target, 1))
}

func feedCandlePoint() (p models.OHLCVPoint) {
	var n Normalizer
	pts := n.Normalize(feedCandles(1))
	return pts[0]
}

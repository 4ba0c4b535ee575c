package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler queues callbacks so tests drive the replay clock by hand.
type fakeScheduler struct {
	pending []*fakeTimer
}

type fakeTimer struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

func (s *fakeScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := &fakeTimer{d: d, fn: fn}
	s.pending = append(s.pending, t)
	return func() { t.cancelled = true }
}

// fire runs the oldest live timer and returns its scheduled delay.
func (s *fakeScheduler) fire() (time.Duration, bool) {
	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		if t.cancelled {
			continue
		}
		t.fn()
		return t.d, true
	}
	return 0, false
}

func (s *fakeScheduler) live() int {
	n := 0
	for _, t := range s.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func newTestReplay(total int) (*Replay, *fakeScheduler) {
	sched := &fakeScheduler{}
	r := NewReplay(sched)
	r.SetTotalSteps(total, 0)
	return r, sched
}

func TestReplayLifecycle(t *testing.T) {
	r, _ := newTestReplay(100)

	st := r.State()
	assert.False(t, st.Enabled)
	assert.Equal(t, 100, st.CurrentStep, "disabled replay tracks the series end")

	r.Enable()
	st = r.State()
	assert.True(t, st.Enabled)
	assert.False(t, st.Playing)
	assert.Equal(t, 1, st.CurrentStep, "entering replay from the end rewinds to the first candle")

	r.Seek(40)
	r.Disable()
	st = r.State()
	assert.False(t, st.Enabled)
	assert.Equal(t, 100, st.CurrentStep, "leaving replay reveals the full series")

	r.Seek(40)
	assert.Equal(t, 100, r.State().CurrentStep, "seek is a no-op while disabled")
}

func TestReplayEnableKeepsMidSeriesPlayhead(t *testing.T) {
	r, _ := newTestReplay(100)
	r.Enable()
	r.Seek(40)
	r.Disable()
	// Disable snapped to 100, so re-enabling rewinds again.
	r.Enable()
	assert.Equal(t, 1, r.State().CurrentStep)
}

func TestReplayPlayAdvancesOnCadence(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.Play()
	require.True(t, r.State().Playing)

	d, ok := sched.fire()
	require.True(t, ok)
	assert.Equal(t, 800*time.Millisecond, d, "speed 1 steps every 800ms")
	assert.Equal(t, 2, r.State().CurrentStep)

	sched.fire()
	sched.fire()
	assert.Equal(t, 4, r.State().CurrentStep)

	r.Pause()
	assert.False(t, r.State().Playing)
	_, ok = sched.fire()
	if ok {
		assert.Equal(t, 4, r.State().CurrentStep, "a late tick after pause must not move the playhead")
	}
}

func TestReplaySpeedInterval(t *testing.T) {
	cases := []struct {
		speed float64
		want  time.Duration
	}{
		{1, 800 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{4, 200 * time.Millisecond},
		{10, 120 * time.Millisecond},
		{50, 120 * time.Millisecond},
	}
	for _, tc := range cases {
		r, sched := newTestReplay(100)
		r.Enable()
		r.SetSpeed(tc.speed)
		r.Play()
		d, ok := sched.fire()
		require.True(t, ok)
		assert.Equal(t, tc.want, d, "speed %v", tc.speed)
	}
}

func TestReplaySpeedChangeReschedules(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.Play()
	r.SetSpeed(4)

	d, ok := sched.fire()
	require.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, d, "the pending 800ms timer is replaced")
	assert.Equal(t, 2, r.State().CurrentStep, "rescheduling does not double-step")
}

func TestReplayAutoPauseAtEnd(t *testing.T) {
	r, sched := newTestReplay(5)
	r.Enable()
	r.Play()

	for i := 0; i < 10; i++ {
		if _, ok := sched.fire(); !ok {
			break
		}
	}
	st := r.State()
	assert.Equal(t, 5, st.CurrentStep)
	assert.False(t, st.Playing, "playback pauses when the playhead reaches the last candle")
	assert.Zero(t, sched.live(), "no timer left armed after auto-pause")

	r.Play()
	assert.False(t, r.State().Playing, "play at the end is a no-op")
}

func TestReplaySeekClamps(t *testing.T) {
	r, _ := newTestReplay(100)
	r.Enable()

	r.Seek(-5)
	assert.Equal(t, 1, r.State().CurrentStep)
	r.Seek(500)
	assert.Equal(t, 100, r.State().CurrentStep)
	r.Seek(42)
	assert.Equal(t, 42, r.State().CurrentStep)
}

func TestReplayStepByPausesFirst(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.Seek(10)
	r.Play()

	r.StepBy(1)
	st := r.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 11, st.CurrentStep)

	r.StepBy(-3)
	assert.Equal(t, 8, r.State().CurrentStep)
	assert.Zero(t, sched.live())

	r.StepBy(-100)
	assert.Equal(t, 1, r.State().CurrentStep)
}

func TestReplayPrependShiftsPlayhead(t *testing.T) {
	r, _ := newTestReplay(100)
	r.Enable()
	r.Seek(30)

	// 25 older candles paginated in; the playhead still points at the same
	// logical candle.
	r.SetTotalSteps(125, 25)
	assert.Equal(t, 55, r.State().CurrentStep)

	r.SetTotalSteps(126, 0)
	assert.Equal(t, 55, r.State().CurrentStep, "appends leave the playhead alone")
}

func TestReplayAnimationCommitsAfterFullProgress(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.SetSpeed(10) // 120ms step interval, so each 16ms frame adds 16/120
	r.SetAnimate(true)
	r.Play()

	st := r.State()
	require.True(t, st.Playing)
	assert.Zero(t, st.AnimationProgress)

	for i := 0; i < 7; i++ {
		d, ok := sched.fire()
		require.True(t, ok)
		assert.Equal(t, 16*time.Millisecond, d)
	}
	st = r.State()
	assert.Equal(t, 1, st.CurrentStep, "step holds until progress reaches 1")
	assert.InDelta(t, 7*16.0/120.0, st.AnimationProgress, 1e-9)

	sched.fire()
	st = r.State()
	assert.Equal(t, 2, st.CurrentStep, "eighth frame crosses 1 and commits the step")
	assert.Zero(t, st.AnimationProgress, "progress restarts for the next candle")
}

func TestReplayAnimateToggleMidPlayback(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.Play()
	sched.fire()
	require.Equal(t, 2, r.State().CurrentStep)

	r.SetAnimate(true)
	d, ok := sched.fire()
	require.True(t, ok)
	assert.Equal(t, 16*time.Millisecond, d, "toggling animation swaps to frame cadence")

	r.SetAnimate(false)
	st := r.State()
	assert.True(t, st.Playing)
	assert.Equal(t, float64(1), st.AnimationProgress)
	d, ok = sched.fire()
	require.True(t, ok)
	assert.Equal(t, 800*time.Millisecond, d)
}

func TestReplayCloseCancelsTimer(t *testing.T) {
	r, sched := newTestReplay(100)
	r.Enable()
	r.Play()
	r.Close()

	assert.Zero(t, sched.live())
	_, ok := sched.fire()
	assert.False(t, ok)
	assert.False(t, r.State().Playing)
}

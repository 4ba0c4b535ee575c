package engine

import (
	"sync"
	"time"

	"CandleScope/internal/domain/models"
)

// Step cadence: 800ms at speed 1, floored at 120ms however fast the user
// cranks the multiplier. Animation frames run at roughly 60fps.
const (
	baseStepInterval = 800 * time.Millisecond
	minStepInterval  = 120 * time.Millisecond
	frameInterval    = 16 * time.Millisecond
)

// Replay is the step controller: stopped (disabled, full series shown),
// paused (enabled, holding), or playing (advancing on a timer). All timing
// goes through the injected Scheduler.
type Replay struct {
	mu     sync.Mutex
	sched  Scheduler
	st     models.ReplayState
	cancel CancelFunc
}

func NewReplay(sched Scheduler) *Replay {
	if sched == nil {
		sched = NewScheduler()
	}
	return &Replay{
		sched: sched,
		st:    models.ReplayState{Speed: 1, AnimationProgress: 1},
	}
}

// State returns a copy of the current replay state.
func (r *Replay) State() models.ReplayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// SetTotalSteps records the live series length. shift is how many candles
// were prepended before the playhead (history pagination); the playhead
// moves with them so it keeps pointing at the same logical candle.
func (r *Replay) SetTotalSteps(total, shift int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.TotalSteps = total
	if !r.st.Enabled {
		r.st.CurrentStep = total
		return
	}
	r.st.CurrentStep = clampStep(r.st.CurrentStep+shift, total)
}

// Enable enters replay. A playhead sitting at the end is reset to the first
// candle; otherwise it is left where it was.
func (r *Replay) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.Enabled {
		return
	}
	r.st.Enabled = true
	r.st.Playing = false
	r.st.AnimationProgress = 1
	if r.st.CurrentStep >= r.st.TotalSteps || r.st.CurrentStep <= 0 {
		r.st.CurrentStep = clampStep(1, r.st.TotalSteps)
	}
}

// Disable leaves replay: playback stops and the full series is revealed.
func (r *Replay) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.st.Enabled = false
	r.st.CurrentStep = r.st.TotalSteps
	r.st.AnimationProgress = 1
}

// Play starts advancing on the step cadence.
func (r *Replay) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.st.Enabled || r.st.Playing || r.st.CurrentStep >= r.st.TotalSteps {
		return
	}
	r.st.Playing = true
	if r.st.Animate {
		r.st.AnimationProgress = 0
		r.scheduleLocked(frameInterval, r.frameTick)
	} else {
		r.scheduleLocked(r.intervalLocked(), r.stepTick)
	}
}

// Pause halts playback, leaving the playhead in place.
func (r *Replay) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Seek jumps the playhead, instantaneous and without animation. Targets are
// clamped to [1, totalSteps] (0 only when the series is empty).
func (r *Replay) Seek(target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.st.Enabled {
		return
	}
	r.st.CurrentStep = clampStep(target, r.st.TotalSteps)
	r.st.AnimationProgress = 1
}

// StepBy pauses playback and moves the playhead by delta candles.
func (r *Replay) StepBy(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.st.Enabled {
		return
	}
	r.stopLocked()
	r.st.CurrentStep = clampStep(r.st.CurrentStep+delta, r.st.TotalSteps)
}

// SetSpeed changes the playback multiplier, rescheduling a running timer.
func (r *Replay) SetSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if speed <= 0 {
		return
	}
	r.st.Speed = speed
	if r.st.Playing && !r.st.Animate {
		r.cancelLocked()
		r.scheduleLocked(r.intervalLocked(), r.stepTick)
	}
}

// SetAnimate toggles sub-step candle-formation animation.
func (r *Replay) SetAnimate(animate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.Animate == animate {
		return
	}
	r.st.Animate = animate
	if !r.st.Playing {
		r.st.AnimationProgress = 1
		return
	}
	r.cancelLocked()
	if animate {
		r.st.AnimationProgress = 0
		r.scheduleLocked(frameInterval, r.frameTick)
	} else {
		r.st.AnimationProgress = 1
		r.scheduleLocked(r.intervalLocked(), r.stepTick)
	}
}

// Close cancels any pending timer. No callback fires after Close returns.
func (r *Replay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Replay) stepTick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.st.Playing {
		return
	}
	r.advanceLocked()
	if r.st.Playing {
		r.scheduleLocked(r.intervalLocked(), r.stepTick)
	}
}

// frameTick drives the 0→1 formation progress; the committed step only
// advances once progress reaches 1.
func (r *Replay) frameTick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.st.Playing {
		return
	}
	r.st.AnimationProgress += float64(frameInterval) / float64(r.intervalLocked())
	if r.st.AnimationProgress >= 1 {
		r.st.AnimationProgress = 0
		r.advanceLocked()
	}
	if r.st.Playing {
		r.scheduleLocked(frameInterval, r.frameTick)
	}
}

func (r *Replay) advanceLocked() {
	r.st.CurrentStep++
	if r.st.CurrentStep >= r.st.TotalSteps {
		r.st.CurrentStep = r.st.TotalSteps
		r.stopLocked()
	}
}

func (r *Replay) stopLocked() {
	r.cancelLocked()
	r.st.Playing = false
	r.st.AnimationProgress = 1
}

func (r *Replay) cancelLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Replay) scheduleLocked(d time.Duration, fn func()) {
	r.cancel = r.sched.After(d, fn)
}

func (r *Replay) intervalLocked() time.Duration {
	iv := time.Duration(float64(baseStepInterval) / r.st.Speed)
	if iv < minStepInterval {
		iv = minStepInterval
	}
	return iv
}

func clampStep(step, total int) int {
	if total <= 0 {
		return 0
	}
	if step < 1 {
		return 1
	}
	if step > total {
		return total
	}
	return step
}

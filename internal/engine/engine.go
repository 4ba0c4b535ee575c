package engine

import (
	"fmt"
	"sync"
	"time"

	"CandleScope/internal/domain/models"
	domrepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/indicator"
)

// ChartFrame is everything the renderer needs for one draw: the revealed
// price/volume series, computed indicators split by axis, and the replay
// state with a human-readable playhead label.
type ChartFrame struct {
	Series      []models.OHLCVPoint    `json:"series"`
	Volume      []models.VolumePoint   `json:"volume"`
	Overlays    []indicator.Calculated `json:"overlays"`
	Panels      []indicator.Calculated `json:"panels"`
	Replay      models.ReplayState     `json:"replay"`
	ReplayLabel string                 `json:"replay_label,omitempty"`
}

// Engine owns the calculation pipeline of one chart session: normalizer,
// per-instance calculation cache, replay buffer and step controller. It
// reads the instance store; the session layer is the only writer. One mutex
// serializes candle updates, config-driven recomputes and replay ticks, so
// a buffer recompute never interleaves with an instance edit.
type Engine struct {
	mu      sync.Mutex
	norm    Normalizer
	cache   *CalcCache
	buffer  *ReplayBuffer
	replay  *Replay
	store   *InstanceStore
	metrics domrepo.Metrics

	candles []models.Candle
	data    []models.OHLCVPoint
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookahead overrides the replay buffer window constants.
func WithLookahead(lookahead, threshold int) Option {
	return func(e *Engine) { e.buffer = NewReplayBuffer(lookahead, threshold) }
}

// WithScheduler injects the replay clock (tests pass a fake).
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.replay = NewReplay(s) }
}

// WithMetrics wires cache/buffer instrumentation.
func WithMetrics(m domrepo.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(store *InstanceStore, opts ...Option) *Engine {
	e := &Engine{
		cache:  NewCalcCache(),
		buffer: NewReplayBuffer(DefaultLookahead, DefaultEdgeThreshold),
		replay: NewReplay(nil),
		store:  store,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Instances exposes the session's instance store.
func (e *Engine) Instances() *InstanceStore { return e.store }

// SetCandles feeds the engine the latest descending candle list. Candles
// prepended before the playhead (history pagination) shift the replay
// position so it keeps pointing at the same logical candle; appended live
// candles only extend totalSteps.
func (e *Engine) SetCandles(candles []models.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var prevOldest int64
	if len(e.data) > 0 {
		prevOldest = e.data[0].Time
	}

	e.candles = candles
	e.data = e.norm.Normalize(candles)

	shift := 0
	if prevOldest != 0 {
		for _, p := range e.data {
			if p.Time >= prevOldest {
				break
			}
			shift++
		}
	}
	e.replay.SetTotalSteps(len(e.data), shift)
}

// Data returns the current ascending series.
func (e *Engine) Data() []models.OHLCVPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Frame computes the current chart frame. Outside replay this is the
// memoized full-series calculation; in replay it serves the lookahead
// buffer filtered to the playhead.
func (e *Engine) Frame() ChartFrame {
	e.mu.Lock()
	defer e.mu.Unlock()

	instances := e.store.Snapshot()
	st := e.replay.State()

	var results []indicator.Calculated
	series := e.data

	if st.Enabled {
		step := st.CurrentStep
		buffered, reason := e.buffer.Results(e.data, instances, step)
		if reason != ReasonNone {
			e.recordBufferRecompute(reason)
		}
		if step <= 0 {
			series = nil
			results = FilterCalculated(buffered, -1)
		} else {
			maxTime := e.data[step-1].Time
			series = e.data[:step]
			results = FilterCalculated(buffered, maxTime)
		}
		gateRevealed(results, step)
		if st.Animate && st.AnimationProgress < 1 && len(series) > 0 {
			formed := make([]models.OHLCVPoint, len(series))
			copy(formed, series)
			formed[len(formed)-1] = formingCandle(series[len(series)-1], st.AnimationProgress)
			series = formed
		}
	} else {
		var recomputed int
		results, recomputed = e.cache.Compute(e.data, instances)
		e.recordCacheEvents(len(results), recomputed)
	}

	frame := ChartFrame{
		Series: series,
		Volume: volumePoints(series),
		Replay: st,
	}
	for _, r := range results {
		if r.Definition != nil && r.Definition.Category == indicator.CategoryOverlay {
			frame.Overlays = append(frame.Overlays, r)
		} else {
			frame.Panels = append(frame.Panels, r)
		}
	}
	if st.Enabled && len(series) > 0 {
		frame.ReplayLabel = formatReplayLabel(series[len(series)-1].Time)
	}
	return frame
}

// Replay control. All of these are safe while a frame is being computed.

func (e *Engine) EnableReplay()            { e.replay.Enable() }
func (e *Engine) Play()                    { e.replay.Play() }
func (e *Engine) Pause()                   { e.replay.Pause() }
func (e *Engine) Seek(step int)            { e.replay.Seek(step) }
func (e *Engine) StepBy(delta int)         { e.replay.StepBy(delta) }
func (e *Engine) SetSpeed(speed float64)   { e.replay.SetSpeed(speed) }
func (e *Engine) SetAnimate(animate bool)  { e.replay.SetAnimate(animate) }
func (e *Engine) ReplayState() models.ReplayState { return e.replay.State() }

// DisableReplay stops playback, reveals the full series and drops the
// replay buffer.
func (e *Engine) DisableReplay() {
	e.replay.Disable()
	e.mu.Lock()
	e.buffer.Reset()
	e.mu.Unlock()
}

// Close tears the engine down: no timer fires afterwards and all cached
// state is dropped.
func (e *Engine) Close() {
	e.replay.Close()
	e.mu.Lock()
	e.buffer.Reset()
	e.cache.Reset()
	e.norm.Reset()
	e.mu.Unlock()
}

func (e *Engine) recordCacheEvents(total, recomputed int) {
	if e.metrics == nil {
		return
	}
	for i := 0; i < recomputed; i++ {
		e.metrics.RecordCacheEvent("calc", false)
	}
	for i := 0; i < total-recomputed; i++ {
		e.metrics.RecordCacheEvent("calc", true)
	}
}

func (e *Engine) recordBufferRecompute(reason InvalidReason) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordBufferRecompute(string(reason))
}

// gateRevealed applies the minimum-data rule against the revealed window.
// The buffer computes over step+lookahead candles, so an indicator can have
// buffered values the user is not yet entitled to see: until the playhead
// itself has revealed MinData candles, the instance reports insufficient
// data rather than an empty series.
func gateRevealed(results []indicator.Calculated, step int) {
	for i := range results {
		r := &results[i]
		if r.Err != "" || r.Definition == nil {
			continue
		}
		if min := r.Definition.MinData(r.Instance.Config); step < min {
			r.Output = nil
			r.Err = fmt.Sprintf("insufficient data: %s needs at least %d candles, have %d",
				r.Definition.ShortName, min, step)
		}
	}
}

func volumePoints(series []models.OHLCVPoint) []models.VolumePoint {
	out := make([]models.VolumePoint, len(series))
	for i, p := range series {
		out[i] = models.VolumePoint{Time: p.Time, Value: p.Volume, Up: p.Close >= p.Open}
	}
	return out
}

func formatReplayLabel(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("Jan 02 2006 15:04")
}

// formingCandle interpolates the in-formation candle while a step animates:
// first the wicks reach toward the final high/low, then the body extends,
// then the close settles. Purely a rendering aid; the committed series only
// advances at progress 1.
func formingCandle(target models.OHLCVPoint, progress float64) models.OHLCVPoint {
	if progress >= 1 {
		return target
	}
	if progress < 0 {
		progress = 0
	}
	open := target.Open
	c := models.OHLCVPoint{
		Time:   target.Time,
		Open:   open,
		High:   open,
		Low:    open,
		Close:  open,
		Volume: target.Volume * progress,
	}
	switch {
	case progress < 1.0/3:
		q := progress * 3
		c.High = open + (target.High-open)*q
		c.Low = open - (open-target.Low)*q
	case progress < 2.0/3:
		q := (progress - 1.0/3) * 3
		c.High = target.High
		c.Low = target.Low
		c.Close = open + (target.Close-open)*0.8*q
	default:
		q := (progress - 2.0/3) * 3
		c.High = target.High
		c.Low = target.Low
		c.Close = open + (target.Close-open)*(0.8+0.2*q)
	}
	return c
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/engine"
	"CandleScope/internal/indicator"
	applogger "CandleScope/pkg/logger"
)

var (
	// ErrSessionNotFound reports a lookup of a closed or never-created session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimit reports that no new session fits and none is idle.
	ErrSessionLimit = errors.New("session limit reached")
)

// ChartSession binds one chart view to its own engine: a symbol, a
// timeframe, an indicator set and independent replay state.
type ChartSession struct {
	ID          string          `json:"session_id"`
	Symbol      string          `json:"symbol"`
	TF          drepo.Timeframe `json:"tf"`
	AutoRefresh bool            `json:"auto_refresh"`
	Limit       int             `json:"limit"`

	engine *engine.Engine

	mu         sync.Mutex
	lastAccess time.Time
}

func (s *ChartSession) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *ChartSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// SessionManager owns the chart sessions, capping their number and
// evicting the ones nobody has touched for a while.
type SessionManager struct {
	candles     *CandlesUseCase
	metrics     drepo.Metrics
	log         *applogger.Logger
	maxSessions int
	idleTTL     time.Duration
	engineOpts  []engine.Option

	mu       sync.RWMutex
	sessions map[string]*ChartSession
}

type SessionOption func(*SessionManager)

func WithIdleTTL(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func WithEngineOptions(opts ...engine.Option) SessionOption {
	return func(m *SessionManager) { m.engineOpts = opts }
}

func NewSessionManager(candles *CandlesUseCase, maxSessions int, metrics drepo.Metrics, log *applogger.Logger, opts ...SessionOption) *SessionManager {
	if maxSessions <= 0 {
		maxSessions = 64
	}
	if log == nil {
		log = applogger.Nop()
	}
	m := &SessionManager{
		candles:     candles,
		metrics:     metrics,
		log:         log,
		maxSessions: maxSessions,
		idleTTL:     30 * time.Minute,
		sessions:    make(map[string]*ChartSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a session, loads its initial candle window and returns it.
func (m *SessionManager) Create(ctx context.Context, symbol string, tf drepo.Timeframe, autoRefresh bool, limit int) (*ChartSession, error) {
	if limit <= 0 {
		limit = 500
	}

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		evicted := m.evictIdleLocked()
		if !evicted {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, m.maxSessions)
		}
	}
	sess := &ChartSession{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		TF:          tf,
		AutoRefresh: autoRefresh,
		Limit:       limit,
		engine:      engine.New(engine.NewInstanceStore(), m.engineOpts...),
		lastAccess:  time.Now(),
	}
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if err := m.reload(ctx, sess); err != nil {
		m.Close(sess.ID)
		return nil, err
	}

	m.log.Info("chart session created",
		applogger.String("session", sess.ID),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
	)
	return sess, nil
}

// Get returns the session or an error if it does not exist.
func (m *SessionManager) Get(id string) (*ChartSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch()
	return sess, nil
}

// Close tears a session down and releases its replay timers.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		sess.engine.Close()
	}
}

// CloseAll shuts every session down, used on server shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*ChartSession)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.engine.Close()
	}
}

// evictIdleLocked drops the longest-idle session past the TTL. Caller
// holds the write lock.
func (m *SessionManager) evictIdleLocked() bool {
	var oldest *ChartSession
	for _, sess := range m.sessions {
		if oldest == nil || sess.idleSince().Before(oldest.idleSince()) {
			oldest = sess
		}
	}
	if oldest == nil || time.Since(oldest.idleSince()) < m.idleTTL {
		return false
	}
	delete(m.sessions, oldest.ID)
	go oldest.engine.Close()
	m.log.Info("idle chart session evicted", applogger.String("session", oldest.ID))
	return true
}

// Sessions returns a snapshot of open sessions, newest access first.
func (m *SessionManager) Sessions() []*ChartSession {
	m.mu.RLock()
	out := make([]*ChartSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].idleSince().After(out[j].idleSince()) })
	return out
}

// reload feeds the latest candle window into the session's engine. The
// normalizer fingerprints its input, so an unchanged window is a no-op.
func (m *SessionManager) reload(ctx context.Context, sess *ChartSession) error {
	candles, err := m.candles.Latest(ctx, sess.Symbol, sess.TF, sess.Limit)
	if err != nil {
		return fmt.Errorf("load session candles: %w", err)
	}
	sess.engine.SetCandles(candles)
	return nil
}

// Frame computes the session's chart frame. Live sessions refresh their
// candle window first; replay sessions keep their frozen dataset.
func (m *SessionManager) Frame(ctx context.Context, id string) (engine.ChartFrame, error) {
	sess, err := m.Get(id)
	if err != nil {
		return engine.ChartFrame{}, err
	}
	if sess.AutoRefresh && !sess.engine.ReplayState().Enabled {
		if err := m.reload(ctx, sess); err != nil {
			return engine.ChartFrame{}, err
		}
	}
	start := time.Now()
	frame := sess.engine.Frame()
	if m.metrics != nil {
		m.metrics.RecordLatency("chart_frame", time.Since(start).Seconds())
	}
	return frame, nil
}

// AddIndicator attaches an indicator instance to the session's chart.
func (m *SessionManager) AddIndicator(id, indicatorID string, cfg indicator.Config, label string) (indicator.Instance, error) {
	sess, err := m.Get(id)
	if err != nil {
		return indicator.Instance{}, err
	}
	return sess.engine.Instances().Add(indicatorID, cfg, label)
}

// UpdateIndicator applies a partial config, visibility or label change.
func (m *SessionManager) UpdateIndicator(id, instanceID string, cfg indicator.Config, visible *bool, label *string) (indicator.Instance, error) {
	sess, err := m.Get(id)
	if err != nil {
		return indicator.Instance{}, err
	}
	return sess.engine.Instances().Update(instanceID, cfg, visible, label)
}

// RemoveIndicator detaches an indicator instance.
func (m *SessionManager) RemoveIndicator(id, instanceID string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.engine.Instances().Remove(instanceID)
	return nil
}

// Indicators lists the session's indicator instances in insertion order.
func (m *SessionManager) Indicators(id string) ([]indicator.Instance, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.engine.Instances().Snapshot(), nil
}

// SetReplay enables or disables replay mode for the session.
func (m *SessionManager) SetReplay(id string, enabled bool) (models.ReplayState, error) {
	sess, err := m.Get(id)
	if err != nil {
		return models.ReplayState{}, err
	}
	if enabled {
		sess.engine.EnableReplay()
	} else {
		sess.engine.DisableReplay()
	}
	return sess.engine.ReplayState(), nil
}

// Play starts replay playback.
func (m *SessionManager) Play(id string) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.Play() })
}

// Pause pauses replay playback.
func (m *SessionManager) Pause(id string) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.Pause() })
}

// Seek moves the replay playhead to an absolute step.
func (m *SessionManager) Seek(id string, step int) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.Seek(step) })
}

// StepBy nudges the playhead by delta steps, pausing playback first.
func (m *SessionManager) StepBy(id string, delta int) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.StepBy(delta) })
}

// SetSpeed changes the playback speed multiplier.
func (m *SessionManager) SetSpeed(id string, speed float64) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.SetSpeed(speed) })
}

// SetAnimate toggles smooth candle-forming animation.
func (m *SessionManager) SetAnimate(id string, animate bool) (models.ReplayState, error) {
	return m.replayOp(id, func(e *engine.Engine) { e.SetAnimate(animate) })
}

func (m *SessionManager) replayOp(id string, op func(*engine.Engine)) (models.ReplayState, error) {
	sess, err := m.Get(id)
	if err != nil {
		return models.ReplayState{}, err
	}
	op(sess.engine)
	return sess.engine.ReplayState(), nil
}

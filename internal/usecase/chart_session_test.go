package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/indicator"
)

func newTestSessionManager(t *testing.T, candleCount, maxSessions int) *SessionManager {
	t.Helper()
	newest := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeCandleStore()
	store.latest = descCandles("AAPL", candleCount, newest)
	candles := NewCandlesUseCase(store, nil, nil, nopMetrics{}, nil)
	m := NewSessionManager(candles, maxSessions, nopMetrics{}, nil, WithIdleTTL(time.Hour))
	t.Cleanup(m.CloseAll)
	return m
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestSessionManager(t, 40, 8)

	sess, err := m.Create(context.Background(), "AAPL", drepo.TF1m, true, 40)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := m.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	frame, err := m.Frame(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, frame.Series, 40)
	assert.Len(t, frame.Volume, 40)

	m.Close(sess.ID)
	_, err = m.Get(sess.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionIndicatorManagement(t *testing.T) {
	m := newTestSessionManager(t, 40, 8)
	sess, err := m.Create(context.Background(), "AAPL", drepo.TF1m, true, 40)
	require.NoError(t, err)

	inst, err := m.AddIndicator(sess.ID, "sma", indicator.Config{"period": 10}, "fast")
	require.NoError(t, err)
	assert.Equal(t, "sma", inst.IndicatorID)
	assert.True(t, inst.Visible)

	hidden := false
	updated, err := m.UpdateIndicator(sess.ID, inst.ID, nil, &hidden, nil)
	require.NoError(t, err)
	assert.False(t, updated.Visible)

	list, err := m.Indicators(sess.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, m.RemoveIndicator(sess.ID, inst.ID))
	list, err = m.Indicators(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionUnknownIndicatorRejected(t *testing.T) {
	m := newTestSessionManager(t, 40, 8)
	sess, err := m.Create(context.Background(), "AAPL", drepo.TF1m, true, 40)
	require.NoError(t, err)

	_, err = m.AddIndicator(sess.ID, "nope", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, indicator.ErrUnknownIndicator)
}

func TestSessionReplayControls(t *testing.T) {
	m := newTestSessionManager(t, 40, 8)
	sess, err := m.Create(context.Background(), "AAPL", drepo.TF1m, true, 40)
	require.NoError(t, err)

	state, err := m.SetReplay(sess.ID, true)
	require.NoError(t, err)
	assert.True(t, state.Enabled)
	assert.Equal(t, 40, state.TotalSteps)

	state, err = m.Seek(sess.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, state.CurrentStep)

	state, err = m.SetSpeed(sess.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, state.Speed)

	state, err = m.SetReplay(sess.ID, false)
	require.NoError(t, err)
	assert.False(t, state.Enabled)
}

func TestSessionLimitEnforced(t *testing.T) {
	m := newTestSessionManager(t, 40, 2)

	_, err := m.Create(context.Background(), "AAPL", drepo.TF1m, true, 40)
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "AAPL", drepo.TF5m, true, 40)
	require.NoError(t, err)

	_, err = m.Create(context.Background(), "AAPL", drepo.TF1h, true, 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionLimit)
}

func TestSessionFrameUnknownSession(t *testing.T) {
	m := newTestSessionManager(t, 40, 8)
	_, err := m.Frame(context.Background(), "missing")
	require.Error(t, err)
}

package engine

import "time"

// CancelFunc stops a pending callback. Safe to call more than once.
type CancelFunc func()

// Scheduler abstracts the replay clock so step and animation logic is
// testable without wall-clock timers.
type Scheduler interface {
	// After runs fn once after d on an unspecified goroutine.
	After(d time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

// NewScheduler returns the wall-clock scheduler.
func NewScheduler() Scheduler { return timerScheduler{} }

func (timerScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

package engine

import (
	"strings"

	"CandleScope/internal/domain/models"
	"CandleScope/internal/indicator"
)

// Replay lookahead defaults: the buffer pre-computes indicators over
// [0, step+DefaultLookahead] so scrubbing costs a cheap time filter per step
// and a coarse recompute only every few dozen steps.
const (
	DefaultLookahead     = 50
	DefaultEdgeThreshold = 10
)

// ReplayBuffer caches indicator output over a prefix window of the series
// for replay mode, where the "current" data window shrinks and grows as the
// user scrubs.
type ReplayBuffer struct {
	lookahead int
	threshold int

	valid        bool
	combinedHash string
	dataLen      int
	bufferEnd    int
	results      []indicator.Calculated
}

func NewReplayBuffer(lookahead, threshold int) *ReplayBuffer {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if threshold <= 0 {
		threshold = DefaultEdgeThreshold
	}
	return &ReplayBuffer{lookahead: lookahead, threshold: threshold}
}

// InvalidReason is why a buffer check missed; empty means the buffer is
// still serviceable. A miss is a cache event, not an error.
type InvalidReason string

const (
	ReasonNone          InvalidReason = ""
	ReasonNeverBuffered InvalidReason = "never_buffered"
	ReasonConfigChanged InvalidReason = "config_changed"
	ReasonLengthChanged InvalidReason = "length_changed"
	ReasonNearEdge      InvalidReason = "near_edge"
)

// Results returns buffered output for the window covering step, recomputing
// the buffer first when it is invalid. The returned results span the whole
// buffer window; the caller filters them to the exact playhead.
func (b *ReplayBuffer) Results(data []models.OHLCVPoint, instances []indicator.Instance, step int) ([]indicator.Calculated, InvalidReason) {
	hash := combinedHash(instances)
	reason := b.check(hash, len(data), step)
	if reason == ReasonNone {
		return b.results, ReasonNone
	}

	end := step + b.lookahead
	if end > len(data) {
		end = len(data)
	}
	window := data[:end]

	results := make([]indicator.Calculated, 0, len(instances))
	for _, inst := range instances {
		if !inst.Visible {
			continue
		}
		results = append(results, calculateOne(window, inst))
	}

	b.valid = true
	b.combinedHash = hash
	b.dataLen = len(data)
	b.bufferEnd = end
	b.results = results
	return results, reason
}

// End reports the exclusive end of the buffered window.
func (b *ReplayBuffer) End() int { return b.bufferEnd }

// Reset drops the buffer, e.g. when replay is disabled or the session is
// torn down.
func (b *ReplayBuffer) Reset() {
	b.valid = false
	b.combinedHash = ""
	b.dataLen = 0
	b.bufferEnd = 0
	b.results = nil
}

func (b *ReplayBuffer) check(hash string, dataLen, step int) InvalidReason {
	switch {
	case !b.valid:
		return ReasonNeverBuffered
	case hash != b.combinedHash:
		return ReasonConfigChanged
	case dataLen != b.dataLen:
		return ReasonLengthChanged
	// The buffer always starts at 0, so a backward seek inside the buffered
	// prefix stays valid; only approaching the forward edge forces a
	// recompute, and only while there is anything left to extend into.
	case step > b.bufferEnd-b.threshold && b.bufferEnd < dataLen:
		return ReasonNearEdge
	default:
		return ReasonNone
	}
}

// combinedHash keys the buffer on the configuration of every visible
// instance, so any config edit or visibility toggle invalidates it.
func combinedHash(instances []indicator.Instance) string {
	var sb strings.Builder
	for _, inst := range instances {
		if !inst.Visible {
			continue
		}
		sb.WriteString(inst.ID)
		sb.WriteByte(':')
		sb.WriteString(inst.Config.Hash())
		sb.WriteByte(';')
	}
	return sb.String()
}

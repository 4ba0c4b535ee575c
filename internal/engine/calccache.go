package engine

import (
	"fmt"

	"CandleScope/internal/domain/models"
	"CandleScope/internal/indicator"
)

// CalcCache memoizes calculator output per indicator instance for the
// non-replay path. An entry is reused verbatim, same slices and no new
// allocation, while the instance config hash and the input series are
// unchanged, so downstream consumers can skip redraws on identity.
type CalcCache struct {
	entries map[string]*calcEntry
}

type calcEntry struct {
	configHash string
	dataLen    int
	dataID     *models.OHLCVPoint
	result     indicator.Calculated
}

// dataKey identifies a normalized series by the address of its first point.
// The normalizer returns the same backing array while the feed fingerprint
// is unchanged and a fresh one when it is not, so identity doubles as a
// content check for a live candle mutating in place.
func dataKey(data []models.OHLCVPoint) *models.OHLCVPoint {
	if len(data) == 0 {
		return nil
	}
	return &data[0]
}

func NewCalcCache() *CalcCache {
	return &CalcCache{entries: make(map[string]*calcEntry)}
}

// Compute returns results for every visible instance, reusing cached output
// where valid. Entries for instances that are gone or hidden are dropped so
// the cache cannot grow without bound.
func (c *CalcCache) Compute(data []models.OHLCVPoint, instances []indicator.Instance) ([]indicator.Calculated, int) {
	live := make(map[string]bool, len(instances))
	out := make([]indicator.Calculated, 0, len(instances))
	recomputed := 0
	id := dataKey(data)

	for _, inst := range instances {
		if !inst.Visible {
			continue
		}
		live[inst.ID] = true

		hash := inst.Config.Hash()
		if e, ok := c.entries[inst.ID]; ok && e.configHash == hash && e.dataLen == len(data) && e.dataID == id {
			out = append(out, e.result)
			continue
		}

		res := calculateOne(data, inst)
		c.entries[inst.ID] = &calcEntry{configHash: hash, dataLen: len(data), dataID: id, result: res}
		out = append(out, res)
		recomputed++
	}

	for id := range c.entries {
		if !live[id] {
			delete(c.entries, id)
		}
	}
	return out, recomputed
}

// Reset drops all cached entries.
func (c *CalcCache) Reset() {
	c.entries = make(map[string]*calcEntry)
}

// calculateOne runs a single calculator inside a failure boundary. A
// misbehaving indicator yields a per-instance error result and never breaks
// the rest of the batch.
func calculateOne(data []models.OHLCVPoint, inst indicator.Instance) (res indicator.Calculated) {
	entry, ok := indicator.Get(inst.IndicatorID)
	if !ok {
		return indicator.Calculated{
			Instance: inst,
			Err:      fmt.Sprintf("unknown indicator: %s", inst.IndicatorID),
		}
	}
	def := entry.Definition
	res = indicator.Calculated{Instance: inst, Definition: &def}

	if min := def.MinData(inst.Config); len(data) < min {
		res.Err = fmt.Sprintf("insufficient data: %s needs at least %d candles, have %d",
			def.ShortName, min, len(data))
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.Output = nil
			res.Err = fmt.Sprintf("calculation failed: %v", r)
		}
	}()

	out, err := entry.Calculate(data, inst.Config)
	if err != nil {
		res.Err = fmt.Sprintf("calculation failed: %v", err)
		return res
	}
	res.Output = out
	return res
}

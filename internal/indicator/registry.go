package indicator

import (
	"errors"
	"fmt"
	"sort"

	"CandleScope/internal/domain/models"
)

// ErrUnknownIndicator reports a lookup of an id the catalog does not hold.
var ErrUnknownIndicator = errors.New("unknown indicator")

// Entry pairs a definition with its calculator. The registry is an open set:
// adding an indicator means registering one more entry, nothing elsewhere
// changes.
type Entry struct {
	Definition Definition
	Calculate  CalcFunc
}

var registry = map[string]Entry{}

// Register adds an indicator to the catalog. Panics on duplicate or
// incomplete entries since registration happens at init time.
func Register(e Entry) {
	id := e.Definition.ID
	if id == "" {
		panic("indicator: register with empty id")
	}
	if _, dup := registry[id]; dup {
		panic("indicator: duplicate registration " + id)
	}
	if e.Calculate == nil || e.Definition.MinData == nil {
		panic("indicator: incomplete registration " + id)
	}
	registry[id] = e
}

// Get returns the entry for id, if registered.
func Get(id string) (Entry, bool) {
	e, ok := registry[id]
	return e, ok
}

// GetDefinition returns the definition for id, or nil.
func GetDefinition(id string) *Definition {
	if e, ok := registry[id]; ok {
		d := e.Definition
		return &d
	}
	return nil
}

// Definitions returns all registered definitions sorted by family then id.
func Definitions() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, e := range registry {
		out = append(out, e.Definition)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Calculate runs the calculator for id. The caller is responsible for the
// MinData gate; this only fails for unknown ids or calculator errors.
func Calculate(id string, data []models.OHLCVPoint, cfg Config) (*Output, error) {
	e, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, id)
	}
	return e.Calculate(data, cfg)
}

package engine

import (
	"fmt"
	"sync"

	"CandleScope/internal/indicator"
)

// InstanceStore holds the active indicator instances of one chart session.
// The session layer is its only writer; the engine reads snapshots.
type InstanceStore struct {
	mu    sync.RWMutex
	seq   int
	order []string
	items map[string]*indicator.Instance
}

func NewInstanceStore() *InstanceStore {
	return &InstanceStore{items: make(map[string]*indicator.Instance)}
}

// Add creates an instance of the given indicator, merging the supplied
// config over the definition defaults.
func (s *InstanceStore) Add(indicatorID string, cfg indicator.Config, label string) (indicator.Instance, error) {
	entry, ok := indicator.Get(indicatorID)
	if !ok {
		return indicator.Instance{}, fmt.Errorf("%w: %s", indicator.ErrUnknownIndicator, indicatorID)
	}

	merged := indicator.Config{}
	for _, p := range entry.Definition.Params {
		merged[p.Key] = p.Default
	}
	for k, v := range cfg {
		merged[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	inst := &indicator.Instance{
		ID:          fmt.Sprintf("%s-%d", indicatorID, s.seq),
		IndicatorID: indicatorID,
		Config:      merged,
		Visible:     true,
		Label:       label,
	}
	s.items[inst.ID] = inst
	s.order = append(s.order, inst.ID)
	return *inst, nil
}

// Update applies a partial config override and/or visibility/label change.
func (s *InstanceStore) Update(id string, cfg indicator.Config, visible *bool, label *string) (indicator.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.items[id]
	if !ok {
		return indicator.Instance{}, fmt.Errorf("unknown instance: %s", id)
	}
	if cfg != nil {
		next := indicator.Config{}
		for k, v := range inst.Config {
			next[k] = v
		}
		for k, v := range cfg {
			next[k] = v
		}
		inst.Config = next
	}
	if visible != nil {
		inst.Visible = *visible
	}
	if label != nil {
		inst.Label = *label
	}
	return *inst, nil
}

// Remove deletes one instance. Removing an unknown id is a no-op.
func (s *InstanceStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear drops all instances.
func (s *InstanceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*indicator.Instance)
	s.order = nil
}

// Snapshot returns the instances in insertion order.
func (s *InstanceStore) Snapshot() []indicator.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]indicator.Instance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// Len reports the number of instances.
func (s *InstanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

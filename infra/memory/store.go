// Package memory is an in-process implementation of every repository
// contract. It backs tests and single-node deployments without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/store"
)

// Store keeps all data in maps guarded by a single lock.
type Store struct {
	mu        sync.RWMutex
	prices    map[time.Time]model.PricePoint
	triggers  map[string]model.Trigger
	overrides map[time.Time]model.OverrideWindow
	lowest    map[time.Time]model.LowestSectionRecord
	groups    map[string]model.ActionGroup
	settings  map[string]string
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		prices:    map[time.Time]model.PricePoint{},
		triggers:  map[string]model.Trigger{},
		overrides: map[time.Time]model.OverrideWindow{},
		lowest:    map[time.Time]model.LowestSectionRecord{},
		groups:    map[string]model.ActionGroup{},
		settings:  map[string]string{},
	}
}

func (s *Store) GetPriceAt(_ context.Context, slot time.Time) (*model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[slot.UTC()]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetPricesInRange(_ context.Context, from, to time.Time) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PricePoint
	for k, p := range s.prices {
		if !k.Before(from) && k.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

// SavePrices inserts new slots. Stored slots are immutable and kept as is.
func (s *Store) SavePrices(_ context.Context, prices []model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prices {
		p.SlotStart = p.SlotStart.UTC()
		if _, ok := s.prices[p.SlotStart]; ok {
			continue
		}
		s.prices[p.SlotStart] = p
	}
	return nil
}

func (s *Store) SaveTrigger(_ context.Context, t model.Trigger) error {
	s.mu.Lock()
	s.triggers[t.ID] = t
	s.mu.Unlock()
	return nil
}

func (s *Store) activeTriggers(cycle model.CycleClass, keep func(model.Trigger) bool) []model.Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Trigger
	for _, t := range s.triggers {
		if t.Active && t.Cycle == cycle && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) GetActiveHourlyTriggers(context.Context) ([]model.Trigger, error) {
	out := s.activeTriggers(model.CycleHourly, func(model.Trigger) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].ID < out[j].ID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (s *Store) GetActivePerPriceTriggers(_ context.Context, mode string) ([]model.Trigger, error) {
	out := s.activeTriggers(model.CyclePerPrice, func(t model.Trigger) bool { return t.HasMode(mode) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetActiveOverride(_ context.Context, now time.Time) (*model.OverrideWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.OverrideWindow
	for _, w := range s.overrides {
		if !w.Contains(now) {
			continue
		}
		if found == nil || w.Start.Before(found.Start) {
			found = &w
		}
	}
	return found, nil
}

func (s *Store) SaveOverride(_ context.Context, w model.OverrideWindow) error {
	s.mu.Lock()
	s.overrides[w.Start.UTC()] = w
	s.mu.Unlock()
	return nil
}

// SaveLowestSection keeps one record per reference slot; a later save for
// the same slot replaces it.
func (s *Store) SaveLowestSection(_ context.Context, rec model.LowestSectionRecord) error {
	s.mu.Lock()
	rec.ReferenceSlotStart = rec.ReferenceSlotStart.UTC()
	s.lowest[rec.ReferenceSlotStart] = rec
	s.mu.Unlock()
	return nil
}

func (s *Store) GetLowestSectionForPeriod(_ context.Context, days int, asOf time.Time) (*model.LowestSectionRecord, error) {
	from, to := store.MultiDayWindow(days, asOf)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.LowestSectionRecord
	for _, r := range s.lowest {
		if r.ReferenceSlotStart.Before(from) || !r.ReferenceSlotStart.Before(to) {
			continue
		}
		if best == nil || r.Average.LessThan(best.Average) ||
			(r.Average.Equal(best.Average) && r.ReferenceSlotStart.Before(best.ReferenceSlotStart)) {
			best = &r
		}
	}
	return best, nil
}

func (s *Store) GetActionGroup(_ context.Context, id string) (*model.ActionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *Store) SetActionGroupToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.groups[id]
	g.ID = id
	g.Token = token
	g.LastUpdated = time.Now().UTC()
	s.groups[id] = g
	return nil
}

func (s *Store) SaveActionGroup(_ context.Context, g model.ActionGroup) error {
	s.mu.Lock()
	s.groups[g.ID] = g
	s.mu.Unlock()
	return nil
}

func (s *Store) GetSetting(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[strings.ToLower(name)]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, name, value string) error {
	s.mu.Lock()
	s.settings[strings.ToLower(name)] = value
	s.mu.Unlock()
	return nil
}

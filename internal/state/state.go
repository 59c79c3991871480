// Package state tracks which environments and data types are selected and
// keeps the aggregated view current.
package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/iamlens/iamlens/internal/aggregate"
	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/metrics"
	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/registry"
)

// ErrUnknownEnvironment is returned when a selection names an id the
// registry does not know.
var ErrUnknownEnvironment = errors.New("unknown environment")

// EventKind labels a selection-state change.
type EventKind string

const (
	EventSelected   EventKind = "selected"
	EventDeselected EventKind = "deselected"
	EventToggled    EventKind = "toggled"
	EventLoaded     EventKind = "loaded"
)

// Event is dispatched to subscribers after every state mutation.
type Event struct {
	Kind  EventKind
	EnvID string
}

// Persister receives the selected-environment list on every change.
type Persister interface {
	SaveSelection(ids []string) error
}

// Store is the injectable selection-state container. All mutation is
// serialized by its mutex; the aggregated view is rebuilt inside the same
// critical section so observers never see a half-applied mutation.
type Store struct {
	reg     *registry.Registry
	cache   *cache.Cache
	persist Persister
	logger  *slog.Logger
	baseCtx context.Context

	mu          sync.Mutex
	selected    []string
	enabled     map[string]map[string]bool
	view        aggregate.View
	subscribers []func(Event)

	loads sync.WaitGroup
}

// New creates a Store and wires it to the cache's settle hook. baseCtx
// bounds background environment loads; persist may be nil.
func New(baseCtx context.Context, reg *registry.Registry, c *cache.Cache, persist Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Store{
		reg:     reg,
		cache:   c,
		persist: persist,
		logger:  logger,
		baseCtx: baseCtx,
		enabled: make(map[string]map[string]bool),
		view:    aggregate.View{},
	}
	c.OnChange(s.onEnvironmentSettled)
	return s
}

// Subscribe registers fn for state-change events. Handlers run on the
// mutating goroutine and must not block.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Select adds envID to the selection, enables every known data type for it,
// and starts the cache load in the background. Selecting an already-selected
// environment is a no-op. An unknown id is logged and rejected.
func (s *Store) Select(envID string) error {
	if !s.reg.Has(envID) {
		s.logger.Error("select rejected: environment not registered", "env", envID)
		return ErrUnknownEnvironment
	}

	s.mu.Lock()
	if s.isSelectedLocked(envID) {
		s.mu.Unlock()
		return nil
	}
	s.selected = append(s.selected, envID)
	enabled := make(map[string]bool, len(record.KnownDataTypes()))
	for _, dt := range record.KnownDataTypes() {
		enabled[dt] = true
	}
	s.enabled[envID] = enabled
	dataTypes := enabledTypes(enabled)
	s.rebuildLocked()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventSelected, EnvID: envID})

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		if err := s.cache.EnsureLoaded(s.baseCtx, envID, dataTypes); err != nil {
			s.logger.Error("environment load failed", "env", envID, "err", err)
		}
	}()
	return nil
}

// Deselect removes envID from the selection and discards its data-type
// selection. The cache entry is retained: reselecting in the same session
// reuses cached data without a refetch (ForceReload is the explicit path).
func (s *Store) Deselect(envID string) {
	s.mu.Lock()
	if !s.isSelectedLocked(envID) {
		s.mu.Unlock()
		s.logger.Warn("deselect ignored: environment not selected", "env", envID)
		return
	}
	out := s.selected[:0]
	for _, id := range s.selected {
		if id != envID {
			out = append(out, id)
		}
	}
	s.selected = out
	delete(s.enabled, envID)
	s.rebuildLocked()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventDeselected, EnvID: envID})
}

// ToggleDataType flips one data-type flag for a selected environment.
// Toggles for non-selected environments or unknown data types are logged
// and ignored.
func (s *Store) ToggleDataType(envID, dataType string, enabled bool) {
	if !record.IsKnownDataType(dataType) {
		s.logger.Warn("toggle ignored: unknown data type", "env", envID, "data_type", dataType)
		return
	}

	s.mu.Lock()
	sel, ok := s.enabled[envID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("toggle ignored: environment not selected", "env", envID, "data_type", dataType)
		return
	}
	sel[dataType] = enabled
	s.rebuildLocked()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventToggled, EnvID: envID})
}

// ForceReload discards the cache entry for a selected environment and loads
// it again in the background.
func (s *Store) ForceReload(envID string) error {
	s.mu.Lock()
	sel, ok := s.enabled[envID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("reload ignored: environment not selected", "env", envID)
		return ErrUnknownEnvironment
	}
	dataTypes := enabledTypes(sel)
	s.mu.Unlock()

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		if err := s.cache.ForceReload(s.baseCtx, envID, dataTypes); err != nil {
			s.logger.Error("environment reload failed", "env", envID, "err", err)
		}
	}()
	return nil
}

// Selected returns the selected environment ids in selection order.
func (s *Store) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// DataTypes returns a copy of the data-type selection for envID.
func (s *Store) DataTypes(envID string) (map[string]bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.enabled[envID]
	if !ok {
		return nil, false
	}
	out := make(map[string]bool, len(sel))
	for dt, on := range sel {
		out[dt] = on
	}
	return out, true
}

// View returns the current aggregated view. The returned value is a fresh
// structure from the last rebuild and is never mutated afterwards.
func (s *Store) View() aggregate.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// WaitForLoads blocks until every background load started so far has
// settled. Used on shutdown and in tests.
func (s *Store) WaitForLoads() {
	s.loads.Wait()
}

func (s *Store) onEnvironmentSettled(envID string) {
	s.mu.Lock()
	s.rebuildLocked()
	s.mu.Unlock()
	s.notify(Event{Kind: EventLoaded, EnvID: envID})
}

func (s *Store) isSelectedLocked(envID string) bool {
	for _, id := range s.selected {
		if id == envID {
			return true
		}
	}
	return false
}

func (s *Store) rebuildLocked() {
	selections := make([]aggregate.Selection, 0, len(s.selected))
	for _, id := range s.selected {
		selections = append(selections, aggregate.Selection{EnvID: id, Enabled: s.enabled[id]})
	}
	s.view = aggregate.Aggregate(s.cache.Snapshot(), selections, s.reg.Get)
	metrics.AggregateRebuildsTotal.Inc()
}

func (s *Store) persistLocked() {
	if s.persist == nil {
		return
	}
	ids := append([]string(nil), s.selected...)
	if err := s.persist.SaveSelection(ids); err != nil {
		s.logger.Warn("persisting selection failed", "err", err)
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func enabledTypes(sel map[string]bool) []string {
	out := make([]string, 0, len(sel))
	for _, dt := range record.KnownDataTypes() {
		if sel[dt] {
			out = append(out, dt)
		}
	}
	return out
}

// Package cache holds per-environment record sets loaded from JSONL resources.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iamlens/iamlens/internal/metrics"
	"github.com/iamlens/iamlens/internal/record"
)

// Status is the load state of one environment's cache entry.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Entry holds every loaded data type for one environment. An entry is never
// observed partially written: records become visible only when the whole
// load attempt has settled.
type Entry struct {
	Status       Status
	Records      map[string][]record.Record
	LoadedAt     time.Time
	ErrorMessage string
}

type entrySlot struct {
	mu    sync.Mutex
	entry Entry
}

// RecordLoader is the subset of record.Loader the cache needs.
type RecordLoader interface {
	LoadRecords(ctx context.Context, url string) ([]record.Record, error)
}

// Cache is the per-environment record cache. Entries are created by
// EnsureLoaded and survive until Invalidate; deselecting an environment
// does not touch them.
type Cache struct {
	loader   RecordLoader
	resolve  func(envID, dataType string) string
	timeout  time.Duration
	logger   *slog.Logger
	onChange func(envID string)

	mu    sync.Mutex
	slots map[string]*entrySlot
}

// New creates a Cache. resolve derives the resource URL for an environment
// data type. timeout bounds one whole load attempt so a stuck fetch cannot
// leave an environment in loading forever.
func New(loader RecordLoader, resolve func(envID, dataType string) string, timeout time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		loader:  loader,
		resolve: resolve,
		timeout: timeout,
		logger:  logger,
		slots:   make(map[string]*entrySlot),
	}
}

// OnChange registers a hook invoked after an entry settles (complete or
// error). Set before first use; not safe to change concurrently.
func (c *Cache) OnChange(fn func(envID string)) {
	c.onChange = fn
}

// EnsureLoaded loads every data type in dataTypes for envID in parallel and
// blocks until the attempt settles. If an entry already exists (loading,
// complete, or error) the call is a no-op, which keeps at most one load
// in flight per environment. A LoadError on an individual data type degrades
// to an empty record set; only a failure outside that fallback path marks
// the entry as error.
func (c *Cache) EnsureLoaded(ctx context.Context, envID string, dataTypes []string) error {
	c.mu.Lock()
	if _, ok := c.slots[envID]; ok {
		c.mu.Unlock()
		return nil
	}
	slot := &entrySlot{entry: Entry{Status: StatusLoading}}
	c.slots[envID] = slot
	c.mu.Unlock()

	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results := make(map[string][]record.Record, len(dataTypes))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, dataType := range dataTypes {
		dataType := dataType
		g.Go(func() error {
			url := c.resolve(envID, dataType)
			records, err := c.loader.LoadRecords(gctx, url)
			if err != nil {
				var le *record.LoadError
				if errors.As(err, &le) {
					// Missing data types must never block the rest.
					c.logger.Warn("data type unavailable, substituting empty set",
						"env", envID, "data_type", dataType, "err", err)
					metrics.DataTypeFallbacksTotal.WithLabelValues(envID, dataType).Inc()
					records = []record.Record{}
				} else {
					return err
				}
			}
			resultsMu.Lock()
			results[dataType] = records
			resultsMu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	slot.mu.Lock()
	if err != nil {
		slot.entry = Entry{
			Status:       StatusError,
			LoadedAt:     time.Now(),
			ErrorMessage: err.Error(),
		}
	} else {
		slot.entry = Entry{
			Status:   StatusComplete,
			Records:  results,
			LoadedAt: time.Now(),
		}
	}
	slot.mu.Unlock()

	if err != nil {
		c.logger.Error("environment load failed", "env", envID, "err", err)
		metrics.EnvironmentLoadsTotal.WithLabelValues(envID, string(StatusError)).Inc()
	} else {
		metrics.EnvironmentLoadsTotal.WithLabelValues(envID, string(StatusComplete)).Inc()
		metrics.EnvironmentLoadDuration.WithLabelValues(envID).Observe(time.Since(start).Seconds())
		for dataType, records := range results {
			metrics.RecordsLoaded.WithLabelValues(envID, dataType).Set(float64(len(records)))
		}
	}

	if c.onChange != nil {
		c.onChange(envID)
	}
	return err
}

// Get returns a snapshot of the entry for envID. It never triggers loading.
func (c *Cache) Get(envID string) (Entry, bool) {
	c.mu.Lock()
	slot, ok := c.slots[envID]
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return snapshotEntry(slot.entry), true
}

// Snapshot returns a copy of every entry keyed by environment id.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	slots := make(map[string]*entrySlot, len(c.slots))
	for id, slot := range c.slots {
		slots[id] = slot
	}
	c.mu.Unlock()

	out := make(map[string]Entry, len(slots))
	for id, slot := range slots {
		slot.mu.Lock()
		out[id] = snapshotEntry(slot.entry)
		slot.mu.Unlock()
	}
	return out
}

// Invalidate discards the entry for envID so the next EnsureLoaded refetches
// from scratch. An entry still loading is left alone to preserve the
// one-load-in-flight guarantee.
func (c *Cache) Invalidate(envID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slots[envID]
	if !ok {
		return false
	}
	slot.mu.Lock()
	loading := slot.entry.Status == StatusLoading
	slot.mu.Unlock()
	if loading {
		c.logger.Warn("refusing to invalidate environment with load in flight", "env", envID)
		return false
	}
	delete(c.slots, envID)
	return true
}

// ForceReload discards any settled entry and loads again.
func (c *Cache) ForceReload(ctx context.Context, envID string, dataTypes []string) error {
	c.Invalidate(envID)
	return c.EnsureLoaded(ctx, envID, dataTypes)
}

func snapshotEntry(e Entry) Entry {
	out := e
	if e.Records != nil {
		out.Records = make(map[string][]record.Record, len(e.Records))
		for dataType, records := range e.Records {
			out.Records[dataType] = append([]record.Record(nil), records...)
		}
	}
	return out
}

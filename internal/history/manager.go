package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/metrics"
	"github.com/roasbeef/pagesum/internal/store"
)

// Manager owns the summary history and the summary cache. Every mutation is
// written through to the store; store failures are logged and dropped so the
// in-memory state always wins.
type Manager struct {
	cfg Config
	kv  store.KVStore
	log *slog.Logger

	// now and newID are swapped out by tests.
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	initialized bool
	items       []SummaryItem
	cache       *fifoCache
}

// NewManager creates a history manager over kv. Init must be called before
// the first query to load persisted state.
func NewManager(cfg Config, kv store.KVStore, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxHistoryItems <= 0 {
		cfg.MaxHistoryItems = DefaultMaxHistoryItems
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = DefaultMaxCacheSize
	}

	return &Manager{
		cfg:   cfg,
		kv:    kv,
		log:   log.With("component", "history"),
		now:   time.Now,
		newID: uuid.NewString,
		cache: newFIFOCache(cfg.MaxCacheSize),
	}
}

// Init loads the persisted history and cache. It is a no-op once a load has
// succeeded. Missing or corrupt records start empty; any other read failure
// leaves the manager unloaded so a later call retries, and nothing is
// written to the store until a load succeeds.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.initLocked(ctx)
}

// Loaded reports whether persisted state has been loaded.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.initialized
}

func (m *Manager) initLocked(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	var items []SummaryItem
	if err := m.load(ctx, store.HistoryKey, &items); err != nil {
		return err
	}

	var entries []cacheEntry
	if err := m.load(ctx, store.CacheKey, &entries); err != nil {
		return err
	}

	// Anything recorded while unloaded sits on top of the stored state.
	dirty := len(m.items) > 0 || m.cache.len() > 0
	m.items = mergeItems(m.items, items, m.cfg.MaxHistoryItems)

	cache := newFIFOCache(m.cfg.MaxCacheSize)
	cache.load(entries)
	for _, e := range m.cache.entries() {
		cache.set(e[0], e[1])
	}
	m.cache = cache
	m.initialized = true

	if dirty {
		m.persist(ctx, store.HistoryKey, m.items)
		m.persist(ctx, store.CacheKey, m.cache.entries())
	}

	m.log.InfoContext(ctx, "History loaded",
		"items", len(m.items), "cached", m.cache.len(),
	)
	m.updateGauges()

	return nil
}

// ensureLoaded retries a failed load before a mutation. Must be called with
// mu held.
func (m *Manager) ensureLoaded(ctx context.Context) {
	if err := m.initLocked(ctx); err != nil {
		m.log.WarnContext(ctx, "History not loaded, keeping change "+
			"in memory", "error", err,
		)
	}
}

// mergeItems puts fresh items in front of the stored ones, skipping stored
// ids already present, and applies the cap.
func mergeItems(fresh, stored []SummaryItem, limit int) []SummaryItem {
	out := slices.Clone(fresh)
	for _, item := range stored {
		if !slices.ContainsFunc(out, func(f SummaryItem) bool {
			return f.ID == item.ID
		}) {
			out = append(out, item)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// load reads and decodes key into dst. A missing key leaves dst untouched
// and a corrupt value is discarded; both return nil.
func (m *Manager) load(ctx context.Context, key string, dst any) error {
	raw, err := m.kv.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil

	case err != nil:
		return fmt.Errorf("load %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		m.log.WarnContext(ctx, "Discarding corrupt persisted state",
			"key", key, "error", err,
		)
	}

	return nil
}

// AddItem inserts a new pending item at the front of the history, dropping
// the oldest items beyond the cap.
func (m *Manager) AddItem(ctx context.Context, draft Draft) SummaryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)

	ts := draft.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}

	item := SummaryItem{
		ID:        m.newID(),
		Content:   draft.Content,
		Title:     draft.Title,
		URL:       draft.URL,
		Timestamp: ts,
		Status:    StatusPending,
	}

	m.items = slices.Insert(m.items, 0, item)
	if len(m.items) > m.cfg.MaxHistoryItems {
		m.items = m.items[:m.cfg.MaxHistoryItems]
	}
	m.persistHistory(ctx)

	return item
}

// UpdateItem sets the summary, status and error of the item with the given
// id and returns the updated item. An empty status means done. The error is
// kept only for StatusError. Unknown ids are ignored.
func (m *Manager) UpdateItem(ctx context.Context, id, summary string,
	status Status, errMsg string) fn.Option[SummaryItem] {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)

	idx := m.indexOf(id)
	if idx < 0 {
		m.log.DebugContext(ctx, "Ignoring update of unknown item",
			"id", id,
		)
		return fn.None[SummaryItem]()
	}

	if status == "" {
		status = StatusDone
	}
	if status != StatusError {
		errMsg = ""
	}

	item := &m.items[idx]
	item.Summary = summary
	item.Status = status
	item.Error = errMsg
	m.persistHistory(ctx)

	return fn.Some(*item)
}

// DeleteItem removes the item with the given id, reporting whether it
// existed.
func (m *Manager) DeleteItem(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)

	idx := m.indexOf(id)
	if idx < 0 {
		return false
	}

	m.items = slices.Delete(m.items, idx, idx+1)
	m.persistHistory(ctx)

	return true
}

// GetHistory returns up to limit items, newest first. A non-positive limit
// returns everything.
func (m *Manager) GetHistory(limit int) []SummaryItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	if limit > 0 && limit < n {
		n = limit
	}

	return slices.Clone(m.items[:n])
}

// Get returns the item with the given id.
func (m *Manager) Get(id string) fn.Option[SummaryItem] {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return fn.None[SummaryItem]()
	}

	return fn.Some(m.items[idx])
}

// GetCached returns the cached summary for a content hash.
func (m *Manager) GetCached(hash string) fn.Option[string] {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary, ok := m.cache.get(hash)
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return fn.None[string]()
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()

	return fn.Some(summary)
}

// SetCached stores summary under hash, evicting the oldest entries beyond
// the cap. Overwriting a hash keeps its eviction position.
func (m *Manager) SetCached(ctx context.Context, hash, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)

	m.cache.set(hash, summary)
	m.persist(ctx, store.CacheKey, m.cache.entries())
	m.updateGauges()
}

// Cleanup drops every item older than maxAge and returns how many were
// removed. The store is only written when something changed.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)

	cutoff := m.now().Add(-maxAge)
	before := len(m.items)
	m.items = slices.DeleteFunc(m.items, func(item SummaryItem) bool {
		return item.Timestamp.Before(cutoff)
	})

	removed := before - len(m.items)
	if removed > 0 {
		m.persistHistory(ctx)
		m.log.InfoContext(ctx, "Cleaned up old summaries",
			"removed", removed, "max_age", maxAge,
		)
	}

	return removed
}

// RunCleanupLoop runs Cleanup with the configured age every cleanup interval
// until ctx is done.
func (m *Manager) RunCleanupLoop(ctx context.Context) {
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := m.cfg.CleanupMaxAge
	if maxAge <= 0 {
		maxAge = DefaultCleanupMaxAge
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			m.Cleanup(ctx, maxAge)
		}
	}
}

func (m *Manager) indexOf(id string) int {
	return slices.IndexFunc(m.items, func(item SummaryItem) bool {
		return item.ID == id
	})
}

func (m *Manager) persistHistory(ctx context.Context) {
	m.persist(ctx, store.HistoryKey, m.items)
	m.updateGauges()
}

// persist writes v under key. Writes are held back until a load has
// succeeded so a failed read never overwrites durable state. Must be called
// with mu held.
func (m *Manager) persist(ctx context.Context, key string, v any) {
	if !m.initialized {
		return
	}

	raw, err := json.Marshal(v)
	if err == nil {
		err = m.kv.Set(ctx, key, raw)
	}
	if err != nil {
		metrics.PersistFailures.Inc()
		m.log.WarnContext(ctx, "Failed to persist state",
			"key", key, "error", err,
		)
	}
}

func (m *Manager) updateGauges() {
	metrics.HistoryItems.Set(float64(len(m.items)))
	metrics.CacheEntries.Set(float64(m.cache.len()))
}

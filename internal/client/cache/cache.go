// Package cache implements the bounded local cache that backs reads while
// offline. Entries are written through to the storage medium so the cache
// survives restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/fitsync/internal/client/events"
	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
)

// Значения по умолчанию
const (
	DefaultMaxSizeBytes   int64 = 50 * 1024 * 1024
	DefaultTTL                  = 5 * time.Minute
	DefaultTargetFraction       = 0.75
)

// Причины вытеснения в событии CacheEvicted
const (
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
	ReasonOversize = "oversize"
)

// ErrInvalidValue is returned by Put for values that are not valid JSON.
var ErrInvalidValue = errors.New("cache value must be valid JSON")

// Config настройки кеша
type Config struct {
	Policy         Policy
	MaxSizeBytes   int64
	TTL            time.Duration // 0 отключает истечение по возрасту
	SweepInterval  time.Duration // период фоновой очистки; по умолчанию TTL
	TargetFraction float64       // доля MaxSizeBytes, до которой чистит вытеснение
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Policy:         PolicyLRU,
		MaxSizeBytes:   DefaultMaxSizeBytes,
		TTL:            DefaultTTL,
		TargetFraction: DefaultTargetFraction,
	}
}

// Stats is a point-in-time view of cache accounting.
type Stats struct {
	Policy       Policy `json:"policy" yaml:"policy"`
	Entries      int    `json:"entries" yaml:"entries"`
	SizeBytes    int64  `json:"size_bytes" yaml:"size_bytes"`
	MaxSizeBytes int64  `json:"max_size_bytes" yaml:"max_size_bytes"`
	Hits         uint64 `json:"hits" yaml:"hits"`
	Misses       uint64 `json:"misses" yaml:"misses"`
	Evictions    uint64 `json:"evictions" yaml:"evictions"`
}

// Cache is a size- and TTL-bounded key/value store.
// Readers run concurrently; writers and eviction are serialized.
type Cache struct {
	medium    storage.Medium
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
	entries   map[string]*entry
	cfg       Config
	total     int64
	seq       uint64
	touch     atomic.Int64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	mu        sync.RWMutex
}

// New creates an empty cache. Call Load to restore persisted entries.
func New(medium storage.Medium, clk clock.Clock, publisher events.Publisher, cfg Config, logger *slog.Logger) *Cache {
	if cfg.Policy == "" {
		cfg.Policy = PolicyLRU
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.TargetFraction <= 0 || cfg.TargetFraction > 1 {
		cfg.TargetFraction = DefaultTargetFraction
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.TTL
	}

	return &Cache{
		medium:    medium,
		clock:     clk,
		publisher: publisher,
		logger:    logger,
		entries:   make(map[string]*entry),
		cfg:       cfg,
	}
}

// RecordKey returns the cache key of a record.
func RecordKey(entityType, id string) string {
	return "record:" + entityType + ":" + id
}

// Load restores entries from the medium. Expired entries are dropped and the
// size bound is re-established if the configured limit shrank.
func (c *Cache) Load(ctx context.Context) error {
	raw, err := c.medium.ReadAll(ctx, storage.BucketCacheEntries)
	if err != nil {
		return fmt.Errorf("failed to load cache entries: %w", err)
	}

	loaded := make([]*entry, 0, len(raw))
	for key, data := range raw {
		e, err := decodeEntry(data)
		if err != nil || e.key != key {
			c.logger.Warn("Dropping corrupted cache entry", "key", key, "error", err)
			if err := c.medium.Remove(ctx, storage.BucketCacheEntries, key); err != nil {
				return fmt.Errorf("failed to drop cache entry: %w", err)
			}
			continue
		}
		loaded = append(loaded, e)
	}

	// Восстанавливаем порядок вставки и обращений по сохранённым временам
	sort.Slice(loaded, func(i, j int) bool {
		if !loaded[i].insertedAt.Equal(loaded[j].insertedAt) {
			return loaded[i].insertedAt.Before(loaded[j].insertedAt)
		}
		return loaded[i].key < loaded[j].key
	})

	c.mu.Lock()
	c.entries = make(map[string]*entry, len(loaded))
	c.total = 0
	for _, e := range loaded {
		c.seq++
		e.seq = c.seq
		c.entries[e.key] = e
		c.total += e.size
	}
	byAccess := append([]*entry(nil), loaded...)
	sort.SliceStable(byAccess, func(i, j int) bool {
		return byAccess[i].lastAccessed.Load() < byAccess[j].lastAccessed.Load()
	})
	for _, e := range byAccess {
		e.touch.Store(c.touch.Add(1))
	}

	now := c.clock.Now()
	evicted, err := c.sweepLocked(ctx, now)
	if err == nil {
		var more []events.Event
		more, err = c.evictLocked(ctx, now, "")
		evicted = append(evicted, more...)
	}
	count := len(c.entries)
	c.mu.Unlock()

	c.publish(evicted)
	if err != nil {
		return err
	}

	c.logger.Info("Cache loaded", "entries", count, "evicted", len(evicted))
	return nil
}

// Put inserts or replaces a value. If the total size exceeds the bound,
// entries are evicted before Put returns. A value larger than the whole
// cache is not stored.
func (c *Cache) Put(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: key %s", ErrInvalidValue, key)
	}

	c.mu.Lock()
	evicted, err := c.putLocked(ctx, key, value)
	c.mu.Unlock()

	c.publish(evicted)
	return err
}

func (c *Cache) putLocked(ctx context.Context, key string, value json.RawMessage) ([]events.Event, error) {
	now := c.clock.Now()

	// TTL очистка выполняется попутно при каждой записи
	evicted, err := c.sweepLocked(ctx, now)
	if err != nil {
		return evicted, err
	}

	size := entrySize(key, value)
	if size > c.cfg.MaxSizeBytes {
		c.logger.Debug("Value exceeds cache size, not cached", "key", key, "size_bytes", size)
		if old, ok := c.entries[key]; ok {
			// Старое значение устарело, держать его нельзя
			if err := c.removeLocked(ctx, old); err != nil {
				return evicted, err
			}
			evicted = append(evicted, c.evictedEvent(old, ReasonOversize, now))
		}
		return evicted, nil
	}

	c.seq++
	e := &entry{
		insertedAt: now,
		key:        key,
		value:      append([]byte(nil), value...),
		size:       size,
		seq:        c.seq,
	}
	e.touch.Store(c.touch.Add(1))
	e.lastAccessed.Store(now.UnixNano())

	data, err := encodeEntry(e)
	if err != nil {
		return evicted, err
	}
	if err := c.medium.Write(ctx, storage.BucketCacheEntries, key, data); err != nil {
		return evicted, fmt.Errorf("failed to persist cache entry %s: %w", key, err)
	}

	if old, ok := c.entries[key]; ok {
		c.total -= old.size
	}
	c.entries[key] = e
	c.total += size

	more, err := c.evictLocked(ctx, now, key)
	return append(evicted, more...), err
}

// Get returns a copy of the value stored under key.
// Expired entries are reported as a miss and removed by the next sweep.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	now := c.clock.Now()
	if !ok || e.expired(now, c.cfg.TTL) {
		c.misses.Add(1)
		return nil, false
	}

	e.accessCount.Add(1)
	e.lastAccessed.Store(now.UnixNano())
	e.touch.Store(c.touch.Add(1))
	e.dirty.Store(true)
	c.hits.Add(1)

	return append(json.RawMessage(nil), e.value...), true
}

// Peek returns a snapshot of the entry without touching access accounting.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// PutRecord caches a record under RecordKey.
func (c *Cache) PutRecord(ctx context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return c.Put(ctx, RecordKey(rec.EntityType, rec.ID), data)
}

// GetRecord returns the cached record, if any.
func (c *Cache) GetRecord(entityType, id string) (*models.Record, bool) {
	data, ok := c.Get(RecordKey(entityType, id))
	if !ok {
		return nil, false
	}

	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("Cached value is not a record", "entity_type", entityType, "id", id, "error", err)
		return nil, false
	}
	return &rec, true
}

// InvalidateRecord removes a cached record.
func (c *Cache) InvalidateRecord(ctx context.Context, entityType, id string) error {
	return c.Invalidate(ctx, RecordKey(entityType, id))
}

// Invalidate removes key. Invalidating a missing key is a no-op.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	return c.removeLocked(ctx, e)
}

// Clear removes every entry and resets size accounting to zero.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if err := c.removeLocked(ctx, e); err != nil {
			return err
		}
	}
	c.total = 0
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	c.mu.Lock()
	evicted, err := c.sweepLocked(ctx, c.clock.Now())
	c.mu.Unlock()

	c.publish(evicted)
	return len(evicted), err
}

// Run sweeps expired entries periodically until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) error {
	if c.cfg.TTL <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := c.clock.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if n, err := c.Sweep(ctx); err != nil {
				c.logger.Error("Cache sweep failed", "error", err)
			} else if n > 0 {
				c.logger.Debug("Cache sweep removed expired entries", "count", n)
			}
		}
	}
}

// Flush persists access statistics changed by Get since the last write.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	dirty := make([]*entry, 0)
	for _, e := range c.entries {
		if e.dirty.Load() {
			dirty = append(dirty, e)
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range dirty {
		// Запись могла быть заменена или удалена между блокировками
		if c.entries[e.key] != e || !e.dirty.Swap(false) {
			continue
		}
		data, err := encodeEntry(e)
		if err != nil {
			return err
		}
		if err := c.medium.Write(ctx, storage.BucketCacheEntries, e.key, data); err != nil {
			e.dirty.Store(true)
			return fmt.Errorf("failed to flush cache entry %s: %w", e.key, err)
		}
	}
	return nil
}

// Stats returns current cache accounting.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Policy:       c.cfg.Policy,
		Entries:      len(c.entries),
		SizeBytes:    c.total,
		MaxSizeBytes: c.cfg.MaxSizeBytes,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
	}
}

// sweepLocked удаляет записи с истекшим TTL; вызывается под c.mu
func (c *Cache) sweepLocked(ctx context.Context, now time.Time) ([]events.Event, error) {
	if c.cfg.TTL <= 0 {
		return nil, nil
	}

	var expired []*entry
	for _, e := range c.entries {
		if e.expired(now, c.cfg.TTL) {
			expired = append(expired, e)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })

	evicted := make([]events.Event, 0, len(expired))
	for _, e := range expired {
		if err := c.removeLocked(ctx, e); err != nil {
			return evicted, err
		}
		evicted = append(evicted, c.evictedEvent(e, ReasonExpired, now))
	}
	return evicted, nil
}

// evictLocked вытесняет записи по политике, пока размер не опустится до
// TargetFraction от лимита. Запись keep не вытесняется.
func (c *Cache) evictLocked(ctx context.Context, now time.Time, keep string) ([]events.Event, error) {
	if c.total <= c.cfg.MaxSizeBytes {
		return nil, nil
	}

	target := int64(float64(c.cfg.MaxSizeBytes) * c.cfg.TargetFraction)
	candidates := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.key != keep {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return c.cfg.Policy.less(candidates[i], candidates[j])
	})

	var evicted []events.Event
	for _, e := range candidates {
		if c.total <= target {
			break
		}
		if err := c.removeLocked(ctx, e); err != nil {
			return evicted, err
		}
		evicted = append(evicted, c.evictedEvent(e, ReasonCapacity, now))
	}

	c.logger.Debug("Cache eviction finished",
		"policy", string(c.cfg.Policy),
		"evicted", len(evicted),
		"size_bytes", c.total,
	)
	return evicted, nil
}

// removeLocked удаляет запись из носителя и из памяти
func (c *Cache) removeLocked(ctx context.Context, e *entry) error {
	if err := c.medium.Remove(ctx, storage.BucketCacheEntries, e.key); err != nil {
		return fmt.Errorf("failed to remove cache entry %s: %w", e.key, err)
	}
	delete(c.entries, e.key)
	c.total -= e.size
	return nil
}

func (c *Cache) evictedEvent(e *entry, reason string, now time.Time) events.Event {
	c.evictions.Add(1)
	return events.Event{
		Type:   events.CacheEvicted,
		At:     now,
		Key:    e.key,
		Reason: reason,
	}
}

// publish отправляет события вне блокировки: обработчики могут читать кеш
func (c *Cache) publish(evicted []events.Event) {
	if c.publisher == nil {
		return
	}
	for _, e := range evicted {
		c.publisher.Publish(e)
	}
}

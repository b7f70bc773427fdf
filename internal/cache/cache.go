// Package cache implements the bounded, concurrent LRU+TTL cache shared
// across the runtime for hot lookups (instrument metadata, recent order
// snapshots, adapter state) with optional on-disk snapshotting (spec
// §3.D). Sharded the way the teacher's internal/engine/engine.go and
// internal/risk/manager.go guard their maps with per-entity mutexes: keys
// hash (fnv) to one of a fixed number of shards, each an independent
// container/list LRU with its own lock, so unrelated keys never
// contend. Ports alphaforge.core.cache.Cache's single OrderedDict design
// to this concurrent, sharded structure while preserving per-key
// linearizability.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"tradecore/pkg/tcerr"
)

const defaultShardCount = 16

// Config controls capacity, default entry TTL, shard count, and optional
// persistence.
type Config struct {
	MaxEntries   int           `mapstructure:"max_entries"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	ShardCount   int           `mapstructure:"shard_count"`
	SnapshotPath string        `mapstructure:"snapshot_path"`
}

// Statistics mirrors alphaforge.core.cache.CacheStatistics: counters plus
// derived hit rate. Aggregated across all shards.
type Statistics struct {
	Hits        uint64
	Misses      uint64
	Inserts     uint64
	Evictions   uint64
	Expirations uint64
	Size        int
}

// HitRate returns Hits / (Hits+Misses), or 0 with no lookups yet.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key        string
	value      any
	expiresAt  time.Time
	hasTTL     bool
	accessedAt time.Time
}

// snapshotEntry is the JSON-on-disk shape for one cache entry.
type snapshotEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type statCounters struct {
	hits, misses, inserts, evictions, expirations atomic.Uint64
}

type shard struct {
	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[string]*list.Element
	cap   int
}

// Cache is a bounded, sharded LRU cache with per-entry optional TTL. Safe
// for concurrent use.
type Cache struct {
	cfg    Config
	shards []*shard
	stats  statCounters
}

// New constructs a Cache from cfg, defaulting MaxEntries to 10000 and
// ShardCount to 16 if unset. MaxEntries is divided across shards so their
// capacities sum to exactly MaxEntries (never more): ShardCount is capped
// at MaxEntries, since a shard with less than one slot would let total
// capacity exceed MaxEntries once floored up to 1, violating the
// size <= max_size invariant.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = defaultShardCount
	}
	if cfg.ShardCount > cfg.MaxEntries {
		cfg.ShardCount = cfg.MaxEntries
	}
	base := cfg.MaxEntries / cfg.ShardCount
	remainder := cfg.MaxEntries % cfg.ShardCount
	c := &Cache{cfg: cfg, shards: make([]*shard, cfg.ShardCount)}
	for i := range c.shards {
		shardCap := base
		if i < remainder {
			shardCap++
		}
		c.shards[i] = &shard{
			order: list.New(),
			items: make(map[string]*list.Element),
			cap:   shardCap,
		}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Put inserts or replaces key's value, using ttl if > 0, else cfg.DefaultTTL,
// else no expiry. Least-recently-used entries in key's shard are evicted
// while that shard holds more entries than its capacity after insertion.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := time.Now()
	e := &entry{key: key, value: value, accessedAt: now}
	if ttl > 0 {
		e.hasTTL = true
		e.expiresAt = now.Add(ttl)
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value = e
		s.order.MoveToFront(el)
	} else {
		el := s.order.PushFront(e)
		s.items[key] = el
		c.stats.inserts.Add(1)
	}
	for s.order.Len() > s.cap {
		c.evictOldestLocked(s)
	}
}

// evictOldestLocked removes the least-recently-used entry. Caller holds s.mu.
func (c *Cache) evictOldestLocked(s *shard) {
	oldest := s.order.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	s.order.Remove(oldest)
	delete(s.items, e.key)
	c.stats.evictions.Add(1)
}

// Get returns the value for key, or (nil, false) on miss or expiry.
// A hit touches the entry, moving it to the front of its shard's LRU order.
func (c *Cache) Get(key string) (any, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		c.stats.misses.Add(1)
		return nil, false
	}
	e := el.Value.(*entry)
	if e.hasTTL && time.Now().After(e.expiresAt) {
		s.order.Remove(el)
		delete(s.items, key)
		c.stats.expirations.Add(1)
		c.stats.misses.Add(1)
		return nil, false
	}
	e.accessedAt = time.Now()
	s.order.MoveToFront(el)
	c.stats.hits.Add(1)
	return e.value, true
}

// Contains reports presence without affecting LRU order or stats, mirroring
// CacheStatistics semantics where contains checks do not count as lookups.
func (c *Cache) Contains(key string) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	return !(e.hasTTL && time.Now().After(e.expiresAt))
}

// Remove deletes key if present, reporting whether it was.
func (c *Cache) Remove(key string) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.items, key)
	return true
}

// Clear empties every shard without resetting cumulative statistics.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.order.Init()
		s.items = make(map[string]*list.Element)
		s.mu.Unlock()
	}
}

// Size returns the current entry count across all shards.
func (c *Cache) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.order.Len()
		s.mu.Unlock()
	}
	return total
}

// Keys returns all live keys; order is shard-major, most-recently-used
// first within each shard, and not globally LRU-ordered.
func (c *Cache) Keys() []string {
	var keys []string
	now := time.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.order.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry)
			if e.hasTTL && now.After(e.expiresAt) {
				continue
			}
			keys = append(keys, e.key)
		}
		s.mu.Unlock()
	}
	return keys
}

// Statistics returns a snapshot of the cumulative counters.
func (c *Cache) Statistics() Statistics {
	return Statistics{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Inserts:     c.stats.inserts.Load(),
		Evictions:   c.stats.evictions.Load(),
		Expirations: c.stats.expirations.Load(),
		Size:        c.Size(),
	}
}

// ResetStatistics zeroes the cumulative counters without touching entries.
func (c *Cache) ResetStatistics() {
	c.stats = statCounters{}
}

// SaveSnapshot writes the live, non-expired entries to cfg.SnapshotPath as
// JSON, via a temp-file-then-rename so a crash mid-write never corrupts
// the existing snapshot, the same pattern as the teacher's
// internal/store/store.go persistence.
func (c *Cache) SaveSnapshot() error {
	if c.cfg.SnapshotPath == "" {
		return nil
	}
	var entries []snapshotEntry
	now := time.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.order.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*entry)
			if e.hasTTL && now.After(e.expiresAt) {
				continue
			}
			raw, err := json.Marshal(e.value)
			if err != nil {
				s.mu.Unlock()
				return fmt.Errorf("%w: marshal cache entry %q: %v", tcerr.ErrValidation, e.key, err)
			}
			se := snapshotEntry{Key: e.key, Value: raw}
			if e.hasTTL {
				exp := e.expiresAt
				se.ExpiresAt = &exp
			}
			entries = append(entries, se)
		}
		s.mu.Unlock()
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(c.cfg.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := c.cfg.SnapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp file: %w", err)
	}
	if err := os.Rename(tmp, c.cfg.SnapshotPath); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// LoadSnapshot reads cfg.SnapshotPath, if it exists, unmarshaling each
// value via decodeInto and inserting entries that have not already
// expired. If merge is false, the cache is cleared first so the snapshot
// fully replaces current contents; if true, the snapshot is overlaid onto
// whatever is already cached (spec leaves this choice to the caller). A
// missing or malformed snapshot file is not an error: the cache is left
// as constructed.
func (c *Cache) LoadSnapshot(merge bool, decodeInto func(key string, raw json.RawMessage) (any, error)) error {
	if c.cfg.SnapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.cfg.SnapshotPath)
	if err != nil {
		return nil
	}
	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}

	if !merge {
		c.Clear()
	}

	now := time.Now()
	for _, se := range entries {
		if se.ExpiresAt != nil && now.After(*se.ExpiresAt) {
			continue
		}
		value, err := decodeInto(se.Key, se.Value)
		if err != nil {
			continue
		}
		var ttl time.Duration
		if se.ExpiresAt != nil {
			ttl = time.Until(*se.ExpiresAt)
			if ttl <= 0 {
				continue
			}
		}
		c.Put(se.Key, value, ttl)
	}
	return nil
}

// PersistPeriodically saves a snapshot every interval until ctx is
// canceled. Mirrors the periodic-flush goroutines the teacher runs from
// internal/engine/engine.go's Start method.
func (c *Cache) PersistPeriodically(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SaveSnapshot(); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

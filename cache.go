// Package rcache implements a two-tier (in-memory + on-disk) key/value
// cache with LRU eviction and write-ahead journaling. Clients store and
// fetch opaque byte payloads by string key; committed entries survive
// process restarts, both tiers are bounded by configurable size budgets,
// and the cache is safe for concurrent use from multiple goroutines.
package rcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/r2cache/rcache/flush"
	"github.com/r2cache/rcache/internal/metrics"
	"github.com/r2cache/rcache/internal/tracing"
	"github.com/r2cache/rcache/journal"
	"github.com/r2cache/rcache/layout"
	"github.com/r2cache/rcache/lru"
	"github.com/r2cache/rcache/rfs"
	"github.com/r2cache/rcache/store"
	"github.com/r2cache/rcache/worker"
)

// Operation names used for both span names (prefixed "rcache.") and the
// rcache_operations_total metric's op label.
const (
	opFetch       = "Fetch"
	opStore       = "Store"
	opDelete      = "Delete"
	opClearMemory = "ClearMemory"
	opMemSize     = "MemSize"
	opFileSize    = "FileSize"
	opFlush       = "Flush"
	opClearAll    = "ClearAll"
)

const dirPerm = 0o750

// Cache is the public facade coordinating the LRU index, the payload
// store, and the journal under a single lock.
type Cache struct {
	mu sync.RWMutex

	idx     *lru.Index
	store   *store.Store
	journal *journal.Journal
	fsys    rfs.FS
	paths   layout.Paths
	clock   Clock

	maxMemoryBytes int64
	maxDiskBytes   int64

	logger  *slog.Logger
	pool    *worker.Pool
	metrics *metrics.Metrics
	tracer  *tracing.Config

	closed bool
}

// Open constructs a [Cache] rooted at the directory given via
// [WithCacheLocation], applying opts over [DefaultOptions]. It ensures the
// payload and journal folders exist, recovers from any existing journal
// (removing payload files whose write/delete intent was never committed),
// and resets the journal to a fresh, empty one before returning.
func Open(ctx context.Context, opts ...Option) (*Cache, error) {
	cfg := resolve(opts)

	if cfg.cacheLocation == "" {
		return nil, errCacheLocationRequired
	}

	paths := layout.New(cfg.cacheLocation)

	if err := cfg.fs.MkdirAll(paths.PayloadDir, dirPerm); err != nil {
		return nil, fmt.Errorf("rcache: create payload dir: %w", err)
	}

	if err := cfg.fs.MkdirAll(paths.JournalDir, dirPerm); err != nil {
		return nil, fmt.Errorf("rcache: create journal dir: %w", err)
	}

	jrn := journal.New(cfg.fs, paths.JournalFile)

	exists, err := cfg.fs.Exists(paths.JournalFile)
	if err != nil {
		return nil, fmt.Errorf("rcache: stat journal: %w", err)
	}

	if exists {
		if err := journal.Recover(cfg.fs, paths, cfg.logger); err != nil {
			return nil, fmt.Errorf("rcache: recover: %w", err)
		}
	} else if err := jrn.Reset(); err != nil {
		return nil, fmt.Errorf("rcache: init journal: %w", err)
	}

	var pool *worker.Pool
	if cfg.syncWorker {
		pool = worker.NewSyncPool()
	} else {
		pool = worker.NewPool(cfg.workerCount, cfg.logger)
	}

	c := &Cache{
		idx:            lru.New(),
		store:          store.New(cfg.fs, paths),
		journal:        jrn,
		fsys:           cfg.fs,
		paths:          paths,
		clock:          cfg.clock,
		maxMemoryBytes: cfg.maxMemoryBytes,
		maxDiskBytes:   cfg.maxDiskBytes,
		logger:         cfg.logger,
		pool:           pool,
		metrics:        metrics.New(cfg.registerer),
		tracer:         &tracing.Config{TracerProvider: cfg.tracerProvider},
	}

	c.logger.Info("rcache: opened",
		"root", cfg.cacheLocation,
		"max_memory", c.maxMemoryBytes,
		"max_disk", c.maxDiskBytes,
	)

	return c, nil
}

// Close stops the background worker pool. Subsequent Fetch, Store, Delete,
// FileSize, Flush and ClearAll calls return [ErrClosed]; ClearMemory and
// MemSize still act on the in-memory index. Close does not flush; call [Cache.Flush] first if pending
// mutations must be persisted.
func (c *Cache) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	// Queued jobs take c.mu, see closed, and return ErrClosed; the pool
	// waits for them, so c.mu must not be held here.
	c.pool.Close()

	return nil
}

// Fetch returns key's payload, moving it to the most-recently-used
// position and evicting colder entries until the in-memory budget is
// satisfied. A tombstoned or unknown key returns (nil, false, nil).
func (c *Cache) Fetch(ctx context.Context, key string) (data []byte, found bool, err error) {
	if verr := ValidateKey(key); verr != nil {
		return nil, false, verr
	}

	_, end := tracing.StartOp(ctx, c.tracer, opFetch, key)
	defer func() { end(err); c.metrics.Observe(opFetch, resultOf(err)) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}

	entry, tracked := c.idx.Peek(key)
	if tracked && entry.State == lru.Deleted {
		return nil, false, nil
	}

	if !tracked {
		raw, onDisk, rerr := c.store.Read(key)
		if rerr != nil {
			return nil, false, fmt.Errorf("rcache: fetch %s: %w", key, rerr)
		}

		if !onDisk {
			return nil, false, nil
		}

		entry = &lru.CacheEntry{
			Key:      key,
			Bytes:    raw,
			State:    lru.Synced,
			DiskPath: c.store.PayloadPath(key),
		}
	} else if entry.State == lru.Synced {
		entry.State = lru.Accessed
	}

	entry.LastAccessed = c.clock.Now()
	c.idx.Put(key, entry)

	evicted := c.idx.EvictUntil(c.maxMemoryBytes)
	c.metrics.AddEvictions("memory", len(evicted))
	c.metrics.SetMemoryBytes(c.idx.LenBytes())

	return entry.Bytes, true, nil
}

// Store writes data for key into the in-memory index as a dirty
// (Updated) entry at the most-recently-used position. It does not evict:
// the memory budget is enforced on the next Fetch or Flush, keeping Store
// O(1).
func (c *Cache) Store(ctx context.Context, key string, data []byte) (err error) {
	if verr := ValidateKey(key); verr != nil {
		return verr
	}

	_, end := tracing.StartOp(ctx, c.tracer, opStore, key)
	defer func() { end(err); c.metrics.Observe(opStore, resultOf(err)) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.idx.Put(key, &lru.CacheEntry{
		Key:          key,
		Bytes:        data,
		State:        lru.Updated,
		LastAccessed: c.clock.Now(),
	})

	c.metrics.SetMemoryBytes(c.idx.LenBytes())

	return nil
}

// Delete marks key as a tombstone. If key isn't currently tracked, it is
// first loaded from disk so the tombstone binds to whatever payload (if
// any) is there; the actual disk removal happens on the next Flush.
func (c *Cache) Delete(ctx context.Context, key string) (err error) {
	if verr := ValidateKey(key); verr != nil {
		return verr
	}

	_, end := tracing.StartOp(ctx, c.tracer, opDelete, key)
	defer func() { end(err); c.metrics.Observe(opDelete, resultOf(err)) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if _, tracked := c.idx.Peek(key); tracked {
		c.idx.MarkDeleted(key)

		return nil
	}

	raw, _, rerr := c.store.Read(key)
	if rerr != nil {
		return fmt.Errorf("rcache: delete %s: %w", key, rerr)
	}

	c.idx.Put(key, &lru.CacheEntry{
		Key:          key,
		Bytes:        raw,
		State:        lru.Deleted,
		LastAccessed: c.clock.Now(),
		DiskPath:     c.store.PayloadPath(key),
	})

	return nil
}

// ClearMemory empties the in-memory index. Disk payloads are unaffected.
func (c *Cache) ClearMemory(ctx context.Context) {
	_, end := tracing.StartOp(ctx, c.tracer, opClearMemory, "")
	defer func() { end(nil); c.metrics.Observe(opClearMemory, "ok") }()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.idx.Clear()
	c.metrics.SetMemoryBytes(0)
}

// MemSize returns the sum of bytes over every non-deleted entry currently
// in the index. Unlike every other facade method, MemSize only needs a
// read lock: it doesn't mutate recency or any other state.
func (c *Cache) MemSize(ctx context.Context) int64 {
	_, end := tracing.StartOp(ctx, c.tracer, opMemSize, "")
	defer func() { end(nil); c.metrics.Observe(opMemSize, "ok") }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.idx.LenBytes()
}

// FileSize schedules a disk-bytes total on the background worker and
// returns a [worker.Future] resolving to the sum of payload file sizes.
func (c *Cache) FileSize(ctx context.Context) *worker.Future[int64] {
	_, end := tracing.StartOp(ctx, c.tracer, opFileSize, "")

	return worker.Submit(c.pool, func() (int64, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		var n int64

		var err error

		if c.closed {
			err = ErrClosed
		} else {
			n, err = c.store.TotalSize()
		}

		end(err)
		c.metrics.Observe(opFileSize, resultOf(err))

		return n, err
	})
}

// Flush schedules a flush pass on the background worker: every dirty
// entry is written, propagated, or deleted through the journal and
// payload store, then the trimmer enforces MaxDiskBytes. The returned
// [worker.Future] resolves to whether the pass completed successfully.
func (c *Cache) Flush(ctx context.Context) *worker.Future[bool] {
	_, end := tracing.StartOp(ctx, c.tracer, opFlush, "")

	return worker.Submit(c.pool, func() (bool, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			end(ErrClosed)
			c.metrics.Observe(opFlush, "error")

			return false, ErrClosed
		}

		start := time.Now()
		res, err := flush.Run(c.idx, c.store, c.journal, c.maxDiskBytes, c.logger)
		c.metrics.ObserveFlush(time.Since(start).Seconds())

		end(err)
		c.metrics.Observe(opFlush, resultOf(err))

		if err != nil {
			return false, err
		}

		c.metrics.AddEvictions("disk", res.Purged)
		c.metrics.SetMemoryBytes(c.idx.LenBytes())

		if total, terr := c.store.TotalSize(); terr == nil {
			c.metrics.SetDiskBytes(total)
		}

		return true, nil
	})
}

// ClearAll schedules, on the background worker, a full reset: the
// in-memory index is emptied, the payload folder is deleted and
// recreated, and the journal is reset to a fresh header-only file. The
// returned [worker.Future] resolves to whether the reset completed
// successfully.
func (c *Cache) ClearAll(ctx context.Context) *worker.Future[bool] {
	_, end := tracing.StartOp(ctx, c.tracer, opClearAll, "")

	return worker.Submit(c.pool, func() (bool, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		err := c.clearAllLocked()

		end(err)
		c.metrics.Observe(opClearAll, resultOf(err))

		if err != nil {
			return false, err
		}

		c.metrics.SetMemoryBytes(0)
		c.metrics.SetDiskBytes(0)

		return true, nil
	})
}

func (c *Cache) clearAllLocked() error {
	if c.closed {
		return ErrClosed
	}

	c.idx.Clear()

	if err := c.fsys.RemoveAll(c.paths.PayloadDir); err != nil {
		return fmt.Errorf("rcache: clear all: remove payload dir: %w", err)
	}

	if err := c.fsys.MkdirAll(c.paths.PayloadDir, dirPerm); err != nil {
		return fmt.Errorf("rcache: clear all: recreate payload dir: %w", err)
	}

	if err := c.fsys.MkdirAll(c.paths.JournalDir, dirPerm); err != nil {
		return fmt.Errorf("rcache: clear all: recreate journal dir: %w", err)
	}

	if err := c.journal.Reset(); err != nil {
		return fmt.Errorf("rcache: clear all: reset journal: %w", err)
	}

	return nil
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

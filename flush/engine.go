// Package flush implements the flush engine rcache runs on every Flush
// call: it drains dirty LRU entries to the payload store through the
// journal, then trims the disk tier back to its size budget.
package flush

import (
	"fmt"
	"log/slog"

	"github.com/r2cache/rcache/journal"
	"github.com/r2cache/rcache/lru"
	"github.com/r2cache/rcache/store"
)

// Result summarizes one flush pass, for metrics and logging.
type Result struct {
	Written int
	Deleted int
	Synced  int
	Purged  int
}

// Run drains every non-Synced entry in idx to st, bracketing each write or
// delete with a journal intent and commit, then runs the trimmer against
// maxDisk. It mutates idx in place: Updated/Accessed entries become
// Synced, Deleted entries are removed entirely.
//
// Run stops at the first storage error, leaving idx (and the journal) in a
// state where the aborted entry's intent may be uncommitted — exactly the
// condition recovery is built to repair on the next open.
func Run(idx *lru.Index, st *store.Store, jrn *journal.Journal, maxDisk int64, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result

	for _, key := range idx.Keys() {
		entry, ok := idx.Peek(key)
		if !ok {
			continue
		}

		switch entry.State {
		case lru.Updated:
			if err := writeThroughJournal(jrn, st, entry); err != nil {
				return res, fmt.Errorf("flush: write %s: %w", key, err)
			}

			// Pin the file's mtime to the entry's LastAccessed (driven by
			// the injected clock) rather than leaving it at whatever
			// wall-clock time the write syscall stamped, so disk recency
			// always agrees with the clock the rest of the cache uses.
			if err := st.SetMtime(key, entry.LastAccessed); err != nil {
				return res, fmt.Errorf("flush: set mtime %s: %w", key, err)
			}

			entry.State = lru.Synced
			entry.DiskPath = st.PayloadPath(key)
			res.Written++
			res.Synced++
		case lru.Deleted:
			if err := deleteThroughJournal(jrn, st, entry); err != nil {
				return res, fmt.Errorf("flush: delete %s: %w", key, err)
			}

			idx.Remove(key)
			res.Deleted++
		case lru.Accessed:
			if err := st.SetMtime(key, entry.LastAccessed); err != nil {
				logger.Warn("rcache: set mtime failed", "key", key, "error", err)

				return res, fmt.Errorf("flush: set mtime %s: %w", key, err)
			}

			entry.State = lru.Synced
			res.Synced++
		case lru.Synced:
			// Nothing to do; already persisted and mtime current.
		}
	}

	purged, err := PurgeOldest(st, idx, maxDisk)
	if err != nil {
		return res, fmt.Errorf("flush: purge: %w", err)
	}

	res.Purged = purged

	return res, nil
}

func writeThroughJournal(jrn *journal.Journal, st *store.Store, entry *lru.CacheEntry) error {
	id, err := jrn.BeginWrite(entry.Key)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}

	if err := st.Write(entry.Key, entry.Bytes); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	if err := jrn.Commit(id); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func deleteThroughJournal(jrn *journal.Journal, st *store.Store, entry *lru.CacheEntry) error {
	id, err := jrn.BeginDelete(entry.Key)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}

	if err := st.Delete(entry.Key); err != nil {
		return fmt.Errorf("delete payload: %w", err)
	}

	if err := jrn.Commit(id); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

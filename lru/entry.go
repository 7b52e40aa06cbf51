// Package lru implements the in-memory index rcache keeps on top of the
// payload store: a key-to-entry map maintained in least-recently-used
// order via container/list, plus the per-entry dirty-state bookkeeping
// the flush engine drains.
package lru

import "time"

// State is the lifecycle stage of a [CacheEntry] between facade calls.
type State int

const (
	// Updated marks an entry written since the last flush; its bytes have
	// not yet been persisted to the payload store.
	Updated State = iota

	// Accessed marks an entry that is already persisted but whose
	// recency (disk mtime) has not yet been propagated there.
	Accessed

	// Synced marks an entry whose bytes and disk mtime both match the
	// in-memory record.
	Synced

	// Deleted marks a tombstone: the key is pending removal from disk on
	// the next flush and is excluded from any subsequent fetch.
	Deleted
)

// String renders a State for logging and test failure messages.
func (s State) String() string {
	switch s {
	case Updated:
		return "Updated"
	case Accessed:
		return "Accessed"
	case Synced:
		return "Synced"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// CacheEntry is the in-memory record the LRU index keeps for one live key.
type CacheEntry struct {
	Key string

	// Bytes is the payload. Always present while the entry is in the
	// index, even for Deleted tombstones (where it may be empty).
	Bytes []byte

	State State

	// LastAccessed is the instant of the most recent read or write via
	// the facade, taken from the injected clock.
	LastAccessed time.Time

	// DiskPath is set once the entry has been loaded from or written to
	// the payload store; empty for entries that only ever existed
	// in-memory so far.
	DiskPath string
}

// Size is the number of payload bytes this entry accounts toward the
// in-memory budget.
func (e *CacheEntry) Size() int64 {
	return int64(len(e.Bytes))
}

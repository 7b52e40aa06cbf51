package lru

import "container/list"

// Index is an ordered map from key to [*CacheEntry], built on
// container/list so iteration order reflects access recency: the element
// at the front is least-recently-used, the element at the back is
// most-recently-used.
//
// Index is not safe for concurrent use; callers serialize access (the
// cache facade's lock, in rcache's case).
type Index struct {
	order  *list.List
	byKey  map[string]*list.Element
	nBytes int64
}

// New returns an empty [Index].
func New() *Index {
	return &Index{
		order: list.New(),
		byKey: make(map[string]*list.Element),
	}
}

// Get returns the entry for key, if present, moving it to the
// most-recently-used position first.
func (idx *Index) Get(key string) (*CacheEntry, bool) {
	elem, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}

	idx.order.MoveToBack(elem)

	return elem.Value.(*CacheEntry), true
}

// Peek returns the entry for key without affecting its recency.
func (idx *Index) Peek(key string) (*CacheEntry, bool) {
	elem, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}

	return elem.Value.(*CacheEntry), true
}

// Put inserts entry at the most-recently-used position, replacing any
// existing entry for the same key.
func (idx *Index) Put(key string, entry *CacheEntry) {
	if elem, ok := idx.byKey[key]; ok {
		old := elem.Value.(*CacheEntry)
		idx.nBytes -= sizeOf(old)
		elem.Value = entry
		idx.order.MoveToBack(elem)
		idx.nBytes += sizeOf(entry)

		return
	}

	elem := idx.order.PushBack(entry)
	idx.byKey[key] = elem
	idx.nBytes += sizeOf(entry)
}

// Remove unlinks key from the index. A no-op if key isn't present.
func (idx *Index) Remove(key string) {
	elem, ok := idx.byKey[key]
	if !ok {
		return
	}

	idx.nBytes -= sizeOf(elem.Value.(*CacheEntry))
	idx.order.Remove(elem)
	delete(idx.byKey, key)
}

// Len returns the number of entries currently tracked, including
// tombstones awaiting flush.
func (idx *Index) Len() int {
	return idx.order.Len()
}

// LenBytes returns the sum of Size() over every non-Deleted entry: the
// current in-memory cache size.
func (idx *Index) LenBytes() int64 {
	return idx.nBytes
}

// sizeOf counts a Deleted entry as zero bytes toward the memory budget,
// matching the data model's definition of "memory cache size".
func sizeOf(e *CacheEntry) int64 {
	if e.State == Deleted {
		return 0
	}

	return e.Size()
}

// EvictUntil removes least-recently-used entries, oldest first, until
// LenBytes is at most max. It never mutates entry state; it is
// pure memory eviction and does not touch disk. The evicted entries are
// returned in eviction order.
func (idx *Index) EvictUntil(max int64) []*CacheEntry {
	var evicted []*CacheEntry

	for idx.nBytes > max {
		front := idx.order.Front()
		if front == nil {
			break
		}

		entry := front.Value.(*CacheEntry)
		idx.order.Remove(front)
		delete(idx.byKey, entry.Key)
		idx.nBytes -= sizeOf(entry)
		evicted = append(evicted, entry)
	}

	return evicted
}

// Range walks every entry in the index in least-recently-used-first
// order, calling fn for each. Iteration stops early if fn returns false.
// fn must not mutate the index.
func (idx *Index) Range(fn func(*CacheEntry) bool) {
	for elem := idx.order.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Value.(*CacheEntry)) {
			return
		}
	}
}

// Keys returns every key currently tracked, in LRU-to-MRU order. Used by
// tests and by the flush engine's walk over the index.
func (idx *Index) Keys() []string {
	out := make([]string, 0, idx.order.Len())

	idx.Range(func(e *CacheEntry) bool {
		out = append(out, e.Key)

		return true
	})

	return out
}

// Has reports whether key is currently tracked, without affecting
// recency.
func (idx *Index) Has(key string) bool {
	_, ok := idx.byKey[key]

	return ok
}

// MarkDeleted transitions key's entry to the Deleted state in place,
// adjusting the cached byte total so LenBytes immediately reflects the
// tombstone no longer counting toward the memory budget. Reports whether
// key was tracked.
func (idx *Index) MarkDeleted(key string) (*CacheEntry, bool) {
	elem, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*CacheEntry)
	if entry.State != Deleted {
		idx.nBytes -= entry.Size()
		entry.State = Deleted
	}

	return entry, true
}

// Clear empties the index. Callers use this for ClearMemory; it has no
// effect on disk.
func (idx *Index) Clear() {
	idx.order = list.New()
	idx.byKey = make(map[string]*list.Element)
	idx.nBytes = 0
}

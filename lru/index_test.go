package lru_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r2cache/rcache/lru"
)

func TestIndex_Put_NewKey_InsertsAtBack(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aaa")})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("bb")})

	require.Equal(t, []string{"a", "b"}, idx.Keys())
	require.Equal(t, int64(5), idx.LenBytes())
}

func TestIndex_Get_MovesEntryToBack(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("a")})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("b")})

	entry, ok := idx.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", entry.Key)

	require.Equal(t, []string{"b", "a"}, idx.Keys())
}

func TestIndex_Get_Missing_ReturnsFalse(t *testing.T) {
	t.Parallel()

	idx := lru.New()

	_, ok := idx.Get("nope")
	require.False(t, ok)
}

func TestIndex_Put_ExistingKey_ReplacesAndMovesToBack(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aa")})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("b")})
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aaaa")})

	require.Equal(t, []string{"b", "a"}, idx.Keys())
	require.Equal(t, int64(5), idx.LenBytes())
}

func TestIndex_Remove_UnlinksEntry(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aa")})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("b")})

	idx.Remove("a")

	require.Equal(t, []string{"b"}, idx.Keys())
	require.Equal(t, int64(1), idx.LenBytes())
	require.False(t, idx.Has("a"))
}

func TestIndex_LenBytes_ExcludesDeletedEntries(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aaaa"), State: lru.Deleted})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("b")})

	require.Equal(t, int64(1), idx.LenBytes())
}

func TestIndex_EvictUntil_RemovesLRUFirst(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a", Bytes: []byte("aaaa")})
	idx.Put("b", &lru.CacheEntry{Key: "b", Bytes: []byte("bbbb")})
	idx.Put("c", &lru.CacheEntry{Key: "c", Bytes: []byte("cccc")})

	evicted := idx.EvictUntil(6)

	require.Len(t, evicted, 2)
	require.Equal(t, "a", evicted[0].Key)
	require.Equal(t, "b", evicted[1].Key)
	require.Equal(t, []string{"c"}, idx.Keys())
	require.Equal(t, int64(4), idx.LenBytes())
}

func TestIndex_EvictUntil_NeverTouchesDiskState(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	entry := &lru.CacheEntry{Key: "a", Bytes: []byte("aaaa"), State: lru.Synced, DiskPath: "/root/rcache/a"}
	idx.Put("a", entry)

	evicted := idx.EvictUntil(0)

	require.Len(t, evicted, 1)
	require.Equal(t, lru.Synced, evicted[0].State)
	require.Equal(t, "/root/rcache/a", evicted[0].DiskPath)
}

func TestIndex_Range_VisitsEveryEntry(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a"})
	idx.Put("b", &lru.CacheEntry{Key: "b"})
	idx.Put("c", &lru.CacheEntry{Key: "c"})

	var seen []string

	idx.Range(func(e *lru.CacheEntry) bool {
		seen = append(seen, e.Key)

		return true
	})

	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestIndex_Range_StopsEarly(t *testing.T) {
	t.Parallel()

	idx := lru.New()
	idx.Put("a", &lru.CacheEntry{Key: "a"})
	idx.Put("b", &lru.CacheEntry{Key: "b"})

	var seen []string

	idx.Range(func(e *lru.CacheEntry) bool {
		seen = append(seen, e.Key)

		return false
	})

	require.Equal(t, []string{"a"}, seen)
}

func TestCacheEntry_Size_ReflectsByteLength(t *testing.T) {
	t.Parallel()

	entry := &lru.CacheEntry{Bytes: []byte("hello"), LastAccessed: time.Now()}
	require.Equal(t, int64(5), entry.Size())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Updated", lru.Updated.String())
	require.Equal(t, "Accessed", lru.Accessed.String())
	require.Equal(t, "Synced", lru.Synced.String())
	require.Equal(t, "Deleted", lru.Deleted.String())
	require.Equal(t, "Unknown", lru.State(99).String())
}

package rcache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r2cache/rcache"
	"github.com/r2cache/rcache/internal/clockutil"
	"github.com/r2cache/rcache/layout"
	"github.com/r2cache/rcache/rfs"
	"github.com/r2cache/rcache/rfs/memfs"
	"github.com/r2cache/rcache/store"
)

type fixture struct {
	cache *rcache.Cache
	clock *clockutil.Fake
	fsys  rfs.FS
	store *store.Store
}

func newFixture(t *testing.T, opts ...rcache.Option) *fixture {
	t.Helper()

	clock := clockutil.NewFake()
	fsys := memfs.New()

	base := []rcache.Option{
		rcache.WithCacheLocation("/cache"),
		rcache.WithFS(fsys),
		rcache.WithClock(clock),
		rcache.WithSyncWorker(),
	}

	c, err := rcache.Open(t.Context(), append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	return &fixture{
		cache: c,
		clock: clock,
		fsys:  fsys,
		store: store.New(fsys, layout.New("/cache")),
	}
}

func mustFlush(t *testing.T, c *rcache.Cache) {
	t.Helper()

	ok, err := c.Flush(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) diskMtime(t *testing.T, key string) time.Time {
	t.Helper()

	files, err := f.store.List()
	require.NoError(t, err)

	for _, fi := range files {
		if fi.Key == key {
			return fi.ModTime
		}
	}

	t.Fatalf("no payload file for key %q", key)

	return time.Time{}
}

// Scenario 1: basic insert/read.
func TestCache_BasicInsertRead(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(1<<20), rcache.WithMaxMemoryBytes(1<<20))
	c := f.cache

	one := make([]byte, 1024)
	two := make([]byte, 1024)

	require.NoError(t, c.Store(t.Context(), "one", one))
	require.NoError(t, c.Store(t.Context(), "two", two))

	require.EqualValues(t, 2048, c.MemSize(t.Context()))

	size, err := c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	mustFlush(t, c)

	size, err = c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2048, size)
}

// Scenario 2: MRU updates disk mtime.
func TestCache_FetchAfterFlush_AdvancesDiskMtime(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(1<<20), rcache.WithMaxMemoryBytes(1<<20))
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "a", []byte("hello")))
	mustFlush(t, c)

	firstMtime := f.diskMtime(t, "a")

	_, found, err := c.Fetch(t.Context(), "a")
	require.NoError(t, err)
	require.True(t, found)

	mustFlush(t, c)

	secondMtime := f.diskMtime(t, "a")

	require.True(t, secondMtime.After(firstMtime), "second mtime %s should be after first %s", secondMtime, firstMtime)
}

// Scenario 3: disk trim by LRU.
func TestCache_FlushTrimsDisk_OldestFirst_SkippingLiveKeys(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(5*1024), rcache.WithMaxMemoryBytes(10*1024))
	c := f.cache

	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("%d", i)
		require.NoError(t, c.Store(t.Context(), key, make([]byte, 1024)))
	}

	mustFlush(t, c)

	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("%d", i)

		_, found, err := c.Fetch(t.Context(), key)
		require.NoError(t, err)
		require.True(t, found, "key %s should still be readable", key)
	}

	c.ClearMemory(t.Context())

	require.NoError(t, c.Store(t.Context(), "6", make([]byte, 1024)))
	require.NoError(t, c.Store(t.Context(), "7", make([]byte, 1024)))

	mustFlush(t, c)

	_, found, err := c.Fetch(t.Context(), "1")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = c.Fetch(t.Context(), "2")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = c.Fetch(t.Context(), "6")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = c.Fetch(t.Context(), "7")
	require.NoError(t, err)
	require.True(t, found)
}

// Scenario 4: concurrent writers + deleter.
func TestCache_ConcurrentWritersAndDeleter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(1<<30), rcache.WithMaxMemoryBytes(1<<30))
	c := f.cache

	payload := make([]byte, 1024)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 1; i <= 500; i++ {
			key := fmt.Sprintf("%d", i)
			require.NoError(t, c.Store(t.Context(), key, payload))
			mustFlush(t, c)
		}
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 200; i <= 1000; i++ {
			key := fmt.Sprintf("%d", i)
			require.NoError(t, c.Store(t.Context(), key, payload))
			mustFlush(t, c)
		}
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 100; i < 200; i++ {
			key := fmt.Sprintf("%d", i)

			for {
				_, found, err := c.Fetch(t.Context(), key)
				require.NoError(t, err)

				if found {
					break
				}
			}

			require.NoError(t, c.Delete(t.Context(), key))
			mustFlush(t, c)
		}
	}()

	wg.Wait()

	mustFlush(t, c)

	const wantBytes = 900 * 1024

	require.EqualValues(t, wantBytes, c.MemSize(t.Context()))

	size, err := c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, wantBytes, size)
}

// Scenario 5: crash recovery.
func TestCache_Reopen_RecoversUncommittedWrite(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	clock := clockutil.NewFake()

	opts := func() []rcache.Option {
		return []rcache.Option{
			rcache.WithCacheLocation("/cache"),
			rcache.WithFS(fsys),
			rcache.WithClock(clock),
			rcache.WithSyncWorker(),
			rcache.WithMaxDiskBytes(1 << 20),
			rcache.WithMaxMemoryBytes(1 << 20),
		}
	}

	c, err := rcache.Open(t.Context(), opts()...)
	require.NoError(t, err)

	require.NoError(t, c.Store(t.Context(), "k", []byte("V")))
	mustFlush(t, c)
	require.NoError(t, c.Close())

	// Simulate a crash mid-write: announce an uncommitted write for "k2"
	// and leave a partial payload file, with no matching commit record.
	require.NoError(t, fsys.WriteFile("/cache/jrnl/rjournal.bin",
		[]byte("R2D2v1.0\nW: deadbeef-0000-0000-0000-000000000000 k2 2024-01-01T00:00:00Z"), 0o640))
	require.NoError(t, fsys.WriteFile("/cache/rcache/k2", []byte("partial"), 0o640))

	reopened, err := rcache.Open(t.Context(), opts()...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	data, found, err := reopened.Fetch(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("V"), data)

	_, found, err = reopened.Fetch(t.Context(), "k2")
	require.NoError(t, err)
	require.False(t, found)

	exists, err := fsys.Exists("/cache/rcache/k2")
	require.NoError(t, err)
	require.False(t, exists)
}

// Scenario 6: tombstone visibility.
func TestCache_Delete_IsVisibleBeforeFlush(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(1<<20), rcache.WithMaxMemoryBytes(1<<20))
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "x", []byte("V")))
	require.NoError(t, c.Delete(t.Context(), "x"))

	_, found, err := c.Fetch(t.Context(), "x")
	require.NoError(t, err)
	require.False(t, found)

	require.EqualValues(t, 0, c.MemSize(t.Context()))

	mustFlush(t, c)

	require.EqualValues(t, 0, c.MemSize(t.Context()))

	size, err := c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
}

func TestCache_Store_ThenFetch_SameGoroutine_ReturnsStoredValue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "k", []byte("v1")))

	data, found, err := c.Fetch(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), data)
}

func TestCache_StoreTwice_ThenFlush_PersistsOneFileWithLatestContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "k", []byte("v1")))
	require.NoError(t, c.Store(t.Context(), "k", []byte("v2")))

	mustFlush(t, c)

	files, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, found, err := c.Fetch(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2"), data)
}

func TestCache_DeleteThenFlush_Twice_IsNoOpAfterFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "k", []byte("v1")))
	mustFlush(t, c)

	require.NoError(t, c.Delete(t.Context(), "k"))
	mustFlush(t, c)

	require.NoError(t, c.Delete(t.Context(), "k"))
	mustFlush(t, c)

	require.EqualValues(t, 0, c.MemSize(t.Context()))

	size, err := c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
}

func TestCache_Store_ExceedingMemoryBudget_DoesNotEvictUntilNextFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rcache.WithMaxDiskBytes(10*1024), rcache.WithMaxMemoryBytes(1024))
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "a", make([]byte, 600)))
	require.NoError(t, c.Store(t.Context(), "b", make([]byte, 600)))

	require.EqualValues(t, 1200, c.MemSize(t.Context()))

	_, found, err := c.Fetch(t.Context(), "b")
	require.NoError(t, err)
	require.True(t, found)

	require.LessOrEqual(t, c.MemSize(t.Context()), int64(1024))
}

func TestCache_ClearAll_ResetsEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache

	require.NoError(t, c.Store(t.Context(), "a", []byte("hello")))
	mustFlush(t, c)

	ok, err := c.ClearAll(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	require.EqualValues(t, 0, c.MemSize(t.Context()))

	size, err := c.FileSize(t.Context()).Wait(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	_, found, err := c.Fetch(t.Context(), "a")
	require.NoError(t, err)
	require.False(t, found)

	lines, err := readJournalLines(f)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func readJournalLines(f *fixture) ([]string, error) {
	data, err := f.fsys.ReadFile("/cache/jrnl/rjournal.bin")
	if err != nil {
		return nil, err
	}

	if string(data) != "R2D2v1.0" {
		return []string{string(data)}, nil
	}

	return nil, nil
}

func TestCache_Fetch_InvalidKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache

	_, _, err := c.Fetch(t.Context(), "")
	require.ErrorIs(t, err, rcache.ErrInvalidKey)

	_, _, err = c.Fetch(t.Context(), "a/b")
	require.ErrorIs(t, err, rcache.ErrInvalidKey)
}

func TestOpen_RequiresCacheLocation(t *testing.T) {
	t.Parallel()

	_, err := rcache.Open(context.Background(), rcache.WithFS(memfs.New()))
	require.Error(t, err)
}

func TestCache_AfterClose_ReturnsErrClosed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.cache
	require.NoError(t, c.Close())

	_, _, err := c.Fetch(t.Context(), "a")
	require.ErrorIs(t, err, rcache.ErrClosed)
}

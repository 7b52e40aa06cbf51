package rcache

import "errors"

// Sentinel errors rcache's public surface can return, in the teacher
// pack's errors.New/fmt.Errorf("%w: ...") wrapping style.
var (
	// ErrInvalidKey is returned when a key fails [ValidateKey]: empty, a
	// path separator, a NUL byte, or "." / "..".
	ErrInvalidKey = errors.New("rcache: invalid key")

	// ErrClosed is returned by Fetch, Store, Delete, FileSize, Flush and
	// ClearAll when attempted after [Cache.Close].
	ErrClosed = errors.New("rcache: cache closed")

	// ErrJournalCorrupt names the condition of a journal that could not be
	// read during [Open]'s recovery pass and had to be dropped. No rcache
	// code path returns or logs this value: recovery logs the underlying
	// read error, resets the journal, and Open still succeeds.
	ErrJournalCorrupt = errors.New("rcache: journal corrupt")

	// errCacheLocationRequired is returned by Open when no
	// WithCacheLocation option was supplied.
	errCacheLocationRequired = errors.New("rcache: cache location is required")
)

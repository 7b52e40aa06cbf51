// Package store implements the payload store: one file per key on disk,
// written through atomic temp-file-plus-rename so a crash mid-write never
// leaves a half-written payload visible under its real name.
package store

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/r2cache/rcache/layout"
	"github.com/r2cache/rcache/rfs"
)

// FileInfo describes a payload file on disk.
type FileInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store is a thin wrapper over an [rfs.FS] rooted at a payload directory.
// It does no locking of its own; callers serialize access (the facade's
// lock, in rcache's case).
type Store struct {
	fs   rfs.FS
	dirs layout.Paths
}

// New returns a [Store] rooted at paths.PayloadDir.
func New(fsys rfs.FS, paths layout.Paths) *Store {
	return &Store{fs: fsys, dirs: paths}
}

// PayloadPath returns the on-disk path key's payload file is (or would be)
// written to, for callers that need to record it (e.g. [lru.CacheEntry.DiskPath]).
func (s *Store) PayloadPath(key string) string {
	return s.dirs.PayloadPath(key)
}

// Read returns the contents of key's payload file, or (nil, false, nil) if
// it doesn't exist.
func (s *Store) Read(key string) ([]byte, bool, error) {
	path := s.dirs.PayloadPath(key)

	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, false, fmt.Errorf("store: exists %s: %w", key, err)
	}

	if !exists {
		return nil, false, nil
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("store: read %s: %w", key, err)
	}

	return data, true, nil
}

// payloadPerm is the mode new payload files are created with.
const payloadPerm = 0o640

// Write persists data for key via a temp-file-plus-rename, so readers never
// observe a partially written file under the final name. Goes through s.fs
// so tests running against [memfs] or [rfs.Chaos] observe the same write
// path production does.
func (s *Store) Write(key string, data []byte) error {
	path := s.dirs.PayloadPath(key)

	if err := s.fs.WriteFileAtomic(path, data, payloadPerm); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}

	return nil
}

// Delete removes key's payload file. Missing files are not an error.
func (s *Store) Delete(key string) error {
	path := s.dirs.PayloadPath(key)

	err := s.fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}

	return nil
}

// List returns [FileInfo] for every payload file, non-recursively.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := s.fs.ReadDir(s.dirs.PayloadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("store: list: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("store: stat %s: %w", e.Name(), err)
		}

		out = append(out, FileInfo{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	return out, nil
}

// TotalSize returns the sum of all payload file sizes.
func (s *Store) TotalSize() (int64, error) {
	files, err := s.List()
	if err != nil {
		return 0, err
	}

	var total int64

	for _, f := range files {
		total += f.Size
	}

	return total, nil
}

// SetMtime updates key's payload file modification time, used to propagate
// LRU recency onto disk without rewriting the file's content.
func (s *Store) SetMtime(key string, at time.Time) error {
	path := s.dirs.PayloadPath(key)

	if err := s.fs.Chtimes(path, at, at); err != nil {
		return fmt.Errorf("store: set mtime %s: %w", key, err)
	}

	return nil
}

// SortByModTimeAscending sorts files in place, oldest first, for the
// trimmer's eviction order.
func SortByModTimeAscending(files []FileInfo) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
}

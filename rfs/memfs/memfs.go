// Package memfs provides an in-memory [rfs.FS] implementation for tests
// that need a fast, deterministic filesystem without touching disk.
package memfs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/r2cache/rcache/rfs"
)

type node struct {
	data  []byte
	mode  os.FileMode
	mtime time.Time
	isDir bool
}

// FS is an in-memory filesystem keyed by cleaned path. It implements
// [rfs.FS] and is safe for concurrent use.
type FS struct {
	mu    sync.Mutex
	nodes map[string]*node
}

// New returns an empty in-memory filesystem.
func New() *FS {
	return &FS{nodes: make(map[string]*node)}
}

func clean(path string) string {
	return filepath.Clean(path)
}

func (f *FS) lockedGet(path string) (*node, bool) {
	n, ok := f.nodes[clean(path)]
	return n, ok
}

// Open opens path for reading.
func (f *FS) Open(path string) (rfs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.lockedGet(path)
	if !ok || n.isDir {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	return newMemFile(f, path, n.data, false), nil
}

// Create creates or truncates path for writing.
func (f *FS) Create(path string) (rfs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nodes[clean(path)] = &node{data: nil, mode: 0o644, mtime: time.Now()}

	return newMemFile(f, path, nil, true), nil
}

// OpenFile opens path honoring a subset of the standard open flags needed by
// this module: O_CREATE, O_TRUNC, O_APPEND, O_EXCL, O_RDONLY/O_WRONLY/O_RDWR.
func (f *FS) OpenFile(path string, flag int, perm os.FileMode) (rfs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := clean(path)
	n, ok := f.nodes[key]

	if ok && flag&os.O_EXCL != 0 && flag&os.O_CREATE != 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrExist}
	}

	if !ok {
		if flag&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}

		n = &node{mode: perm, mtime: time.Now()}
		f.nodes[key] = n
	}

	data := n.data
	if flag&os.O_TRUNC != 0 {
		data = nil
		n.data = nil
	}

	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0

	mf := newMemFile(f, path, data, writable)
	if flag&os.O_APPEND != 0 {
		mf.pos = int64(len(data))
	}

	return mf, nil
}

// ReadFile reads the entire contents of path.
func (f *FS) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.lockedGet(path)
	if !ok || n.isDir {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	out := make([]byte, len(n.data))
	copy(out, n.data)

	return out, nil
}

// WriteFile writes data to path, creating or truncating it.
func (f *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)

	f.nodes[clean(path)] = &node{data: cp, mode: perm, mtime: time.Now()}

	return nil
}

// WriteFileAtomic writes data to path. In-memory node replacement is a
// single locked step, so every [FS.WriteFile] is already atomic from any
// observer's perspective; this just satisfies [rfs.FS].
func (f *FS) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return f.WriteFile(path, data, perm)
}

// ReadDir lists direct children of path. Entries are sorted by name.
func (f *FS) ReadDir(path string) ([]os.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := clean(path)

	var names []string

	seen := make(map[string]bool)

	for p := range f.nodes {
		dir, name := filepath.Split(p)
		dir = filepath.Clean(dir)

		if dir != prefix || name == "" {
			continue
		}

		if !seen[name] {
			seen[name] = true

			names = append(names, name)
		}
	}

	sort.Strings(names)

	entries := make([]os.DirEntry, 0, len(names))

	for _, name := range names {
		n := f.nodes[filepath.Join(prefix, name)]
		entries = append(entries, dirEntry{name: name, n: n})
	}

	return entries, nil
}

// MkdirAll records path (and conceptually its parents) as a directory.
func (f *FS) MkdirAll(path string, perm os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := clean(path)
	if n, ok := f.nodes[key]; ok && !n.isDir {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}

	f.nodes[key] = &node{isDir: true, mode: perm | os.ModeDir, mtime: time.Now()}

	return nil
}

// Stat returns info for path.
func (f *FS) Stat(path string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.lockedGet(path)
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	return fileInfo{name: filepath.Base(path), n: n}, nil
}

// Exists reports whether path is present.
func (f *FS) Exists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.lockedGet(path)

	return ok, nil
}

// Remove deletes a single entry.
func (f *FS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := clean(path)
	if _, ok := f.nodes[key]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}

	delete(f.nodes, key)

	return nil
}

// RemoveAll deletes path and any entries nested under it.
func (f *FS) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := clean(path)
	delete(f.nodes, prefix)

	for k := range f.nodes {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix && k[len(prefix)] == filepath.Separator {
			delete(f.nodes, k)
		}
	}

	return nil
}

// Rename moves oldpath to newpath, overwriting newpath if present.
func (f *FS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldKey := clean(oldpath)

	n, ok := f.nodes[oldKey]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldpath, Err: os.ErrNotExist}
	}

	delete(f.nodes, oldKey)
	f.nodes[clean(newpath)] = n

	return nil
}

// Chtimes updates the recorded modification time for path.
func (f *FS) Chtimes(path string, atime, mtime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.lockedGet(path)
	if !ok {
		return &os.PathError{Op: "chtimes", Path: path, Err: os.ErrNotExist}
	}

	n.mtime = mtime

	return nil
}

// Compile-time interface check.
var _ rfs.FS = (*FS)(nil)

type dirEntry struct {
	name string
	n    *node
}

func (d dirEntry) Name() string               { return d.name }
func (d dirEntry) IsDir() bool                 { return d.n.isDir }
func (d dirEntry) Type() os.FileMode           { return d.n.mode.Type() }
func (d dirEntry) Info() (os.FileInfo, error) { return fileInfo{name: d.name, n: d.n}, nil }

type fileInfo struct {
	name string
	n    *node
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return int64(len(fi.n.data)) }
func (fi fileInfo) Mode() os.FileMode  { return fi.n.mode }
func (fi fileInfo) ModTime() time.Time { return fi.n.mtime }
func (fi fileInfo) IsDir() bool        { return fi.n.isDir }
func (fi fileInfo) Sys() any           { return nil }

// memFile is an open handle over a node's byte buffer.
type memFile struct {
	fs       *FS
	path     string
	buf      *bytes.Buffer
	pos      int64
	writable bool
	closed   bool
}

func newMemFile(f *FS, path string, data []byte, writable bool) *memFile {
	b := make([]byte, len(data))
	copy(b, data)

	return &memFile{fs: f, path: path, buf: bytes.NewBuffer(b), writable: writable}
}

func (m *memFile) Read(p []byte) (int, error) {
	all := m.buf.Bytes()
	if m.pos >= int64(len(all)) {
		return 0, io.EOF
	}

	n := copy(p, all[m.pos:])
	m.pos += int64(n)

	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	if !m.writable {
		return 0, &os.PathError{Op: "write", Path: m.path, Err: os.ErrPermission}
	}

	all := m.buf.Bytes()

	if m.pos > int64(len(all)) {
		pad := make([]byte, m.pos-int64(len(all)))
		all = append(all, pad...)
	}

	end := m.pos + int64(len(p))
	if end > int64(len(all)) {
		grown := make([]byte, end)
		copy(grown, all)
		all = grown
	}

	copy(all[m.pos:end], p)
	m.buf = bytes.NewBuffer(all)
	m.pos = end

	m.flush()

	return len(p), nil
}

func (m *memFile) flush() {
	m.fs.mu.Lock()
	defer m.fs.mu.Unlock()

	key := clean(m.path)

	n, ok := m.fs.nodes[key]
	if !ok {
		n = &node{mode: 0o644}
		m.fs.nodes[key] = n
	}

	n.data = append([]byte(nil), m.buf.Bytes()...)
	n.mtime = time.Now()
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(m.buf.Len()) + offset
	}

	return m.pos, nil
}

func (m *memFile) Close() error {
	m.closed = true

	return nil
}

func (m *memFile) Fd() uintptr { return 0 }

func (m *memFile) Stat() (os.FileInfo, error) {
	m.fs.mu.Lock()
	defer m.fs.mu.Unlock()

	n, ok := m.fs.nodes[clean(m.path)]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: m.path, Err: os.ErrNotExist}
	}

	return fileInfo{name: filepath.Base(m.path), n: n}, nil
}

func (m *memFile) Sync() error { return nil }

func (m *memFile) Chmod(mode os.FileMode) error {
	m.fs.mu.Lock()
	defer m.fs.mu.Unlock()

	n, ok := m.fs.nodes[clean(m.path)]
	if !ok {
		return &os.PathError{Op: "chmod", Path: m.path, Err: os.ErrNotExist}
	}

	n.mode = mode

	return nil
}

// Compile-time interface check.
var _ rfs.File = (*memFile)(nil)

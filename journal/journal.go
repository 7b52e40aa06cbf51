// Package journal implements the textual write-ahead log rcache uses to
// make payload writes and deletes crash-recoverable: every write or delete
// is announced with an intent record before it happens and followed by a
// commit record once it completes, so a crash between the two is detectable
// on the next open.
package journal

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r2cache/rcache/layout"
	"github.com/r2cache/rcache/rfs"
)

// Header is the fixed 8-byte sequence written as the first line of a fresh
// journal file.
const Header = "R2D2v1.0"

const (
	tagWrite  = "W"
	tagDelete = "D"
	tagCommit = "C"
)

// Journal is an append-only textual log backed by an [rfs.FS].
//
// Appends are written through a plain O_APPEND|O_CREATE open, not the
// atomic-rename writer: durability here depends on append order, not
// replace-in-place.
type Journal struct {
	fs   rfs.FS
	path string
}

// New returns a [Journal] rooted at path.
func New(fsys rfs.FS, path string) *Journal {
	return &Journal{fs: fsys, path: path}
}

// BeginWrite appends an intent-to-write record for key and returns the
// transaction id to pass to [Journal.Commit].
func (j *Journal) BeginWrite(key string) (string, error) {
	return j.beginRecord(tagWrite, key)
}

// BeginDelete appends an intent-to-delete record for key and returns the
// transaction id to pass to [Journal.Commit].
func (j *Journal) BeginDelete(key string) (string, error) {
	return j.beginRecord(tagDelete, key)
}

func (j *Journal) beginRecord(tag, key string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	line := fmt.Sprintf("%s: %s %s %s", tag, id, key, now)
	if err := j.append(line); err != nil {
		return "", fmt.Errorf("journal: begin %s %s: %w", tag, key, err)
	}

	return id, nil
}

// Commit appends a commit record for the transaction identified by id.
func (j *Journal) Commit(id string) error {
	line := fmt.Sprintf("%s: %s", tagCommit, id)
	if err := j.append(line); err != nil {
		return fmt.Errorf("journal: commit %s: %w", id, err)
	}

	return nil
}

// append writes a single line to the journal, creating it with the header
// if it doesn't exist yet, and syncs before returning.
func (j *Journal) append(line string) error {
	exists, err := j.fs.Exists(j.path)
	if err != nil {
		return err
	}

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	var buf bytes.Buffer

	if !exists {
		buf.WriteString(Header)
	}

	buf.WriteByte('\n')
	buf.WriteString(line)

	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}

	return f.Sync()
}

// ReadAll returns the journal's record lines, excluding the header.
// Returns an empty slice if the journal file doesn't exist.
func (j *Journal) ReadAll() ([]string, error) {
	exists, err := j.fs.Exists(j.path)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, nil
	}

	data, err := j.fs.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return nil, nil
	}

	// First "line" is the header (no leading newline precedes it).
	records := lines[1:]

	out := make([]string, 0, len(records))

	for _, l := range records {
		if l == "" {
			continue
		}

		out = append(out, l)
	}

	return out, nil
}

// Reset deletes the journal file if present and writes a fresh one
// containing only the header.
func (j *Journal) Reset() error {
	exists, err := j.fs.Exists(j.path)
	if err != nil {
		return err
	}

	if exists {
		if err := j.fs.Remove(j.path); err != nil {
			return err
		}
	}

	f, err := j.fs.Create(j.path)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte(Header)); err != nil {
		return err
	}

	return f.Sync()
}

// record is a parsed journal line.
type record struct {
	tag string
	id  string
	key string
}

func parseLine(line string) (record, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return record{}, false
	}

	tag := strings.TrimSuffix(fields[0], ":")

	switch tag {
	case tagCommit:
		if len(fields) != 2 {
			return record{}, false
		}

		return record{tag: tag, id: fields[1]}, true
	case tagWrite, tagDelete:
		if len(fields) != 4 {
			return record{}, false
		}

		if fields[2] == "" {
			return record{}, false
		}

		return record{tag: tag, id: fields[1], key: fields[2]}, true
	default:
		return record{}, false
	}
}

// Recover scans an existing journal for uncommitted write/delete intents
// and removes the corresponding (possibly partial) payload files, then
// resets the journal to a fresh, empty one. It is idempotent.
//
// Recover assumes the journal file at paths.JournalFile already exists;
// callers should only invoke it when that has been confirmed.
func Recover(fsys rfs.FS, paths layout.Paths, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	j := New(fsys, paths.JournalFile)

	lines, err := j.ReadAll()
	if err != nil {
		logger.Warn("rcache: journal unreadable, resetting", "path", paths.JournalFile, "error", err)

		return j.Reset()
	}

	pending := make(map[string]string)

	for _, line := range lines {
		rec, ok := parseLine(line)
		if !ok {
			logger.Warn("rcache: skipping malformed journal line", "line", line)

			continue
		}

		switch rec.tag {
		case tagWrite, tagDelete:
			pending[rec.id] = rec.key
		case tagCommit:
			delete(pending, rec.id)
		}
	}

	for _, key := range pending {
		path := paths.PayloadPath(key)

		if err := fsys.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("rcache: failed to remove uncommitted payload", "key", key, "error", err)
		}
	}

	return j.Reset()
}

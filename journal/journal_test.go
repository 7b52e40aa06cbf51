package journal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r2cache/rcache/journal"
	"github.com/r2cache/rcache/layout"
	"github.com/r2cache/rcache/rfs"
	"github.com/r2cache/rcache/rfs/memfs"
)

func TestJournal_BeginWriteAndCommit_RoundTrip(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	j := journal.New(fsys, "/root/jrnl/rjournal.bin")

	id, err := j.BeginWrite("alpha")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, j.Commit(id))

	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "W: "+id+" alpha")
	require.Equal(t, "C: "+id, lines[1])
}

func TestJournal_Reset_WritesFreshHeaderOnly(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	j := journal.New(fsys, "/root/jrnl/rjournal.bin")

	_, err := j.BeginWrite("alpha")
	require.NoError(t, err)

	require.NoError(t, j.Reset())

	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestJournal_ReadAll_NoFile_ReturnsEmpty(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	j := journal.New(fsys, "/root/jrnl/rjournal.bin")

	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestRecover_RemovesUncommittedPayload(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	paths := layout.New("/root")

	require.NoError(t, fsys.MkdirAll(paths.PayloadDir, 0o750))
	require.NoError(t, fsys.MkdirAll(paths.JournalDir, 0o750))
	require.NoError(t, fsys.WriteFile(paths.PayloadPath("orphan"), []byte("partial"), 0o640))

	j := journal.New(fsys, paths.JournalFile)

	id, err := j.BeginWrite("orphan")
	require.NoError(t, err)
	_ = id

	require.NoError(t, journal.Recover(fsys, paths, nil))

	exists, err := fsys.Exists(paths.PayloadPath("orphan"))
	require.NoError(t, err)
	require.False(t, exists)

	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestRecover_KeepsCommittedPayload(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	paths := layout.New("/root")

	require.NoError(t, fsys.MkdirAll(paths.PayloadDir, 0o750))
	require.NoError(t, fsys.MkdirAll(paths.JournalDir, 0o750))
	require.NoError(t, fsys.WriteFile(paths.PayloadPath("safe"), []byte("data"), 0o640))

	j := journal.New(fsys, paths.JournalFile)

	id, err := j.BeginWrite("safe")
	require.NoError(t, err)
	require.NoError(t, j.Commit(id))

	require.NoError(t, journal.Recover(fsys, paths, nil))

	exists, err := fsys.Exists(paths.PayloadPath("safe"))
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRecover_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	paths := layout.New("/root")

	require.NoError(t, fsys.MkdirAll(paths.JournalDir, 0o750))
	require.NoError(t, fsys.WriteFile(paths.JournalFile, []byte(journal.Header+"\nnot a real record\nW: bad"), 0o640))

	require.NoError(t, journal.Recover(fsys, paths, nil))

	j := journal.New(fsys, paths.JournalFile)
	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Empty(t, lines)
}

// TestJournal_BeginWrite_SurfacesInjectedOpenFailure wraps the journal's
// filesystem in a [rfs.Chaos] that fails every open, so a disk-level failure
// on the append path (the journal's only write path) comes back as an error
// callers can recognize rather than a silent no-op.
func TestJournal_BeginWrite_SurfacesInjectedOpenFailure(t *testing.T) {
	t.Parallel()

	chaosFS := rfs.NewChaos(memfs.New(), 1, &rfs.ChaosConfig{OpenFailRate: 1})
	j := journal.New(chaosFS, "/root/jrnl/rjournal.bin")

	_, err := j.BeginWrite("alpha")
	require.Error(t, err)
	require.True(t, rfs.IsChaosErr(err))
}

// TestRecover_UnreadableJournal_ResetsWithoutError exercises the "completely
// unreadable journal triggers a reset" behavior: a [rfs.Chaos] with
// ReadFailRate 1 fails every journal read during Recover, but Reset only
// depends on Remove/Create/Write, none of which are affected, so Recover
// still leaves a clean, empty journal behind.
func TestRecover_UnreadableJournal_ResetsWithoutError(t *testing.T) {
	t.Parallel()

	fsys := memfs.New()
	paths := layout.New("/root")
	require.NoError(t, fsys.MkdirAll(paths.JournalDir, 0o750))
	require.NoError(t, fsys.WriteFile(paths.JournalFile, []byte(journal.Header+"\nW: id1 k now"), 0o640))

	chaosFS := rfs.NewChaos(fsys, 5, &rfs.ChaosConfig{ReadFailRate: 1})

	require.NoError(t, journal.Recover(chaosFS, paths, nil))

	j := journal.New(fsys, paths.JournalFile)
	lines, err := j.ReadAll()
	require.NoError(t, err)
	require.Empty(t, lines)
}

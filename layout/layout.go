// Package layout derives the on-disk paths rcache uses under a cache root,
// keeping path construction in one place so the payload store, the journal,
// and recovery all agree on where things live.
package layout

import "path/filepath"

// Paths holds the derived directories and files under a cache root.
type Paths struct {
	Root        string
	PayloadDir  string
	JournalDir  string
	JournalFile string
}

// New derives [Paths] from a cache root directory.
func New(root string) Paths {
	journalDir := filepath.Join(root, "jrnl")

	return Paths{
		Root:        root,
		PayloadDir:  filepath.Join(root, "rcache"),
		JournalDir:  journalDir,
		JournalFile: filepath.Join(journalDir, "rjournal.bin"),
	}
}

// PayloadPath returns the path of the payload file for key.
func (p Paths) PayloadPath(key string) string {
	return filepath.Join(p.PayloadDir, key)
}

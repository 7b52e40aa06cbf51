package rcache_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r2cache/rcache/rfs"
	"github.com/r2cache/rcache/rfs/memfs"
)

// newMemFS returns a fresh in-memory filesystem for tests that only need
// Open to succeed and don't inspect payload/journal contents directly
// (those use [newFixture] instead).
func newMemFS(t *testing.T) rfs.FS {
	t.Helper()

	return memfs.New()
}

// writeFile writes contents to a real file on the host filesystem, for
// tests exercising [rcache.LoadConfigFile] which reads via os.ReadFile.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

package flush

import (
	"fmt"

	"github.com/r2cache/rcache/lru"
	"github.com/r2cache/rcache/store"
)

// PurgeOldest enforces maxDisk on the payload store: it lists every
// payload file, skips any whose key is currently tracked in idx (the hot
// working set), and deletes the remainder oldest-mtime-first until the
// total on-disk size is at most maxDisk. It returns the number of files
// removed.
//
// Skipping in-index files means disk eviction reclaims cold residue of
// keys no longer tracked in memory before it ever touches the live set.
func PurgeOldest(st *store.Store, idx *lru.Index, maxDisk int64) (int, error) {
	files, err := st.List()
	if err != nil {
		return 0, fmt.Errorf("list: %w", err)
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}

	if total <= maxDisk {
		return 0, nil
	}

	store.SortByModTimeAscending(files)

	purged := 0

	for _, f := range files {
		if total <= maxDisk {
			break
		}

		if idx.Has(f.Key) {
			continue
		}

		if err := st.Delete(f.Key); err != nil {
			return purged, fmt.Errorf("delete %s: %w", f.Key, err)
		}

		total -= f.Size
		purged++
	}

	return purged, nil
}

package rcache

import (
	"fmt"
	"strings"
)

// ValidateKey reports whether key is safe to use as a single filesystem
// path component: non-empty, containing no path separator ('/' or '\'),
// no NUL byte, and not "." or "..". rcache never silently escapes an unsafe key; callers
// get [ErrInvalidKey] instead.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}

	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidKey, key)
	}

	if key == "." || key == ".." {
		return fmt.Errorf("%w: %q is a reserved path component", ErrInvalidKey, key)
	}

	return nil
}

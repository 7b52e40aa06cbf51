package rcache

import "time"

// Clock supplies the current time to the cache, so tests can drive
// recency-based eviction and mtime propagation deterministically instead
// of relying on real sleeps. See [github.com/r2cache/rcache/internal/clockutil.Fake].
type Clock interface {
	Now() time.Time
}

// realClock is the production [Clock], a thin wrapper over [time.Now].
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

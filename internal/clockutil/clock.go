// Package clockutil provides a deterministic clock for tests that exercise
// recency-based eviction and trimming without real sleeps.
package clockutil

import (
	"sync"
	"time"
)

// Fake is a monotonically increasing clock. Each call to Now advances the
// clock by step, so successive cache operations observe strictly increasing
// timestamps without relying on wall-clock granularity.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFake returns a [Fake] clock initialized to a fixed UTC start time,
// advancing by one second on every call to Now.
func NewFake() *Fake {
	return &Fake{
		current: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		step:    time.Second,
	}
}

// Now returns the next timestamp and advances the clock by step.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = f.current.Add(f.step)

	return f.current
}

// Set pins the clock to t without advancing it on the next Now call.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = t.Add(-f.step)
}

// Advance moves the clock forward by d without returning a value, useful for
// simulating idle time between cache operations in tests.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = f.current.Add(d)
}

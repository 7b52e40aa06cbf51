package worker

import (
	"fmt"
	"log/slog"
	"sync"
)

// Pool is a small fixed-size goroutine pool that runs submitted jobs off
// a buffered job channel. A panic inside a job resolves its [Future] with
// an error and is then recovered and logged rather than crashing the pool
// (a job run inline re-panics on the submitting goroutine), mirroring
// the teacher pack's gRPC recovery-interceptor shape adapted from "turn a
// handler panic into codes.Internal" to "turn a worker panic into a
// failed Future".
type Pool struct {
	jobs        chan func()
	wg          sync.WaitGroup
	mu          sync.RWMutex // guards closed against concurrent Submit.
	closed      bool
	synchronous bool // WithSyncWorker: run submitted jobs inline, no goroutines.
	logger      *slog.Logger
}

// NewPool starts a [Pool] with n worker goroutines. n is clamped to at
// least 1.
func NewPool(n int, logger *slog.Logger) *Pool {
	if n < 1 {
		n = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{jobs: make(chan func(), 64), logger: logger}

	for i := 0; i < n; i++ {
		p.wg.Add(1)

		go p.loop()
	}

	return p
}

// NewSyncPool returns a [Pool] that runs every submitted job inline on the
// submitting goroutine, for deterministic tests that don't want to
// synchronize on a background worker.
func NewSyncPool() *Pool {
	return &Pool{synchronous: true}
}

func (p *Pool) loop() {
	defer p.wg.Done()

	for job := range p.jobs {
		p.runSafely(job)
	}
}

func (p *Pool) runSafely(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("rcache: worker panic recovered", "panic", r)
		}
	}()

	job()
}

// Close stops the worker goroutines and waits for queued and in-flight
// jobs to drain. Jobs submitted after Close run inline on the submitting
// goroutine. A no-op on a synchronous pool.
func (p *Pool) Close() {
	if p.synchronous {
		return
	}

	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit schedules fn and returns a [Future] that resolves to fn's
// result. On a synchronous or closed pool, fn runs before Submit returns.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	fut := newFuture[T]()

	job := func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				fut.resolve(zero, fmt.Errorf("worker: job panicked: %v", r))
				panic(r)
			}
		}()

		v, err := fn()
		fut.resolve(v, err)
	}

	if p == nil || p.synchronous {
		job()

		return fut
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		job()

		return fut
	}

	p.jobs <- job

	return fut
}

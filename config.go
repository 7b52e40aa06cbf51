package rcache

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/r2cache/rcache/rfs"
)

const (
	// defaultMaxDiskBytes is substituted whenever a caller supplies a
	// non-positive MaxDiskBytes.
	defaultMaxDiskBytes int64 = 50 * 1024 * 1024

	// defaultMemoryDivisor derives the default in-memory budget from the
	// (possibly defaulted) disk budget: MaxDiskBytes / defaultMemoryDivisor.
	defaultMemoryDivisor int64 = 4

	defaultWorkerCount = 2
)

// config collects every construction option, mirroring the teacher
// pack's Config/options idiom (pkg/mddb.Config, internal/ticket.Config)
// adapted to a functional-options surface.
type config struct {
	cacheLocation  string
	maxDiskBytes   int64
	maxMemoryBytes int64
	fs             rfs.FS
	clock          Clock
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	registerer     prometheus.Registerer
	workerCount    int
	syncWorker     bool
}

// Option mutates a [config]. Options compose left to right: later options
// override earlier ones for the same field.
type Option func(*config)

// WithCacheLocation sets the cache root directory. Required: [Open]
// returns an error if it is never supplied, unlike the original source's
// silent relative "image_cache" default.
func WithCacheLocation(dir string) Option {
	return func(c *config) { c.cacheLocation = dir }
}

// WithMaxDiskBytes sets the upper bound on on-disk payload bytes enforced
// after Flush. A non-positive value is replaced by the default at Open.
func WithMaxDiskBytes(n int64) Option {
	return func(c *config) { c.maxDiskBytes = n }
}

// WithMaxMemoryBytes sets the upper bound on in-index bytes enforced on
// Fetch. A non-positive value is replaced by MaxDiskBytes/4 at Open, and
// any value greater than MaxDiskBytes is clamped down to it.
func WithMaxMemoryBytes(n int64) Option {
	return func(c *config) { c.maxMemoryBytes = n }
}

// WithFS overrides the filesystem capability. Defaults to [rfs.NewReal].
func WithFS(fsys rfs.FS) Option {
	return func(c *config) { c.fs = fsys }
}

// WithClock overrides the time source. Defaults to the real wall clock.
func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger overrides the [slog.Logger] used for recovery warnings and
// swallowed errors. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithTracerProvider overrides the OpenTelemetry tracer provider used to
// start per-operation spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithRegisterer overrides the Prometheus registerer metrics are
// registered against. Defaults to [prometheus.DefaultRegisterer].
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithWorkerCount overrides the number of goroutines in the background
// worker pool backing Flush, FileSize, and ClearAll. Defaults to 2.
func WithWorkerCount(n int) Option {
	return func(c *config) { c.workerCount = n }
}

// WithSyncWorker makes Flush, FileSize, and ClearAll run inline on the
// calling goroutine instead of a background pool, so their returned
// [worker.Future] is already resolved. Intended for deterministic tests.
func WithSyncWorker() Option {
	return func(c *config) { c.syncWorker = true }
}

// DefaultOptions returns the recovery-safe defaults Open applies before
// caller options: the real filesystem, the real wall clock, slog.Default,
// and the default size budgets.
func DefaultOptions() []Option {
	return []Option{
		WithFS(rfs.NewReal()),
		WithClock(realClock{}),
		WithLogger(slog.Default()),
		WithMaxDiskBytes(defaultMaxDiskBytes),
		WithWorkerCount(defaultWorkerCount),
	}
}

// resolve applies opts over DefaultOptions and substitutes any remaining
// non-positive budget with its documented default, clamping
// maxMemoryBytes to maxDiskBytes.
func resolve(opts []Option) config {
	var c config

	for _, opt := range DefaultOptions() {
		opt(&c)
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.maxDiskBytes <= 0 {
		c.maxDiskBytes = defaultMaxDiskBytes
	}

	if c.maxMemoryBytes <= 0 {
		c.maxMemoryBytes = c.maxDiskBytes / defaultMemoryDivisor
	}

	if c.maxMemoryBytes > c.maxDiskBytes {
		c.maxMemoryBytes = c.maxDiskBytes
	}

	return c
}

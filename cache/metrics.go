package cache

// Metrics exposes cache-level observability hooks. Implementations must be
// safe for concurrent use; the cache updates them best-effort and never
// reads them back. A NoopMetrics implementation is the default.
//
// The expected flag on Hit/Miss mirrors the lookup mode: ExpectInCache
// lookups land in the "expected" family so that probe misses do not pollute
// the anomaly counters.
type Metrics interface {
	Hit(expected bool)
	Miss(expected bool)
	// Insert records an entry admitted to the index with the given charge.
	Insert(charge int64)
	// Evict records an entry whose bytes were freed, with its charge.
	Evict(charge int64)
	// Usage receives deltas of indexed bytes and entry count as entries are
	// admitted and detached.
	Usage(deltaBytes int64, deltaEntries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit(bool)         {}
func (NoopMetrics) Miss(bool)        {}
func (NoopMetrics) Insert(int64)     {}
func (NoopMetrics) Evict(int64)      {}
func (NoopMetrics) Usage(int64, int) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

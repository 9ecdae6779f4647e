package cache

import (
	"go.uber.org/zap"

	"github.com/colstore/blockcache/allocator"
	"github.com/colstore/blockcache/memtracker"
	"github.com/colstore/blockcache/policy"
	"github.com/colstore/blockcache/policy/lru"
)

// Options configures the cache. Zero values are safe except Capacity; sane
// defaults are applied in New():
//   - nil Policy    => LRU
//   - nil Allocator => allocator.Heap()
//   - nil Metrics   => NoopMetrics
//   - nil Logger    => zap.NewNop()
//   - Shards <= 0   => auto (rounded up to a power of two)
type Options struct {
	// Capacity bounds the summed charge of indexed entries, in bytes,
	// across all shards. Required; New panics when it is not positive.
	// The bound is soft: usage may exceed it transiently during an insert
	// burst, and a pinned oversized entry keeps consuming until released.
	Capacity int64

	// Shards is the number of independently locked partitions; the value is
	// rounded up to the next power of two. Zero picks a heuristic based on
	// CPU parallelism.
	Shards int

	// SingleShard routes every key to shard 0 regardless of Shards. Use it
	// when deterministic capacity and eviction behavior over the whole
	// keyspace matters more than concurrency (tests, correctness probes).
	SingleShard bool

	// Policy selects the eviction strategy (policy/lru, policy/fifo).
	Policy policy.Policy

	// Allocator backs entry buffers. Swap in allocator.NewPool to recycle
	// buffers, or allocator.NewLimited to model a bounded memory region.
	Allocator allocator.Allocator

	// MemTracker, when set, is consumed for every charge from insert until
	// the entry's bytes are freed, so pinned-but-evicted entries still count.
	MemTracker *memtracker.Tracker

	// MemTrackerApproximationRatio in [0, 1] batches tracker updates: each
	// shard defers deltas until they exceed ratio x shard capacity. Zero
	// tracks exactly; larger values trade accuracy for less cross-shard
	// atomic traffic.
	MemTrackerApproximationRatio float64

	// Metrics receives hit/miss/insert/eviction/usage signals, best-effort.
	Metrics Metrics

	// Logger reports construction, unexpected misses, allocation failures,
	// and invalidation sweeps.
	Logger *zap.Logger
}

// withDefaults fills nil collaborators. Called once by New; shards share the
// resulting value.
func (o Options) withDefaults() Options {
	if o.Policy == nil {
		o.Policy = lru.New()
	}
	if o.Allocator == nil {
		o.Allocator = allocator.Heap()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MemTrackerApproximationRatio < 0 {
		o.MemTrackerApproximationRatio = 0
	} else if o.MemTrackerApproximationRatio > 1 {
		o.MemTrackerApproximationRatio = 1
	}
	return o
}

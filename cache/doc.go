// Package cache provides a sharded, capacity-bounded cache for opaque byte
// blobs with reference-counted pinning and a pluggable eviction policy
// (LRU by default, FIFO available). It is the block cache of a columnar
// storage engine: deserialized data blocks are filled in place and pinned
// while readers use them.
//
// # Design
//
//   - Concurrency: the cache is split into a power-of-two number of shards,
//     each protected by its own mutex. A key routes to its shard via a
//     64-bit xxhash and a mask. Operations on different shards proceed
//     fully in parallel.
//
//   - Storage: each shard keeps a map from key to entry for lookups and an
//     intrusive doubly linked list for the policy ordering. An entry's key
//     and value live contiguously in a single allocator-provided buffer.
//     All operations are O(1) expected, except Invalidate.
//
//   - Pinning: Lookup and Allocate return reference-counted Handles. A
//     handle keeps the entry's bytes valid even after the entry is evicted,
//     erased, or replaced; the buffer is freed, and the eviction callback
//     fires exactly once, when the entry is unindexed and its last handle
//     is released. Freeing never holds a shard lock.
//
//   - Policies: eviction policy is pluggable via the policy package. LRU
//     promotes entries on every hit; FIFO ignores hits so capacity behaves
//     like a ring buffer by insertion order.
//
//   - Capacity: the configured byte capacity is split evenly across shards.
//     Inserting past capacity evicts from the policy tail until usage fits.
//     The bound is soft: pinned entries keep their bytes (and memory
//     tracker consumption) until released.
//
//   - Invalidation: Invalidate sweeps each shard in policy order under a
//     caller-supplied validity predicate, with an iteration functor that can
//     stop a sweep early for cost-bounded maintenance.
//
//   - Collaborators: buffer allocation is injected (allocator package),
//     memory accounting reports to an optional memtracker.Tracker with a
//     configurable approximation ratio, and metrics go to a Metrics
//     implementation (a Prometheus adapter lives in metrics/prom).
//
// # Basic usage
//
//	c := cache.New(cache.Options{Capacity: 64 << 20})
//
//	// Fill protocol: allocate, write, insert.
//	h, err := c.Allocate([]byte("block-7"), len(payload), cache.AutomaticCharge)
//	if err != nil {
//	    return err // allocator is out of space
//	}
//	copy(h.MutableValue(), payload)
//	c.Insert(h, nil)
//	h.Release()
//
//	// Read path: lookup pins the entry until released.
//	if h := c.Lookup([]byte("block-7"), cache.ExpectInCache); h != nil {
//	    use(h.Value())
//	    h.Release()
//	}
//
// # FIFO and single-shard mode
//
//	c := cache.New(cache.Options{
//	    Capacity:    10 << 10,
//	    SingleShard: true,       // deterministic eviction for tests
//	    Policy:      fifo.New(), // insertion-order eviction
//	})
//
// # Bulk invalidation
//
//	// Drop every entry whose block generation is stale, but scan at most
//	// 1000 entries per sweep.
//	n := c.Invalidate(cache.InvalidationControl{
//	    Validity:  func(key, value []byte) bool { return fresh(key) },
//	    Iteration: func(valid, invalid int) bool { return valid+invalid < 1000 },
//	})
package cache

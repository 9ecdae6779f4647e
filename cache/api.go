package cache

// LookupMode tells the cache whether the caller expects the key to be
// resident. It selects which hit/miss metric family is updated and whether
// a miss is logged as an anomaly; it never changes lookup semantics.
type LookupMode int

const (
	// ExpectInCache marks lookups whose miss is an anomaly worth surfacing:
	// the caller believes the entry was inserted and not yet evicted.
	ExpectInCache LookupMode = iota
	// NoExpectInCache marks probe lookups where a miss is a normal outcome
	// (e.g. checking before a fill).
	NoExpectInCache
)

// AutomaticCharge requests that Allocate derive the entry's charge from its
// buffer length plus a fixed per-entry bookkeeping overhead.
const AutomaticCharge = -1

// EvictionCallback is invoked exactly once per entry, when the entry's bytes
// are about to be freed: after it has been removed from the index and its
// last handle released. The key and value slices are only valid for the
// duration of the call. Callbacks may run on any goroutine that dropped the
// final reference and must not call back into the same cache synchronously.
type EvictionCallback func(key, value []byte)

// Cache is a sharded, capacity-bounded store of opaque byte blobs with
// reference-counted pinning. All methods are safe for concurrent use.
//
// The fill protocol is caller-driven: Allocate a handle sized for the value,
// write the bytes via MutableValue, then Insert. Lookup returns a new pinned
// handle to the same entry; every handle must be Released.
//
// Typical complexity is amortized O(1) under a shard lock; Invalidate is
// O(entries scanned) and bounded by its iteration functor.
type Cache interface {
	// Lookup returns a pinned handle to the entry under key, or nil if the
	// key is not resident. The active policy may treat the access as use.
	Lookup(key []byte, mode LookupMode) *Handle

	// Allocate creates an unindexed entry with room for a valueLen-byte
	// value and returns its only handle. charge is the capacity cost counted
	// against the routed shard (AutomaticCharge derives it from the buffer
	// size). The entry is invisible to lookups until Insert.
	Allocate(key []byte, valueLen, charge int) (*Handle, error)

	// Insert indexes the entry behind a handle returned by Allocate,
	// evicting any resident entry under the same key and then trimming the
	// shard to capacity. cb (may be nil) fires once the entry's bytes are
	// freed. The handle stays valid and pinned for the caller.
	Insert(h *Handle, cb EvictionCallback)

	// Erase removes the entry under key from the index, if present.
	// Erasing an absent key is a no-op.
	Erase(key []byte)

	// Invalidate sweeps every shard in policy order, erasing entries the
	// control's validity predicate rejects, and returns how many entries
	// were invalidated. See InvalidationControl for the iteration contract.
	Invalidate(ctl InvalidationControl) int

	// Usage returns the summed charge of indexed entries across all shards.
	Usage() int64

	// Capacity returns the configured total capacity.
	Capacity() int64

	// Len returns the total number of indexed entries across all shards.
	Len() int

	// Stats returns an aggregated snapshot of per-shard counters.
	Stats() Stats
}

// Stats is a point-in-time aggregate of the cache's internal counters.
// Counters are maintained with relaxed per-shard atomics, so a snapshot
// taken under load is internally consistent only per field.
type Stats struct {
	Hits      int64
	Misses    int64
	Inserts   uint64
	Evictions uint64
	Usage     int64
	Entries   int
}

package cache

import (
	"sync/atomic"

	"github.com/colstore/blockcache/policy"
)

// entryOverhead approximates what an entry costs beyond its buffer: the
// entry struct itself, the index cell, and the list links. Used by
// AutomaticCharge so that many tiny entries cannot blow past the capacity
// accounting for free.
const entryOverhead = 64

// entry is a single stored key/value pair plus bookkeeping. The key and the
// value region live contiguously in one allocator-provided buffer, so the
// whole entry is handed back to the allocator in a single Free.
//
// Lifecycle: created by Allocate with one caller reference; Insert adds the
// index's implicit reference; removal from the index (eviction, erase,
// replacement, invalidation) drops that reference. The entry is freed
// exactly once, when it is unindexed and the last reference drops. An
// unindexed entry is unreachable by lookups but its bytes stay valid while
// any handle pins it.
type entry struct {
	// Intrusive list links, guarded by the owning shard's lock. Head is the
	// most valuable end of the policy ordering, tail the next victim.
	prev, next *entry

	shard *shard
	buf   []byte // key bytes followed by the value region
	klen  int

	charge int64

	// refs counts outstanding handles, plus one while the entry is indexed.
	// Atomic so the final release can free the entry without the shard lock.
	refs atomic.Int32

	// pending is true between Allocate and Insert. inserted is set once the
	// entry has been indexed; never-inserted entries skip the eviction
	// callback, metrics, and tracker release on free. Both are written only
	// while no other goroutine can reach the entry.
	pending  bool
	inserted bool

	onEvict EvictionCallback
}

func (e *entry) Key() []byte   { return e.buf[:e.klen] }
func (e *entry) Value() []byte { return e.buf[e.klen:] }
func (e *entry) Charge() int64 { return e.charge }

var _ policy.Node = (*entry)(nil)

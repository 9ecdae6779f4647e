package cache

// Handle is a reference-counted capability over one cache entry. Holding a
// handle pins the entry's bytes: they remain valid and readable even after
// the entry has been evicted or replaced in the index. Handles are not safe
// for concurrent use by multiple goroutines, but distinct handles to the
// same entry are independent.
//
// Every handle must be released exactly once. Releasing the last reference
// to an unindexed entry frees its buffer and fires its eviction callback,
// on the releasing goroutine.
type Handle struct {
	e *entry
}

// Key returns the entry's key bytes. Valid until Release.
func (h *Handle) Key() []byte { return h.entry().Key() }

// Value returns the entry's value bytes, read-only by contract.
// Valid until Release.
func (h *Handle) Value() []byte { return h.entry().Value() }

// MutableValue returns the writable value region. Callers fill it between
// Allocate and Insert; writing after Insert races with concurrent readers.
func (h *Handle) MutableValue() []byte { return h.entry().Value() }

// Charge returns the capacity cost accounted for the entry.
func (h *Handle) Charge() int64 { return h.entry().charge }

// Release drops this handle's reference. If the entry is no longer indexed
// and this was the last reference, the entry is freed here: the eviction
// callback runs and the buffer goes back to the allocator.
func (h *Handle) Release() {
	e := h.e
	if e == nil {
		panic("cache: handle released twice")
	}
	h.e = nil
	switch n := e.refs.Add(-1); {
	case n == 0:
		e.shard.freeEntry(e)
	case n < 0:
		panic("cache: entry reference count below zero")
	}
}

func (h *Handle) entry() *entry {
	if h.e == nil {
		panic("cache: use of released handle")
	}
	return h.e
}

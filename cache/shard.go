package cache

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/colstore/blockcache/internal/util"
	"github.com/colstore/blockcache/policy"
)

// shard is an independent partition of the cache with its own lock, key
// index, and an intrusive doubly linked list (head = most valuable end,
// tail = next eviction victim). Entries detached here may outlive the shard
// state via outstanding handles; freeing always happens after the lock is
// released.
type shard struct {
	// ---- guarded by mu ----
	mu    sync.Mutex
	idx   map[string]*entry
	head  *entry
	tail  *entry
	len   int
	usage int64 // summed charge of indexed entries

	capacity int64
	pol      policy.ShardPolicy
	opt      *Options

	// Deferred mem-tracker accounting; see updateMemTracker.
	deferred    atomic.Int64
	maxDeferred int64

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_       util.CacheLinePad
	hits    util.PaddedAtomicInt64
	misses  util.PaddedAtomicInt64
	inserts util.PaddedAtomicUint64
	evicts  util.PaddedAtomicUint64
}

// newShard initializes a shard with its slice of the total capacity.
// opt is shared across shards and already has defaults applied.
func newShard(capacity int64, opt *Options) *shard {
	s := &shard{
		idx:         make(map[string]*entry),
		capacity:    capacity,
		opt:         opt,
		maxDeferred: int64(opt.MemTrackerApproximationRatio * float64(capacity)),
	}
	s.pol = opt.Policy.New(shardHooks{s})
	return s
}

// lookup returns a pinned handle to the indexed entry, or nil on miss.
func (s *shard) lookup(key []byte, mode LookupMode) *Handle {
	s.mu.Lock()
	e, ok := s.idx[string(key)] // map access on string([]byte) does not allocate
	if ok {
		e.refs.Add(1)
		s.pol.OnAccess(e)
	}
	s.mu.Unlock()

	expected := mode == ExpectInCache
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss(expected)
		if expected {
			s.opt.Logger.Debug("unexpected cache miss", zap.Binary("key", key))
		}
		return nil
	}
	s.hits.Add(1)
	s.opt.Metrics.Hit(expected)
	return &Handle{e: e}
}

// insert indexes a pending entry, replacing any resident entry under the
// same key, then reclaims victims from the policy tail until usage fits
// capacity again. A victim can be the new entry itself when its charge alone
// exceeds the shard capacity; the caller's handle still pins its bytes.
func (s *shard) insert(e *entry, cb EvictionCallback) {
	e.onEvict = cb
	var last []*entry // entries whose final reference dropped under the lock

	s.mu.Lock()
	if !e.pending {
		s.mu.Unlock()
		panic("cache: entry inserted twice")
	}
	e.pending = false
	e.inserted = true
	e.refs.Add(1) // the index's implicit reference

	usageBefore, lenBefore := s.usage, s.len

	key := string(e.Key())
	if old, ok := s.idx[key]; ok {
		s.detachLocked(old)
		if old.refs.Add(-1) == 0 {
			last = append(last, old)
		}
	}
	s.idx[key] = e
	s.pol.OnInsert(e)
	s.len++
	s.usage += e.charge

	for s.usage > s.capacity {
		v := s.pol.Victim()
		if v == nil {
			break
		}
		victim := v.(*entry)
		delete(s.idx, string(victim.Key()))
		s.detachLocked(victim)
		if victim.refs.Add(-1) == 0 {
			last = append(last, victim)
		}
	}
	dUsage, dLen := s.usage-usageBefore, s.len-lenBefore
	s.mu.Unlock()

	s.inserts.Add(1)
	s.opt.Metrics.Insert(e.charge)
	s.opt.Metrics.Usage(dUsage, dLen)
	s.updateMemTracker(e.charge)
	for _, f := range last {
		s.freeEntry(f)
	}
}

// erase removes the entry under key from the index. Absent keys are a no-op.
func (s *shard) erase(key []byte) {
	var free *entry
	s.mu.Lock()
	e, ok := s.idx[string(key)]
	if ok {
		delete(s.idx, string(key))
		s.detachLocked(e)
		if e.refs.Add(-1) == 0 {
			free = e
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.opt.Metrics.Usage(-e.charge, -1)
	if free != nil {
		s.freeEntry(free)
	}
}

// invalidate sweeps indexed entries in policy order starting from the next
// victim. The iteration functor is consulted before each entry with the
// counts so far, so a never-advance functor touches nothing. The shard lock
// is held for the whole sweep; invalidation is an infrequent administrative
// operation and the coarse grain keeps the counts coherent.
func (s *shard) invalidate(ctl InvalidationControl) int {
	var (
		freed          []*entry
		valid, invalid int
		dUsage         int64
	)
	s.mu.Lock()
	for e := s.tail; e != nil && ctl.Iteration(valid, invalid); {
		next := e.prev // toward the more valuable end
		if ctl.Validity(e.Key(), e.Value()) {
			valid++
		} else {
			invalid++
			dUsage -= e.charge
			delete(s.idx, string(e.Key()))
			s.detachLocked(e)
			if e.refs.Add(-1) == 0 {
				freed = append(freed, e)
			}
		}
		e = next
	}
	s.mu.Unlock()

	if invalid > 0 {
		s.opt.Metrics.Usage(dUsage, -invalid)
	}
	for _, e := range freed {
		s.freeEntry(e)
	}
	return invalid
}

func (s *shard) snapshot() (usage int64, entries int) {
	s.mu.Lock()
	usage, entries = s.usage, s.len
	s.mu.Unlock()
	return usage, entries
}

// freeEntry releases everything an entry owns: the eviction callback fires
// with the final key/value, the tracker gives the charge back, and the
// buffer returns to the allocator. The entry is already detached from shard
// state, so no lock is held; this runs on whichever goroutine dropped the
// last reference. Entries that were never inserted only free their buffer.
func (s *shard) freeEntry(e *entry) {
	if e.inserted {
		s.evicts.Add(1)
		s.opt.Metrics.Evict(e.charge)
		if e.onEvict != nil {
			e.onEvict(e.Key(), e.Value())
		}
		s.updateMemTracker(-e.charge)
	}
	s.opt.Allocator.Free(e.buf)
	e.buf = nil
}

// updateMemTracker propagates a charge delta to the configured tracker.
// With a non-zero approximation ratio, deltas accumulate in a per-shard
// atomic and flush only once they exceed ratio x shard capacity in either
// direction, trading tracker accuracy for fewer shared atomic updates on
// the hot path. A concurrent flush may race another accumulation; the
// tracker is best-effort by contract, so the transient skew is acceptable.
func (s *shard) updateMemTracker(delta int64) {
	t := s.opt.MemTracker
	if t == nil {
		return
	}
	if s.maxDeferred == 0 {
		t.Consume(delta)
		return
	}
	deferred := s.deferred.Add(delta)
	if deferred > s.maxDeferred || deferred < -s.maxDeferred {
		t.Consume(s.deferred.Swap(0))
	}
}

// -------------------- intrusive list (mu held) --------------------

// pushFront inserts e at the most valuable end in O(1).
func (s *shard) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// moveToFront promotes e to the most valuable end in O(1).
func (s *shard) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
}

// removeNode unlinks e in O(1).
func (s *shard) removeNode(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// detachLocked removes e from the ordering and the shard accounting.
// The index cell is the caller's responsibility (replacement overwrites it
// in place instead of deleting).
func (s *shard) detachLocked(e *entry) {
	s.pol.OnRemove(e)
	s.removeNode(e)
	s.len--
	s.usage -= e.charge
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
// All calls happen under the shard lock.
type shardHooks struct{ s *shard }

func (h shardHooks) MoveToFront(n policy.Node) { h.s.moveToFront(n.(*entry)) }
func (h shardHooks) PushFront(n policy.Node)   { h.s.pushFront(n.(*entry)) }
func (h shardHooks) Back() policy.Node {
	if t := h.s.tail; t != nil {
		return t
	}
	return nil // avoid a non-nil interface around a nil *entry
}
func (h shardHooks) Len() int { return h.s.len }

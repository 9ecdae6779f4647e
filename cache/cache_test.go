package cache

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/blockcache/allocator"
	"github.com/colstore/blockcache/memtracker"
	"github.com/colstore/blockcache/policy"
	"github.com/colstore/blockcache/policy/fifo"
	"github.com/colstore/blockcache/policy/lru"
)

// Conversions between numeric keys/values and the byte blobs the cache stores.
func encodeInt(k int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(k))
	return b
}

func decodeInt(t *testing.T, b []byte) int {
	t.Helper()
	require.Len(t, b, 4)
	return int(binary.LittleEndian.Uint32(b))
}

// cacheTester drives the handle-based API with integer keys/values and
// records every eviction callback invocation.
type cacheTester struct {
	t *testing.T
	c Cache

	evictedKeys   []int
	evictedValues []int
}

func (ct *cacheTester) onEvict(key, value []byte) {
	ct.evictedKeys = append(ct.evictedKeys, decodeInt(ct.t, key))
	ct.evictedValues = append(ct.evictedValues, decodeInt(ct.t, value))
}

// lookup returns the value under k, or -1 on a miss.
func (ct *cacheTester) lookup(k int) int {
	h := ct.c.Lookup(encodeInt(k), ExpectInCache)
	if h == nil {
		return -1
	}
	defer h.Release()
	return decodeInt(ct.t, h.Value())
}

func (ct *cacheTester) insert(k, v int) { ct.insertCharged(k, v, 1) }

func (ct *cacheTester) insertCharged(k, v, charge int) {
	ct.t.Helper()
	val := encodeInt(v)
	h, err := ct.c.Allocate(encodeInt(k), len(val), charge)
	require.NoError(ct.t, err)
	copy(h.MutableValue(), val)
	ct.c.Insert(h, ct.onEvict)
	h.Release()
}

func (ct *cacheTester) erase(k int) { ct.c.Erase(encodeInt(k)) }

// cacheVariant parameterizes scenarios over eviction policy and sharding,
// mirroring how capacity-sensitive behavior differs between a single global
// shard and hash-split shards.
type cacheVariant struct {
	name   string
	policy func() policy.Policy
	single bool
}

func cacheVariants() []cacheVariant {
	return []cacheVariant{
		{"fifo/multi-shard", fifo.New, false},
		{"fifo/single-shard", fifo.New, true},
		{"lru/multi-shard", lru.New, false},
		{"lru/single-shard", lru.New, true},
	}
}

func newTester(t *testing.T, opt Options) *cacheTester {
	return &cacheTester{t: t, c: New(opt)}
}

const testCacheSize = 16 << 20

func TestCache_TrackMemory(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			tracker := memtracker.New("cache_test")
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
				MemTracker:  tracker,
			})

			ct.insertCharged(100, 100, 1)
			require.EqualValues(t, 1, tracker.Consumption())
			ct.erase(100)
			require.EqualValues(t, 0, tracker.Consumption())
			require.EqualValues(t, 1, tracker.Peak())
		})
	}
}

func TestCache_HitAndMiss(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			require.Equal(t, -1, ct.lookup(100))

			ct.insert(100, 101)
			require.Equal(t, 101, ct.lookup(100))
			require.Equal(t, -1, ct.lookup(200))
			require.Equal(t, -1, ct.lookup(300))

			ct.insert(200, 201)
			require.Equal(t, 101, ct.lookup(100))
			require.Equal(t, 201, ct.lookup(200))
			require.Equal(t, -1, ct.lookup(300))

			// Replacement evicts the old entry immediately: no handle pins it.
			ct.insert(100, 102)
			require.Equal(t, 102, ct.lookup(100))
			require.Equal(t, 201, ct.lookup(200))
			require.Equal(t, -1, ct.lookup(300))

			require.Equal(t, []int{100}, ct.evictedKeys)
			require.Equal(t, []int{101}, ct.evictedValues)
		})
	}
}

func TestCache_Erase(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			// Erasing an absent key is a no-op.
			ct.erase(200)
			require.Empty(t, ct.evictedKeys)

			ct.insert(100, 101)
			ct.insert(200, 201)
			ct.erase(100)
			require.Equal(t, -1, ct.lookup(100))
			require.Equal(t, 201, ct.lookup(200))
			require.Equal(t, []int{100}, ct.evictedKeys)
			require.Equal(t, []int{101}, ct.evictedValues)

			ct.erase(100)
			require.Equal(t, -1, ct.lookup(100))
			require.Equal(t, 201, ct.lookup(200))
			require.Len(t, ct.evictedKeys, 1)
		})
	}
}

func TestCache_EntriesArePinned(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			ct.insert(100, 101)
			h1 := ct.c.Lookup(encodeInt(100), ExpectInCache)
			require.NotNil(t, h1)
			require.Equal(t, 101, decodeInt(t, h1.Value()))

			// Replace while h1 pins the old entry: the old bytes stay valid
			// and no callback fires yet.
			ct.insert(100, 102)
			h2 := ct.c.Lookup(encodeInt(100), ExpectInCache)
			require.NotNil(t, h2)
			require.Equal(t, 102, decodeInt(t, h2.Value()))
			require.Equal(t, 101, decodeInt(t, h1.Value()))
			require.Empty(t, ct.evictedKeys)

			h1.Release()
			require.Equal(t, []int{100}, ct.evictedKeys)
			require.Equal(t, []int{101}, ct.evictedValues)

			ct.erase(100)
			require.Equal(t, -1, ct.lookup(100))
			require.Len(t, ct.evictedKeys, 1)

			h2.Release()
			require.Equal(t, []int{100, 100}, ct.evictedKeys)
			require.Equal(t, []int{101, 102}, ct.evictedValues)
		})
	}
}

// Add a bunch of light and heavy entries, then count the combined charge of
// entries still resident; it must stay near the configured capacity.
func TestCache_HeavyEntries(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			const light = testCacheSize / 1000
			const heavy = testCacheSize / 100
			added, index := 0, 0
			for added < 2*testCacheSize {
				weight := heavy
				if index&1 == 1 {
					weight = light
				}
				ct.insertCharged(index, 1000+index, weight)
				added += weight
				index++
			}

			cachedWeight := 0
			for i := 0; i < index; i++ {
				weight := heavy
				if i&1 == 1 {
					weight = light
				}
				if r := ct.lookup(i); r >= 0 {
					cachedWeight += weight
					require.Equal(t, 1000+i, r)
				}
			}
			require.LessOrEqual(t, cachedWeight, testCacheSize+testCacheSize/10)
		})
	}
}

func TestCache_InvalidateAllEntries(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			const entriesNum = 1024 // small enough that capacity never evicts
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			// Invalidation of an empty cache touches nothing.
			require.Equal(t, 0, ct.c.Invalidate(InvalidationControl{}))

			for i := 0; i < entriesNum; i++ {
				ct.insert(i, i)
			}
			// Remove a sparse pattern of keys first.
			sparseKeys := []int{1, 100, 101, 500, 501, 512, 999, 1001}
			for _, key := range sparseKeys {
				ct.erase(key)
			}
			require.Len(t, ct.evictedKeys, len(sparseKeys))

			// Everything still resident is invalidated.
			require.Equal(t, entriesNum-len(sparseKeys),
				ct.c.Invalidate(InvalidationControl{}))
			require.Len(t, ct.evictedKeys, entriesNum)
			require.Zero(t, ct.c.Len())
			require.Zero(t, ct.c.Usage())
		})
	}
}

func TestCache_InvalidateNoEntries(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			const entriesNum = 10
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			ctl := InvalidationControl{
				Validity: func(_, _ []byte) bool { return true },
			}
			require.Equal(t, 0, ct.c.Invalidate(ctl))

			for i := 0; i < entriesNum; i++ {
				ct.insert(i, i)
			}
			require.Equal(t, 0, ct.c.Invalidate(ctl))
			require.Empty(t, ct.evictedKeys)
			require.Equal(t, entriesNum, ct.c.Len())
		})
	}
}

func TestCache_InvalidateNoAdvanceIteration(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			const entriesNum = 256
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			ctl := InvalidationControl{
				Validity: InvalidateAll,
				// Never advance over the entry list.
				Iteration: func(_, _ int) bool { return false },
			}
			require.Equal(t, 0, ct.c.Invalidate(ctl))

			for i := 0; i < entriesNum; i++ {
				ct.insert(i, i)
			}
			// Nothing is invalidated even though every entry is declared
			// invalid: the sweep never starts.
			require.Equal(t, 0, ct.c.Invalidate(ctl))
			require.Empty(t, ct.evictedKeys)
			require.Equal(t, entriesNum, ct.c.Len())
		})
	}
}

func TestCache_InvalidateOddKeyEntries(t *testing.T) {
	t.Parallel()
	for _, v := range cacheVariants() {
		t.Run(v.name, func(t *testing.T) {
			const entriesNum = 64
			ct := newTester(t, Options{
				Capacity:    testCacheSize,
				Policy:      v.policy(),
				SingleShard: v.single,
			})

			ctl := InvalidationControl{
				Validity: func(key, _ []byte) bool {
					return decodeInt(t, key)%2 == 0
				},
			}
			require.Equal(t, 0, ct.c.Invalidate(ctl))

			for i := 0; i < entriesNum; i++ {
				ct.insert(i, i)
			}
			require.Equal(t, entriesNum/2, ct.c.Invalidate(ctl))
			require.Len(t, ct.evictedKeys, entriesNum/2)
			for i := 0; i < entriesNum; i++ {
				if i%2 == 0 {
					require.Equal(t, i, ct.lookup(i))
				} else {
					require.Equal(t, -1, ct.lookup(i))
				}
			}
		})
	}
}

func TestCache_AllocationFailure(t *testing.T) {
	t.Parallel()

	ct := newTester(t, Options{
		Capacity:  testCacheSize,
		Allocator: allocator.NewLimited(allocator.Heap(), 16),
	})

	// First entry fits the limited backend, the next does not.
	ct.insert(1, 1)
	_, err := ct.c.Allocate(encodeInt(2), 32, AutomaticCharge)
	require.Error(t, err)
	require.ErrorIs(t, err, allocator.ErrNoSpace)

	// The failure leaves the resident entry untouched.
	require.Equal(t, 1, ct.lookup(1))
}

// A handle released before Insert frees the buffer without firing the
// eviction callback or touching the index.
func TestCache_AbandonedPendingHandle(t *testing.T) {
	t.Parallel()

	tracker := memtracker.New("cache_test")
	ct := newTester(t, Options{
		Capacity:   testCacheSize,
		MemTracker: tracker,
	})

	h, err := ct.c.Allocate(encodeInt(7), 4, 1)
	require.NoError(t, err)
	h.Release()

	require.Equal(t, -1, ct.lookup(7))
	require.Empty(t, ct.evictedKeys)
	require.Zero(t, tracker.Consumption())
}

func TestCache_AutomaticCharge(t *testing.T) {
	t.Parallel()

	ct := newTester(t, Options{Capacity: testCacheSize, SingleShard: true})

	key := encodeInt(42)
	h, err := ct.c.Allocate(key, 100, AutomaticCharge)
	require.NoError(t, err)
	require.EqualValues(t, len(key)+100+entryOverhead, h.Charge())
	ct.c.Insert(h, nil)
	h.Release()

	require.EqualValues(t, len(key)+100+entryOverhead, ct.c.Usage())
}

func TestCache_HandleMisusePanics(t *testing.T) {
	t.Parallel()

	ct := newTester(t, Options{Capacity: testCacheSize})

	h, err := ct.c.Allocate(encodeInt(1), 4, 1)
	require.NoError(t, err)
	ct.c.Insert(h, nil)
	require.Panics(t, func() { ct.c.Insert(h, nil) }, "double insert")

	h.Release()
	require.Panics(t, func() { h.Release() }, "double release")
	require.Panics(t, func() { h.Value() }, "use after release")
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	ct := newTester(t, Options{Capacity: testCacheSize, SingleShard: true})

	ct.insert(1, 1)
	ct.insert(2, 2)
	require.Equal(t, 1, ct.lookup(1))
	require.Equal(t, -1, ct.lookup(3))
	ct.erase(2)

	st := ct.c.Stats()
	require.EqualValues(t, 1, st.Hits)
	require.EqualValues(t, 1, st.Misses)
	require.EqualValues(t, 2, st.Inserts)
	require.EqualValues(t, 1, st.Evictions)
	require.EqualValues(t, 1, st.Usage)
	require.Equal(t, 1, st.Entries)
}

func TestCache_PanicsOnZeroCapacity(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { New(Options{}) })
}

func TestCache_ErrNoSpaceWrapping(t *testing.T) {
	t.Parallel()

	c := New(Options{
		Capacity:  1 << 10,
		Allocator: allocator.NewLimited(allocator.Heap(), 8),
	})
	_, err := c.Allocate([]byte("key"), 64, AutomaticCharge)
	require.True(t, errors.Is(err, allocator.ErrNoSpace))
}

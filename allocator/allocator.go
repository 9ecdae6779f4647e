// Package allocator provides the buffer allocation backends used to hold
// cache entry bytes. The cache is constructed with an explicit Allocator
// instance; Heap is the convenience default. A pooled allocator recycles
// buffers through size-classed sync.Pools, and Limited wraps any backend
// with a hard bound on outstanding bytes so allocation failure is a real,
// testable path.
package allocator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNoSpace is returned when an allocator cannot satisfy a request.
// Callers receive it (possibly wrapped) from Cache.Allocate and are expected
// to degrade gracefully; the cache never retries on their behalf.
var ErrNoSpace = errors.New("allocator: no space")

// Allocator hands out and reclaims the byte buffers backing cache entries.
//
// Allocate returns a buffer of length exactly n. Free must be called exactly
// once per allocated buffer, from any goroutine, once no reader can touch it.
// Implementations must be safe for concurrent use.
type Allocator interface {
	Allocate(n int) ([]byte, error)
	Free(b []byte)
}

// Heap returns the default allocator: plain make with garbage collection.
// Free is a no-op; the GC reclaims buffers once the last reference drops.
func Heap() Allocator { return heapAllocator{} }

type heapAllocator struct{}

func (heapAllocator) Allocate(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrNoSpace)
	}
	return make([]byte, n), nil
}

func (heapAllocator) Free([]byte) {}

const (
	minPoolClass = 1 << 7  // below half of this the GC handles buffers better
	maxPoolClass = 1 << 20 // above this, pooling just pins large garbage
)

// defaultClasses doubles from minPoolClass to maxPoolClass.
func defaultClasses() []int {
	var sizes []int
	for s := minPoolClass; s <= maxPoolClass; s *= 2 {
		sizes = append(sizes, s)
	}
	return sizes
}

// NewPool returns a pooled allocator with the given ascending size classes.
// Without arguments it uses power-of-two classes from 128B to 1MiB.
// Requests above the largest class, and tiny requests where pooling loses to
// the GC, fall back to plain heap allocation.
func NewPool(sizes ...int) Allocator {
	if len(sizes) == 0 {
		sizes = defaultClasses()
	}
	for i, size := range sizes {
		if size <= 0 {
			panic("allocator: non-positive size class")
		}
		if i > 0 && sizes[i-1] >= size {
			panic("allocator: size classes unsorted or duplicated")
		}
	}
	p := &poolAllocator{sizes: sizes, pools: make([]sync.Pool, len(sizes))}
	for i := range sizes {
		size := sizes[i]
		p.pools[i].New = func() any {
			return make([]byte, size)
		}
	}
	return p
}

type poolAllocator struct {
	sizes []int
	pools []sync.Pool
}

func (p *poolAllocator) Allocate(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrNoSpace)
	}
	if p.gcSize(n) || n > p.sizes[len(p.sizes)-1] {
		return make([]byte, n), nil
	}
	// O(len(sizes)), but there are ~14 classes by default.
	for i, size := range p.sizes {
		if n <= size {
			return p.pools[i].Get().([]byte)[:n], nil
		}
	}
	panic("allocator: unreachable")
}

func (p *poolAllocator) Free(b []byte) {
	size := cap(b)
	if p.gcSize(size) {
		return
	}
	for i, s := range p.sizes {
		if size == s {
			p.pools[i].Put(b[:size]) //nolint:staticcheck // slices share a backing array by design
			return
		}
	}
	// Not one of ours (oversized fallback); leave it to the GC.
}

func (p *poolAllocator) gcSize(n int) bool { return n <= p.sizes[0]/2 }

// NewLimited wraps inner with a hard limit on outstanding allocated bytes.
// Allocate fails with ErrNoSpace once the limit would be exceeded; Free
// returns the buffer's capacity to the budget. This models bounded backends
// (an NVM region, a pre-sized arena) and gives tests a real failure path.
func NewLimited(inner Allocator, limit int64) Allocator {
	if limit <= 0 {
		panic("allocator: non-positive limit")
	}
	return &limitedAllocator{inner: inner, limit: limit}
}

type limitedAllocator struct {
	inner Allocator
	limit int64
	used  atomic.Int64
}

func (l *limitedAllocator) Allocate(n int) ([]byte, error) {
	if used := l.used.Add(int64(n)); used > l.limit {
		l.used.Add(int64(-n))
		return nil, fmt.Errorf("allocate %d bytes (%d of %d in use): %w",
			n, used-int64(n), l.limit, ErrNoSpace)
	}
	b, err := l.inner.Allocate(n)
	if err != nil {
		l.used.Add(int64(-n))
		return nil, err
	}
	return b, nil
}

func (l *limitedAllocator) Free(b []byte) {
	l.used.Add(int64(-len(b)))
	l.inner.Free(b)
}

// Package arena implements the per-worker off-heap memory lifecycle:
// a native slab allocator for paged raw partitions, a block factory
// for downsample overflow chunks, and per-schema write-buffer pools.
//
// An ArenaMemory is thread-affine (spec.md §4.1): exactly one per
// worker, never shared, no internal locking beyond the free-list
// mutexes of its allocator, block factory and pools. Go's runtime still backs
// the underlying bytes (there is no portable `mmap`/`unsafe` story that
// fits this corpus's style), but ownership is tracked exactly the way a
// real off-heap allocator would: an explicit alloc/free pair and a
// size-class free list, so the accounting invariants in spec.md §8
// ("zero outstanding raw-partition allocations" after a batch) hold
// regardless of whether the GC would have reclaimed the memory anyway.
package arena

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Pointer is an opaque handle to a native allocation. It is only ever
// valid for the NativeAllocator that produced it.
type Pointer struct {
	class int
	slab  []byte
}

// Bytes returns the backing slice for this pointer.
func (p Pointer) Bytes() []byte { return p.slab }

// sizeClasses are the power-of-two slab sizes the allocator rounds up
// to, from 4KiB to 16MiB. A chunk larger than the top class is served
// by a one-off allocation that is never pooled.
var sizeClasses = []int{
	4 << 10, 8 << 10, 16 << 10, 32 << 10, 64 << 10, 128 << 10,
	256 << 10, 512 << 10, 1 << 20, 4 << 20, 16 << 20,
}

// NativeAllocator is a free-list-backed slab allocator, grounded on the
// offset free-list reuse strategy of a partitioning block allocator:
// allocations are served from the free list of the matching size class
// before falling back to a fresh slab.
type NativeAllocator struct {
	mu        sync.Mutex
	freeLists [][][]byte // per size class

	outstanding int64 // atomic: number of live (unfreed) allocations

	allocs  prometheus.Counter
	frees   prometheus.Counter
	created prometheus.Counter
}

// NewNativeAllocator constructs an allocator instrumented under reg.
func NewNativeAllocator(reg prometheus.Registerer) *NativeAllocator {
	a := &NativeAllocator{
		freeLists: make([][][]byte, len(sizeClasses)),
		allocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_arena_allocations_total",
			Help: "Number of native allocations served by the arena allocator.",
		}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_arena_frees_total",
			Help: "Number of native allocations freed back to the arena allocator.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "downsampler_arena_slabs_created_total",
			Help: "Number of native slabs created (not served from a free list).",
		}),
	}
	if reg != nil {
		reg.MustRegister(a.allocs, a.frees, a.created)
	}
	return a
}

func classFor(n int) int {
	for i, c := range sizeClasses {
		if n <= c {
			return i
		}
	}
	return -1
}

// Alloc returns nBytes of native-style storage. The returned Pointer
// must be released exactly once via Free.
func (a *NativeAllocator) Alloc(nBytes int) Pointer {
	a.allocs.Inc()
	atomic.AddInt64(&a.outstanding, 1)

	class := classFor(nBytes)
	if class < 0 {
		// Larger than the biggest size class: one-off, unpooled allocation.
		a.created.Inc()
		return Pointer{class: -1, slab: make([]byte, nBytes)}
	}

	a.mu.Lock()
	list := a.freeLists[class]
	var slab []byte
	if n := len(list); n > 0 {
		slab = list[n-1]
		a.freeLists[class] = list[:n-1]
	}
	a.mu.Unlock()

	if slab == nil {
		a.created.Inc()
		slab = make([]byte, sizeClasses[class])
	}
	return Pointer{class: class, slab: slab[:nBytes]}
}

// Free returns p to its size class's free list. Idempotent calls are
// the caller's responsibility to avoid (matching PagedRawPartition's
// own idempotent free() guard at a higher layer); Free itself does not
// track double-frees to stay lock-light on the hot path.
func (a *NativeAllocator) Free(p Pointer) {
	a.frees.Inc()
	atomic.AddInt64(&a.outstanding, -1)

	if p.class < 0 {
		return // one-off allocation, let the GC reclaim it
	}
	full := p.slab[:cap(p.slab)]
	a.mu.Lock()
	a.freeLists[p.class] = append(a.freeLists[p.class], full)
	a.mu.Unlock()
}

// Outstanding reports the number of allocations handed out but not yet
// freed. A batch must drive this to zero (spec.md §8 memory invariant).
func (a *NativeAllocator) Outstanding() int64 {
	return atomic.LoadInt64(&a.outstanding)
}

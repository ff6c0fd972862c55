package malloc

import "fmt"
import "math"
import "math/rand"
import "sync"
import "sync/atomic"
import "time"
import "unsafe"

import "github.com/bnclabs/gomesh/api"
import "github.com/bnclabs/gomesh/lib"
import "golang.org/x/sync/singleflight"
import "golang.org/x/time/rate"

var _ api.Mallocer = (*GlobalHeap)(nil)

// GlobalHeap serves allocations from size-class bins backed by a
// meshable arena. All bitmap, bin and mesh mutations happen under a
// single mutex, pointer resolution on free is lock free.
type GlobalHeap struct {
	// 64-bit aligned statistics
	n_mallocs      int64
	n_frees        int64
	n_largemallocs int64
	n_untracked    int64 // atomic
	n_meshes       int64
	n_meshpasses   int64
	n_compacts     int64
	mh_allocs      int64
	mh_frees       int64
	h_meshpass     *lib.HistogramInt64 // microseconds
	av_pairs       *lib.AverageInt64

	name     string
	mu       sync.Mutex
	arena    *Arena
	registry *registry
	sizes    []int64
	bins     []*bin
	rng      *rand.Rand
	released bool

	lastmesheffective atomic.Bool
	lastmesh          time.Time
	meshperiod        int64 // atomic, milliseconds
	limiter           *rate.Limiter
	compacts          singleflight.Group

	// settings
	meshenabled    bool
	maxempty       int64
	effectivepairs int64
	maxmeshes      int64
	probes         int64
	occupancy      float64
	setts          lib.Settings
	logprefix      string
}

// NewGlobalHeap create a new heap, reserving its address space
// upfront. Settings not supplied are picked from Defaultsettings().
func NewGlobalHeap(name string, setts lib.Settings) (*GlobalHeap, error) {
	h := &GlobalHeap{name: name}
	h.logprefix = fmt.Sprintf("MESH [%s]", name)

	setts = make(lib.Settings).Mixin(Defaultsettings(), setts)
	validatesettings(setts)
	h.readsettings(setts)

	arena, err := NewArena(setts)
	if err != nil {
		return nil, err
	}
	h.arena = arena
	h.registry = newregistry(arena.npages)

	utilization := setts.Float64("sizeclass.utilization")
	h.sizes = Sizeclasses(MinSize, MaxSize, utilization)
	h.bins = make([]*bin, len(h.sizes))
	for i, size := range h.sizes {
		h.bins[i] = newbin(i, size, h.maxempty)
	}

	seed := setts.Int64("mesh.seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	h.rng = rand.New(rand.NewSource(seed))

	period := setts.Int64("mesh.checkperiod")
	atomic.StoreInt64(&h.meshperiod, period)
	h.limiter = rate.NewLimiter(periodlimit(period), 1)
	h.lastmesheffective.Store(true)

	h.h_meshpass = lib.NewhistorgramInt64(100, 100000, 1000)
	h.av_pairs = &lib.AverageInt64{}

	cp := humanizebytes(arena.capacity)
	infof("%v started with %v size classes, arena %v\n", h.logprefix, len(h.sizes), cp)
	return h, nil
}

func (h *GlobalHeap) readsettings(setts lib.Settings) {
	h.maxempty = setts.Int64("bin.maxempty")
	meshsetts := setts.Section("mesh.").Trim("mesh.")
	h.meshenabled = meshsetts.Bool("enabled")
	h.effectivepairs = meshsetts.Int64("effectivepairs")
	h.maxmeshes = meshsetts.Int64("maxmeshes")
	h.probes = meshsetts.Int64("probes")
	h.occupancy = meshsetts.Float64("occupancy")
	h.setts = setts
}

func periodlimit(periodms int64) rate.Limit {
	if periodms <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(periodms) * time.Millisecond)
}

// Sizeclasses return object sizes served by the small-object path.
func (h *GlobalHeap) Sizeclasses() []int64 {
	return h.sizes
}

//---- api.Mallocer interface

// Malloc implement api.Mallocer interface.
func (h *GlobalHeap) Malloc(size int64) unsafe.Pointer {
	if size <= 0 {
		return nil
	} else if size > MaxSize {
		return h.malloclarge(size)
	}
	return h.mallocsmall(size)
}

func (h *GlobalHeap) mallocsmall(size int64) unsafe.Pointer {
	class := sizeclassof(h.sizes, size)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	b := h.bins[class]
	mh := b.alloc()
	if mh == nil {
		mh = h.allocminiheaplocked(class, b.spanpages, b.objsize, b.objcount)
		if mh == nil {
			return nil
		}
		b.add(mh)
	}
	ptr := mh.mallocslot(h.arena.begin())
	b.postalloc(mh)
	h.n_mallocs++
	initblock(ptr, b.objsize)
	return ptr
}

// malloclarge serve objects above MaxSize with a span of their own,
// such spans are never meshed.
func (h *GlobalHeap) malloclarge(size int64) unsafe.Pointer {
	pagecount := lib.Ceil(size, PageSize)
	if pagecount > math.MaxInt/PageSize {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	mh := h.allocminiheaplocked(-1, pagecount, pagecount*PageSize, 1)
	if mh == nil {
		return nil
	}
	ptr := mh.mallocslot(h.arena.begin())
	h.n_mallocs++
	h.n_largemallocs++
	return ptr
}

// Free implement api.Mallocer interface.
func (h *GlobalHeap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	mh := h.miniheapfor(ptr)
	if mh == nil {
		atomic.AddInt64(&h.n_untracked, 1)
		untrackedfree(h.logprefix, ptr)
		return
	}
	h.freefor(mh, ptr)
}

// freefor free ptr owned by mh. mh was resolved without the lock,
// and by now it can be meshed into another MiniHeap, flushed, or its
// id reused by an unrelated MiniHeap. Pointers that are not at a slot
// boundary are counted as untracked.
func (h *GlobalHeap) freefor(mh *MiniHeap, ptr unsafe.Pointer) {
	if mh == nil || ptr == nil {
		return
	}

	h.mu.Lock()

	if h.released {
		h.mu.Unlock()
		return
	}
	base := h.arena.begin()
	if mh.Ismeshed() || mh.id == 0 || !mh.owns(base, ptr) {
		// page table and registry are stable under the lock.
		if mh = h.miniheapfor(ptr); mh == nil || !mh.owns(base, ptr) {
			h.mu.Unlock()
			atomic.AddInt64(&h.n_untracked, 1)
			untrackedfree(h.logprefix, ptr)
			return
		} else if mh.Ismeshed() {
			panicerr("%v re-resolved %p to meshed %v", h.logprefix, ptr, mh)
		}
	}

	if mh.Islarge() {
		h.n_frees++
		h.freeminiheaplocked(mh)
		h.mu.Unlock()
		return
	}

	h.lastmesheffective.Store(true)
	if !mh.free(base, ptr) {
		h.mu.Unlock()
		debugf("%v double free %p in %v\n", h.logprefix, ptr, mh)
		return
	}
	h.n_frees++
	remaining := mh.Inusecount()
	b := h.bins[mh.sizeclass]
	if b.postfree(mh, remaining) {
		h.flushbinlocked(b)
	}

	h.mu.Unlock()

	if remaining > 0 {
		h.maybemesh()
	}
}

// Usablesize implement api.Mallocer interface.
func (h *GlobalHeap) Usablesize(ptr unsafe.Pointer) int64 {
	if mh := h.miniheapfor(ptr); mh != nil {
		return mh.objsize
	}
	return 0
}

// Release implement api.Mallocer interface.
func (h *GlobalHeap) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	h.released = true
	if err := h.arena.release(); err != nil {
		warnf("%v release: %v\n", h.logprefix, err)
	}
	infof("%v released\n", h.logprefix)
}

//---- local functions

// miniheapfor resolve ptr to its MiniHeap, nil if untracked.
func (h *GlobalHeap) miniheapfor(ptr unsafe.Pointer) *MiniHeap {
	return h.registry.miniheapforid(h.arena.idfor(ptr))
}

func (h *GlobalHeap) allocminiheaplocked(
	class int, spanpages, objsize, objcount int64) *MiniHeap {

	s, ok := h.arena.pagealignedalloc(1, spanpages)
	if !ok {
		warnf("%v %v, allocating %v pages\n", h.logprefix, ErrorOutofMemory, spanpages)
		return nil
	}
	mh := newminiheap(s, class, objsize, objcount)
	h.arena.trackspan(s, h.registry.track(mh))
	h.mh_allocs++
	return mh
}

// freeminiheaplocked return all spans of mh to the arena, mh must
// already be detached from its bin.
func (h *GlobalHeap) freeminiheaplocked(mh *MiniHeap) {
	var err error
	mh.formeshed(func(s span) bool {
		h.arena.untrackspan(s)
		aliased := s != mh.spans[0]
		err = h.arena.freespan(s, aliased)
		return err != nil
	})
	if err != nil {
		panicerr("%v freeing %v: %v", h.logprefix, mh, err)
	}
	h.registry.untrack(mh)
	h.mh_frees++
}

func (h *GlobalHeap) flushbinlocked(b *bin) {
	for _, mh := range b.flush() {
		h.freeminiheaplocked(mh)
	}
}

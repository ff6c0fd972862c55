package malloc

import "fmt"
import "unsafe"
import "sync/atomic"

import "github.com/RoaringBitmap/roaring/v2"
import "github.com/bnclabs/gomesh/lib"

// span is a run of pages in the arena, identified by its page offset
// from the arena base. A span's virtual pages normally map to the
// same offset in the arena file, once meshed they map to the
// destination span's file offset.
type span struct {
	offset int64
	npages int64
}

func (s span) byteoffset() int64 {
	return s.offset * PageSize
}

func (s span) size() int64 {
	return s.npages * PageSize
}

func (s span) String() string {
	return fmt.Sprintf("span{%v+%v}", s.offset, s.npages)
}

// Arena reserves a contiguous virtual address space backed by an
// in-memory file. Spans are carved out of it, and meshing re-points
// a span's virtual pages at another span's file pages. Methods,
// except idfor, must be called with the heap lock held.
type Arena struct {
	fd       int
	mapping  []byte
	base     unsafe.Pointer
	capacity int64 // bytes
	npages   int64
	end      int64 // pages handed out from the top of the arena

	// page -> miniheap id, read without lock.
	tablemem  []byte
	pagetable []uint32

	// freed spans by page count. dirty spans are still resident,
	// clean spans are hole-punched and read as zero.
	dirty    map[int64][]span
	clean    map[int64][]span
	dirtyset *roaring.Bitmap
	maxdirty int64 // pages

	// pages whose virtual range aliases another span's file pages.
	meshedset *roaring.Bitmap
	meshedhwm int64
	maxmeshed int64
	released  bool
}

// NewArena reserve address space of "arena.capacity" bytes.
func NewArena(setts lib.Settings) (*Arena, error) {
	capacity := setts.Int64("arena.capacity")
	if capacity < PageSize || capacity%PageSize != 0 {
		return nil, fmt.Errorf("arena.capacity %v not page aligned", capacity)
	}
	arena := &Arena{
		capacity:  capacity,
		npages:    capacity / PageSize,
		dirty:     make(map[int64][]span),
		clean:     make(map[int64][]span),
		dirtyset:  roaring.New(),
		meshedset: roaring.New(),
		maxdirty:  lib.Ceil(setts.Int64("arena.maxdirty"), PageSize),
		maxmeshed: setts.Int64("mesh.maxpages"),
	}
	if err := arena.mapmemory(); err != nil {
		return nil, err
	}
	return arena, nil
}

// begin return the arena's base address.
func (arena *Arena) begin() unsafe.Pointer {
	return arena.base
}

func (arena *Arena) spanaddr(s span) unsafe.Pointer {
	return unsafe.Add(arena.base, s.byteoffset())
}

func (arena *Arena) spanbytes(s span) []byte {
	return lib.Bytes(arena.spanaddr(s), int(s.size()))
}

// contains return whether ptr falls inside the arena.
func (arena *Arena) contains(ptr unsafe.Pointer) bool {
	if arena.base == nil {
		return false
	}
	addr, start := uintptr(ptr), uintptr(arena.base)
	return addr >= start && addr < start+uintptr(arena.capacity)
}

//---- page allocation

// pagealignedalloc allocate a span of npages whose page offset is a
// multiple of alignment, alignment must be a power of 2.
func (arena *Arena) pagealignedalloc(alignment, npages int64) (span, bool) {
	if arena.released || npages <= 0 || npages > arena.npages {
		return span{}, false
	}
	if alignment <= 1 {
		if s, ok := arena.reuse(arena.dirty, npages, true); ok {
			return s, true
		} else if s, ok := arena.reuse(arena.clean, npages, false); ok {
			return s, true
		}
	}
	offset := arena.end
	if alignment > 1 {
		offset = lib.Roundup(offset, alignment)
	}
	if offset+npages <= arena.npages {
		if offset > arena.end { // keep the skipped pages for reuse
			gap := span{offset: arena.end, npages: offset - arena.end}
			arena.clean[gap.npages] = append(arena.clean[gap.npages], gap)
		}
		arena.end = offset + npages
		return span{offset: offset, npages: npages}, true
	}
	if alignment <= 1 {
		if s, ok := arena.split(arena.dirty, npages, true); ok {
			return s, true
		}
		return arena.split(arena.clean, npages, false)
	}
	return span{}, false
}

func (arena *Arena) reuse(spans map[int64][]span, npages int64, dirty bool) (span, bool) {
	list := spans[npages]
	if len(list) == 0 {
		return span{}, false
	}
	s := list[len(list)-1]
	spans[npages] = list[:len(list)-1]
	if dirty {
		arena.undirty(s)
	}
	return s, true
}

// split carve npages out of the smallest free span that is larger
// than npages, the remainder stays in the same list.
func (arena *Arena) split(spans map[int64][]span, npages int64, dirty bool) (span, bool) {
	best := int64(-1)
	for n, list := range spans {
		if n > npages && len(list) > 0 && (best < 0 || n < best) {
			best = n
		}
	}
	if best < 0 {
		return span{}, false
	}
	whole, _ := arena.reuse(spans, best, dirty)
	s := span{offset: whole.offset, npages: npages}
	rest := span{offset: whole.offset + npages, npages: whole.npages - npages}
	if dirty {
		arena.markdirty(rest)
	} else {
		spans[rest.npages] = append(spans[rest.npages], rest)
	}
	return s, true
}

// freespan return a span to the arena. An aliased span, one whose
// pages were meshed into another span, is re-pointed to its own file
// offset, which was hole-punched during the mesh.
func (arena *Arena) freespan(s span, aliased bool) error {
	if aliased {
		if err := arena.remap(s, s.byteoffset()); err != nil {
			return err
		}
		arena.meshedset.RemoveRange(uint64(s.offset), uint64(s.offset+s.npages))
		arena.clean[s.npages] = append(arena.clean[s.npages], s)
		return nil
	}
	arena.markdirty(s)
	return nil
}

func (arena *Arena) markdirty(s span) {
	arena.dirty[s.npages] = append(arena.dirty[s.npages], s)
	arena.dirtyset.AddRange(uint64(s.offset), uint64(s.offset+s.npages))
}

func (arena *Arena) undirty(s span) {
	arena.dirtyset.RemoveRange(uint64(s.offset), uint64(s.offset+s.npages))
}

// scavenge return resident pages of freed spans to the OS. Unless
// aggressive, this is done only when dirty pages cross
// "arena.maxdirty".
func (arena *Arena) scavenge(aggressive bool) error {
	ndirty := int64(arena.dirtyset.GetCardinality())
	if ndirty == 0 || (!aggressive && ndirty < arena.maxdirty) {
		return nil
	}
	// coalesce consecutive pages into runs, one punch per run.
	start, prev := int64(-1), int64(-1)
	itr := arena.dirtyset.Iterator()
	for itr.HasNext() {
		page := int64(itr.Next())
		if start >= 0 && page == prev+1 {
			prev = page
			continue
		}
		if start >= 0 {
			if err := arena.punch(start, prev-start+1); err != nil {
				return err
			}
		}
		start, prev = page, page
	}
	if err := arena.punch(start, prev-start+1); err != nil {
		return err
	}
	for n, list := range arena.dirty {
		arena.clean[n] = append(arena.clean[n], list...)
		delete(arena.dirty, n)
	}
	arena.dirtyset.Clear()
	debugf("arena scavenged %v pages\n", ndirty)
	return nil
}

//---- reverse mapping

// idfor return the id of the miniheap owning ptr, zero if ptr is not
// tracked. Safe to call without the heap lock.
func (arena *Arena) idfor(ptr unsafe.Pointer) uint32 {
	base, table := arena.base, arena.pagetable
	if base == nil || table == nil || uintptr(ptr) < uintptr(base) {
		return 0
	}
	page := (uintptr(ptr) - uintptr(base)) / uintptr(PageSize)
	if page >= uintptr(len(table)) {
		return 0
	}
	return atomic.LoadUint32(&table[page])
}

func (arena *Arena) trackspan(s span, id uint32) {
	for page := s.offset; page < s.offset+s.npages; page++ {
		atomic.StoreUint32(&arena.pagetable[page], id)
	}
}

func (arena *Arena) untrackspan(s span) {
	arena.trackspan(s, 0)
}

//---- meshing

// beginmesh freeze src's pages so no write can slip in while they
// are copied into dst.
func (arena *Arena) beginmesh(dst, src span, size int64) error {
	if dst.size() != size || src.size() != size {
		return fmt.Errorf("beginmesh %v <- %v: size mismatch %v", dst, src, size)
	}
	return arena.protect(src)
}

// finalizemesh point src's virtual pages at dst's physical pages,
// read-write, and release src's physical pages. src can already be
// an alias, in which case its own file pages are already punched.
func (arena *Arena) finalizemesh(dst, src span, size int64) error {
	if dst.size() != size || src.size() != size {
		return fmt.Errorf("finalizemesh %v <- %v: size mismatch %v", dst, src, size)
	}
	if err := arena.remap(src, dst.byteoffset()); err != nil {
		return err
	}
	if err := arena.punch(src.offset, src.npages); err != nil {
		return err
	}
	arena.meshedset.AddRange(uint64(src.offset), uint64(src.offset+src.npages))
	if n := arena.meshedpages(); n > arena.meshedhwm {
		arena.meshedhwm = n
	}
	return nil
}

func (arena *Arena) meshedpages() int64 {
	return int64(arena.meshedset.GetCardinality())
}

// abovemeshthreshold return true once the aliased pages reach
// "mesh.maxpages", beyond which no more meshing is attempted.
func (arena *Arena) abovemeshthreshold() bool {
	return arena.meshedpages() >= arena.maxmeshed
}

//---- statistics and maintenance

func (arena *Arena) stats(stats map[string]interface{}) map[string]interface{} {
	stats["arena.capacity"] = arena.capacity
	stats["arena.used"] = arena.end * PageSize
	stats["arena.dirty"] = int64(arena.dirtyset.GetCardinality()) * PageSize
	stats["meshed_pages"] = arena.meshedpages()
	stats["meshed_hwm"] = arena.meshedhwm
	return stats
}

// release unmap the address space, all pointers into the arena
// become invalid.
func (arena *Arena) release() error {
	if arena.released {
		return nil
	}
	arena.released = true
	return arena.unmapmemory()
}

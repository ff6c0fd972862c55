package malloc

import "fmt"
import "unsafe"

import "github.com/bits-and-blooms/bitset"
import "github.com/bnclabs/gomesh/lib"

const (
	tierempty = iota
	tierpartial
	tierfull
	tiernone
)

// MiniHeap manages the slots of one span. Once meshed, a MiniHeap
// also owns the virtual spans of every MiniHeap folded into it, all
// of them sharing the physical pages of spans[0].
type MiniHeap struct {
	id        uint32
	sizeclass int // -1 for large objects
	objsize   int64
	maxcount  int64
	inuse     int64
	bitmap    *bitset.BitSet
	spans     []span

	meshedinto *MiniHeap
	tier       int
	tieridx    int
}

func newminiheap(s span, sizeclass int, objsize, maxcount int64) *MiniHeap {
	return &MiniHeap{
		sizeclass: sizeclass,
		objsize:   objsize,
		maxcount:  maxcount,
		bitmap:    bitset.New(uint(maxcount)),
		spans:     []span{s},
		tier:      tiernone,
		tieridx:   -1,
	}
}

// Sizeclass index into the heap's size classes, -1 for large
// objects.
func (mh *MiniHeap) Sizeclass() int {
	return mh.sizeclass
}

// Objectsize size of each slot in bytes.
func (mh *MiniHeap) Objectsize() int64 {
	return mh.objsize
}

// Maxcount number of slots.
func (mh *MiniHeap) Maxcount() int64 {
	return mh.maxcount
}

// Inusecount number of live objects.
func (mh *MiniHeap) Inusecount() int64 {
	return mh.inuse
}

// Meshcount number of spans folded into this MiniHeap, including
// its own.
func (mh *MiniHeap) Meshcount() int64 {
	return int64(len(mh.spans))
}

// Ismeshed return true once this MiniHeap is absorbed by another.
func (mh *MiniHeap) Ismeshed() bool {
	return mh.meshedinto != nil
}

// Islarge return true for single object spans.
func (mh *MiniHeap) Islarge() bool {
	return mh.maxcount == 1
}

func (mh *MiniHeap) Isempty() bool {
	return mh.inuse == 0
}

func (mh *MiniHeap) Isfull() bool {
	return mh.inuse == mh.maxcount
}

// spansize in bytes, same for every span of this MiniHeap.
func (mh *MiniHeap) spansize() int64 {
	return mh.spans[0].size()
}

// slotof return the slot index of ptr, ok is false if ptr does not
// fall inside any span of this MiniHeap or is not at a slot boundary.
func (mh *MiniHeap) slotof(base, ptr unsafe.Pointer) (slot uint, ok bool) {
	addr := uintptr(ptr)
	for _, s := range mh.spans {
		start := uintptr(base) + uintptr(s.byteoffset())
		if addr < start || addr >= start+uintptr(s.size()) {
			continue
		}
		off := int64(addr - start)
		if off%mh.objsize != 0 || off/mh.objsize >= mh.maxcount {
			return 0, false
		}
		return uint(off / mh.objsize), true
	}
	return 0, false
}

// owns return whether ptr is the address of a slot in this MiniHeap.
func (mh *MiniHeap) owns(base, ptr unsafe.Pointer) bool {
	_, ok := mh.slotof(base, ptr)
	return ok
}

// mallocslot mark the first free slot live and return its address,
// nil if the span is full.
func (mh *MiniHeap) mallocslot(base unsafe.Pointer) unsafe.Pointer {
	if mh.Ismeshed() {
		panicerr("allocating from meshed miniheap %v", mh)
	}
	slot, ok := mh.bitmap.NextClear(0)
	if !ok {
		return nil
	}
	mh.bitmap.Set(slot)
	mh.inuse++
	off := mh.spans[0].byteoffset() + int64(slot)*mh.objsize
	return unsafe.Add(base, off)
}

// free clear the slot of ptr, return false if it was not live. ptr
// must be owned by mh.
func (mh *MiniHeap) free(base, ptr unsafe.Pointer) bool {
	slot, ok := mh.slotof(base, ptr)
	if !ok {
		panicerr("free %p not owned by %v", ptr, mh)
	} else if !mh.bitmap.Test(slot) {
		return false
	}
	mh.bitmap.Clear(slot)
	mh.inuse--
	return true
}

// isfree return whether ptr's slot is clear.
func (mh *MiniHeap) isfree(base, ptr unsafe.Pointer) bool {
	slot, ok := mh.slotof(base, ptr)
	return ok && !mh.bitmap.Test(slot)
}

// consume copy every live object of src into the same slot of mh,
// and take over src's spans. The bitmaps must be disjoint.
func (mh *MiniHeap) consume(base unsafe.Pointer, src *MiniHeap) {
	if mh == src {
		panicerr("miniheap %v cannot consume itself", mh)
	} else if mh.Ismeshed() || src.Ismeshed() {
		panicerr("consume %v <- %v: already meshed", mh, src)
	} else if mh.sizeclass != src.sizeclass || mh.maxcount != src.maxcount {
		panicerr("consume %v <- %v: size class mismatch", mh, src)
	} else if mh.bitmap.IntersectionCardinality(src.bitmap) != 0 {
		panicerr("consume %v <- %v: bitmaps overlap", mh, src)
	}

	dstaddr := unsafe.Add(base, mh.spans[0].byteoffset())
	srcaddr := unsafe.Add(base, src.spans[0].byteoffset())
	for slot, ok := src.bitmap.NextSet(0); ok; slot, ok = src.bitmap.NextSet(slot + 1) {
		off := int64(slot) * mh.objsize
		lib.Memcpy(unsafe.Add(dstaddr, off), unsafe.Add(srcaddr, off), int(mh.objsize))
	}
	mh.bitmap.InPlaceUnion(src.bitmap)
	mh.inuse += src.inuse
	mh.spans = append(mh.spans, src.spans...)

	src.meshedinto = mh
	src.bitmap.ClearAll()
	src.inuse = 0
}

// formeshed call fn for every span of the MiniHeap, own span first,
// stop early when fn returns true.
func (mh *MiniHeap) formeshed(fn func(s span) bool) {
	for _, s := range mh.spans {
		if fn(s) {
			return
		}
	}
}

// ismeshingcandidate is false for large, meshed, empty and full
// MiniHeaps, and for those at mesh depth or above the occupancy
// cutoff.
func (mh *MiniHeap) ismeshingcandidate(maxmeshes int64, cutoff float64) bool {
	if mh.Islarge() || mh.Ismeshed() || mh.Isempty() || mh.Isfull() {
		return false
	} else if mh.Meshcount() >= maxmeshes {
		return false
	}
	return float64(mh.inuse)/float64(mh.maxcount) <= cutoff
}

func (mh *MiniHeap) String() string {
	return fmt.Sprintf(
		"miniheap{id:%v class:%v %v/%v meshes:%v}",
		mh.id, mh.sizeclass, mh.inuse, mh.maxcount, len(mh.spans))
}

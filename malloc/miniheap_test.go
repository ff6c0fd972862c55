package malloc

import "testing"
import "unsafe"

import "github.com/bnclabs/gomesh/lib"

// testbase return a page-backed buffer standing in for the arena.
func testbase(npages int64) ([]byte, unsafe.Pointer) {
	buf := make([]byte, npages*PageSize)
	return buf, unsafe.Pointer(&buf[0])
}

func TestMiniheapMalloc(t *testing.T) {
	_, base := testbase(4)
	mh := newminiheap(span{offset: 1, npages: 1}, 0, 64, 64)

	ptrs := make([]unsafe.Pointer, 0, 64)
	for i := 0; i < 64; i++ {
		ptr := mh.mallocslot(base)
		if ptr == nil {
			t.Fatalf("unexpected nil at %v", i)
		}
		expected := uintptr(base) + uintptr(PageSize) + uintptr(i*64)
		if uintptr(ptr) != expected {
			t.Errorf("expected %x, got %x", expected, uintptr(ptr))
		}
		ptrs = append(ptrs, ptr)
	}
	if !mh.Isfull() {
		t.Errorf("expected full miniheap")
	} else if ptr := mh.mallocslot(base); ptr != nil {
		t.Errorf("expected nil, got %p", ptr)
	}

	if mh.free(base, ptrs[10]) == false {
		t.Errorf("expected free")
	} else if mh.isfree(base, ptrs[10]) == false {
		t.Errorf("expected slot to be clear")
	} else if mh.free(base, ptrs[10]) {
		t.Errorf("unexpected double free")
	} else if x := mh.Inusecount(); x != 63 {
		t.Errorf("expected %v, got %v", 63, x)
	}
	// freed slot is reused.
	if ptr := mh.mallocslot(base); ptr != ptrs[10] {
		t.Errorf("expected %p, got %p", ptrs[10], ptr)
	}

	if !mh.owns(base, ptrs[5]) {
		t.Errorf("expected %p to be owned", ptrs[5])
	} else if mh.owns(base, unsafe.Add(ptrs[5], 8)) {
		t.Errorf("unexpected owner for interior pointer")
	} else if mh.owns(base, base) {
		t.Errorf("unexpected owner outside span")
	}

	// panic cases
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		mh.free(base, unsafe.Add(ptrs[0], 8)) // unaligned
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		mh.free(base, base) // outside span
	}()
}

func TestMiniheapConsume(t *testing.T) {
	buf, base := testbase(2)
	dst := newminiheap(span{offset: 0, npages: 1}, 3, 256, 16)
	src := newminiheap(span{offset: 1, npages: 1}, 3, 256, 16)

	// dst holds even slots, src holds odd slots.
	dptrs, sptrs := make([]unsafe.Pointer, 16), make([]unsafe.Pointer, 16)
	for i := 0; i < 16; i++ {
		dptrs[i], sptrs[i] = dst.mallocslot(base), src.mallocslot(base)
		lib.Memset(dptrs[i], byte(i), 256)
		lib.Memset(sptrs[i], byte(100+i), 256)
	}
	for i := 0; i < 16; i++ {
		if i%2 == 0 {
			src.free(base, sptrs[i])
		} else {
			dst.free(base, dptrs[i])
		}
	}

	dst.consume(base, src)

	if !src.Ismeshed() || src.meshedinto != dst {
		t.Errorf("expected src meshed into dst")
	} else if x := dst.Meshcount(); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	} else if x := dst.Inusecount(); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	} else if !dst.Isfull() {
		t.Errorf("expected full")
	}
	// every object is now in dst's span at its own slot.
	dbytes := buf[:PageSize]
	for i := 0; i < 16; i++ {
		expected := byte(i)
		if i%2 == 1 {
			expected = byte(100 + i)
		}
		for _, c := range dbytes[i*256 : (i+1)*256] {
			if c != expected {
				t.Fatalf("slot %v: expected %v, got %v", i, expected, c)
			}
		}
	}
	// src's span resolves to slots of dst.
	if !dst.owns(base, sptrs[3]) {
		t.Errorf("expected dst to own %p", sptrs[3])
	}
	nspans := 0
	dst.formeshed(func(s span) bool {
		nspans++
		return false
	})
	if nspans != 2 {
		t.Errorf("expected %v, got %v", 2, nspans)
	}
	nspans = 0
	dst.formeshed(func(s span) bool {
		nspans++
		return true
	})
	if nspans != 1 {
		t.Errorf("expected early exit, got %v", nspans)
	}
}

func TestMiniheapConsumeOverlap(t *testing.T) {
	_, base := testbase(2)
	dst := newminiheap(span{offset: 0, npages: 1}, 3, 256, 16)
	src := newminiheap(span{offset: 1, npages: 1}, 3, 256, 16)
	dst.mallocslot(base)
	src.mallocslot(base)

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic")
		}
	}()
	dst.consume(base, src)
}

func TestMeshingCandidate(t *testing.T) {
	_, base := testbase(1)
	mh := newminiheap(span{offset: 0, npages: 1}, 0, 256, 16)
	if mh.ismeshingcandidate(8, 0.8) {
		t.Errorf("empty miniheap is not a candidate")
	}
	for i := 0; i < 8; i++ {
		mh.mallocslot(base)
	}
	if !mh.ismeshingcandidate(8, 0.8) {
		t.Errorf("half full miniheap is a candidate")
	} else if mh.ismeshingcandidate(8, 0.25) {
		t.Errorf("occupancy above cutoff")
	} else if mh.ismeshingcandidate(1, 0.8) {
		t.Errorf("mesh depth at limit")
	}

	large := newminiheap(span{offset: 0, npages: 8}, -1, 8*PageSize, 1)
	if large.ismeshingcandidate(MaxMeshes, 1.0) {
		t.Errorf("large miniheap is never a candidate")
	}
	large.mallocslot(base)
	if large.ismeshingcandidate(MaxMeshes, 1.0) {
		t.Errorf("large miniheap is never a candidate")
	} else if !large.Islarge() {
		t.Errorf("expected large")
	}
}

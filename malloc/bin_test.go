package malloc

import "testing"
import "unsafe"

func TestBinTiers(t *testing.T) {
	_, base := testbase(16)
	b := newbin(2, 512, 2)
	if b.objcount != 8 || b.spanpages != 1 {
		t.Fatalf("unexpected geometry %v %v", b.objcount, b.spanpages)
	}

	if mh := b.alloc(); mh != nil {
		t.Errorf("expected nil, got %v", mh)
	}
	mhs := make([]*MiniHeap, 0)
	for i := int64(0); i < 4; i++ {
		mh := newminiheap(span{offset: i, npages: 1}, 2, b.objsize, b.objcount)
		b.add(mh)
		mhs = append(mhs, mh)
	}
	if x := len(b.tiers[tierempty]); x != 4 {
		t.Errorf("expected %v, got %v", 4, x)
	}

	// fill mhs[0], half fill mhs[1]
	ptrs := make([]unsafe.Pointer, 0)
	for i := 0; i < 8; i++ {
		ptrs = append(ptrs, mhs[0].mallocslot(base))
		b.postalloc(mhs[0])
	}
	for i := 0; i < 4; i++ {
		mhs[1].mallocslot(base)
		b.postalloc(mhs[1])
	}
	if mhs[0].tier != tierfull {
		t.Errorf("expected full tier, got %v", mhs[0].tier)
	} else if mhs[1].tier != tierpartial {
		t.Errorf("expected partial tier, got %v", mhs[1].tier)
	} else if x := b.partialsize(); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	} else if x := b.nonemptycount(); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	} else if x := b.allocatedcount(); x != 12 {
		t.Errorf("expected %v, got %v", 12, x)
	}
	// partial is preferred over empty
	if mh := b.alloc(); mh != mhs[1] {
		t.Errorf("expected %v, got %v", mhs[1], mh)
	}

	mhs[0].free(base, ptrs[0])
	if b.postfree(mhs[0], mhs[0].Inusecount()) {
		t.Errorf("unexpected flush")
	} else if mhs[0].tier != tierpartial {
		t.Errorf("expected partial tier, got %v", mhs[0].tier)
	}

	// third empty miniheap crosses maxempty
	for _, ptr := range ptrs[1:] {
		mhs[0].free(base, ptr)
	}
	if !b.postfree(mhs[0], 0) {
		t.Errorf("expected flush")
	}
	flushed := b.flush()
	if len(flushed) != 3 {
		t.Errorf("expected %v, got %v", 3, len(flushed))
	}
	for _, mh := range flushed {
		if mh.tier != tiernone {
			t.Errorf("expected detached %v", mh)
		}
	}
	if x := b.count(); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		b.postfree(mhs[1], 0)
	}()
}

func TestBinRemove(t *testing.T) {
	_, base := testbase(8)
	b := newbin(0, 16, 16)
	mhs := make([]*MiniHeap, 0)
	for i := int64(0); i < 5; i++ {
		mh := newminiheap(span{offset: i, npages: 1}, 0, b.objsize, b.objcount)
		mh.mallocslot(base)
		b.add(mh)
		mhs = append(mhs, mh)
	}
	b.remove(mhs[1])
	b.remove(mhs[4])
	b.remove(mhs[4]) // no-op
	if x := b.partialsize(); x != 3 {
		t.Errorf("expected %v, got %v", 3, x)
	}
	for i, mh := range b.tiers[tierpartial] {
		if mh.tieridx != i {
			t.Errorf("expected %v, got %v", i, mh.tieridx)
		} else if mh == mhs[1] || mh == mhs[4] {
			t.Errorf("unexpected %v", mh)
		}
	}

	candidates := b.candidates(8, 0.8)
	if len(candidates) != 3 {
		t.Errorf("expected %v, got %v", 3, len(candidates))
	}
}

package malloc

// bin holds MiniHeaps of one size class in three tiers, empty,
// partial and full. Must be accessed with the heap lock held.
type bin struct {
	sizeclass int
	objsize   int64
	objcount  int64
	spanpages int64
	maxempty  int64
	tiers     [3][]*MiniHeap
}

func newbin(sizeclass int, objsize, maxempty int64) *bin {
	spanpages, objcount := spangeometry(objsize)
	return &bin{
		sizeclass: sizeclass,
		objsize:   objsize,
		objcount:  objcount,
		spanpages: spanpages,
		maxempty:  maxempty,
	}
}

func tierof(mh *MiniHeap) int {
	if mh.Isempty() {
		return tierempty
	} else if mh.Isfull() {
		return tierfull
	}
	return tierpartial
}

// add a fresh MiniHeap into its tier.
func (b *bin) add(mh *MiniHeap) {
	if mh.sizeclass != b.sizeclass {
		panicerr("bin %v cannot hold %v", b.sizeclass, mh)
	} else if mh.tier != tiernone {
		panicerr("miniheap %v already in a bin", mh)
	}
	b.push(tierof(mh), mh)
}

func (b *bin) push(tier int, mh *MiniHeap) {
	mh.tier, mh.tieridx = tier, len(b.tiers[tier])
	b.tiers[tier] = append(b.tiers[tier], mh)
}

// remove mh from its tier, swapping the last entry into its place.
func (b *bin) remove(mh *MiniHeap) {
	if mh.tier == tiernone {
		return
	}
	list := b.tiers[mh.tier]
	last := list[len(list)-1]
	list[mh.tieridx], last.tieridx = last, mh.tieridx
	list[len(list)-1] = nil
	b.tiers[mh.tier] = list[:len(list)-1]
	mh.tier, mh.tieridx = tiernone, -1
}

// retier move mh to the tier matching its occupancy.
func (b *bin) retier(mh *MiniHeap) {
	if tier := tierof(mh); tier != mh.tier {
		b.remove(mh)
		b.push(tier, mh)
	}
}

// alloc return a MiniHeap with a free slot, partial ones first,
// nil if a new span is needed.
func (b *bin) alloc() *MiniHeap {
	if n := len(b.tiers[tierpartial]); n > 0 {
		return b.tiers[tierpartial][n-1]
	} else if n := len(b.tiers[tierempty]); n > 0 {
		return b.tiers[tierempty][n-1]
	}
	return nil
}

func (b *bin) postalloc(mh *MiniHeap) {
	b.retier(mh)
}

// postfree re-tier mh after a free, return true when the bin holds
// more empty spans than it is allowed to keep.
func (b *bin) postfree(mh *MiniHeap, remaining int64) bool {
	if remaining != mh.inuse {
		panicerr("postfree %v: remaining %v out of sync", mh, remaining)
	}
	b.retier(mh)
	return int64(len(b.tiers[tierempty])) > b.maxempty
}

// flush detach every empty MiniHeap, caller returns their spans to
// the arena.
func (b *bin) flush() []*MiniHeap {
	empties := b.tiers[tierempty]
	for _, mh := range empties {
		mh.tier, mh.tieridx = tiernone, -1
	}
	b.tiers[tierempty] = nil
	return empties
}

// partialsize number of MiniHeaps that are neither empty nor full.
func (b *bin) partialsize() int {
	return len(b.tiers[tierpartial])
}

func (b *bin) nonemptycount() int64 {
	return int64(len(b.tiers[tierpartial]) + len(b.tiers[tierfull]))
}

func (b *bin) allocatedcount() (n int64) {
	for _, mh := range b.tiers[tierpartial] {
		n += mh.inuse
	}
	return n + int64(len(b.tiers[tierfull]))*b.objcount
}

// candidates return partial MiniHeaps eligible for meshing.
func (b *bin) candidates(maxmeshes int64, cutoff float64) []*MiniHeap {
	out := make([]*MiniHeap, 0, len(b.tiers[tierpartial]))
	for _, mh := range b.tiers[tierpartial] {
		if mh.ismeshingcandidate(maxmeshes, cutoff) {
			out = append(out, mh)
		}
	}
	return out
}

func (b *bin) count() int {
	return len(b.tiers[tierempty]) + len(b.tiers[tierpartial]) + len(b.tiers[tierfull])
}

package malloc

import "sync/atomic"

const regchunksize = 4096

type regchunk [regchunksize]atomic.Pointer[MiniHeap]

// registry maps miniheap ids to miniheaps. Ids are 32-bit so that
// the arena's page table stays compact, zero is never handed out.
// Lookups are lock free, track and untrack need the heap lock.
type registry struct {
	chunks  []atomic.Pointer[regchunk]
	nextid  uint32
	freeids []uint32
	count   int64
	hwm     int64
}

func newregistry(maxminiheaps int64) *registry {
	nchunks := (maxminiheaps / regchunksize) + 1
	return &registry{
		chunks: make([]atomic.Pointer[regchunk], nchunks),
		nextid: 1,
	}
}

// track assign an id to mh and make it visible to lookups.
func (reg *registry) track(mh *MiniHeap) uint32 {
	var id uint32
	if n := len(reg.freeids); n > 0 {
		id, reg.freeids = reg.freeids[n-1], reg.freeids[:n-1]
	} else {
		id = reg.nextid
		reg.nextid++
	}
	ci := int(id / regchunksize)
	if ci >= len(reg.chunks) {
		panicerr("registry exhausted at id %v", id)
	}
	chunk := reg.chunks[ci].Load()
	if chunk == nil {
		chunk = new(regchunk)
		reg.chunks[ci].Store(chunk)
	}
	chunk[id%regchunksize].Store(mh)
	mh.id = id
	reg.count++
	if reg.count > reg.hwm {
		reg.hwm = reg.count
	}
	return id
}

// untrack release mh's id for reuse.
func (reg *registry) untrack(mh *MiniHeap) {
	if mh.id == 0 {
		panicerr("untrack on untracked miniheap %v", mh)
	}
	chunk := reg.chunks[mh.id/regchunksize].Load()
	if chunk[mh.id%regchunksize].Load() != mh {
		panicerr("registry mismatch for id %v", mh.id)
	}
	chunk[mh.id%regchunksize].Store(nil)
	reg.freeids = append(reg.freeids, mh.id)
	mh.id = 0
	reg.count--
}

// miniheapforid return the miniheap registered under id, nil if
// none.
func (reg *registry) miniheapforid(id uint32) *MiniHeap {
	ci := int(id / regchunksize)
	if id == 0 || ci >= len(reg.chunks) {
		return nil
	}
	chunk := reg.chunks[ci].Load()
	if chunk == nil {
		return nil
	}
	return chunk[id%regchunksize].Load()
}

func (reg *registry) miniheapidfor(mh *MiniHeap) uint32 {
	return mh.id
}

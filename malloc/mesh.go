package malloc

import "sync/atomic"
import "time"

// maybemesh run a mesh pass if the check period allows it. Called
// without the lock.
func (h *GlobalHeap) maybemesh() {
	if !h.meshenabled || atomic.LoadInt64(&h.meshperiod) <= 0 {
		return
	} else if !h.limiter.Allow() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.released {
		h.meshallsizeclasses(false)
	}
}

// Compact run a full mesh pass, ignoring whether the last pass was
// effective, followed by an aggressive scavenge. Meshing is skipped
// if "mesh.enabled" is false. Concurrent calls share the same pass.
// Return the number of spans meshed away.
func (h *GlobalHeap) Compact() int {
	v, _, _ := h.compacts.Do("compact", func() (interface{}, error) {
		h.mu.Lock()
		defer h.mu.Unlock()

		if h.released {
			return 0, ErrorArenaReleased
		}
		h.n_compacts++
		n := 0
		if h.meshenabled {
			n = h.meshallsizeclasses(true)
		}
		if err := h.arena.scavenge(true); err != nil {
			warnf("%v compact scavenge: %v\n", h.logprefix, err)
		}
		return n, nil
	})
	return v.(int)
}

// Scavenge return the physical pages of all freed spans to the OS.
func (h *GlobalHeap) Scavenge() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return ErrorArenaReleased
	}
	return h.arena.scavenge(true)
}

// meshallsizeclasses pair and merge spans across every size class,
// return the number of merges. Called with the lock held.
func (h *GlobalHeap) meshallsizeclasses(force bool) int {
	if err := h.arena.scavenge(false); err != nil {
		warnf("%v scavenge: %v\n", h.logprefix, err)
	}
	if !force && !h.lastmesheffective.Load() {
		return 0
	} else if h.arena.abovemeshthreshold() {
		debugf("%v above mesh threshold, skip pass\n", h.logprefix)
		return 0
	}

	start := time.Now()
	for _, b := range h.bins {
		h.flushbinlocked(b)
	}

	pairs := make([]meshpair, 0, 64)
	for _, b := range h.bins {
		if b.partialsize() < 2 {
			continue
		}
		candidates := b.candidates(h.maxmeshes, h.occupancy)
		shiftedsplitting(h.rng, candidates, int(h.probes), func(x, y *MiniHeap) bool {
			if !x.ismeshingcandidate(h.maxmeshes, h.occupancy) {
				return false
			} else if !y.ismeshingcandidate(h.maxmeshes, h.occupancy) {
				return false
			}
			pairs = append(pairs, meshpair{dst: x, src: y})
			return true
		})
	}

	h.n_meshpasses++
	h.lastmesheffective.Store(int64(len(pairs)) > h.effectivepairs)
	if len(pairs) == 0 {
		h.lastmesh = time.Now()
		return 0
	}

	nmeshed := 0
	for _, pair := range pairs {
		p, ok := orderpair(pair.dst, pair.src, h.maxmeshes)
		if !ok {
			continue
		}
		h.meshlocked(p.dst, p.src)
		nmeshed++
	}
	h.n_meshes += int64(nmeshed)
	if err := h.arena.scavenge(false); err != nil {
		warnf("%v scavenge: %v\n", h.logprefix, err)
	}

	h.lastmesh = time.Now()
	h.h_meshpass.Add(int64(h.lastmesh.Sub(start) / time.Microsecond))
	h.av_pairs.Add(int64(nmeshed))
	debugf("%v meshed %v of %v pairs\n", h.logprefix, nmeshed, len(pairs))
	return nmeshed
}

// meshlocked fold src into dst. src's pages are frozen read-only,
// its live objects copied into dst, and its virtual spans re-pointed
// at dst's physical pages. Called with the lock held.
func (h *GlobalHeap) meshlocked(dst, src *MiniHeap) {
	if dst.Ismeshed() {
		panicerr("%v mesh into meshed %v", h.logprefix, dst)
	} else if dst.Meshcount()+src.Meshcount() > MaxMeshes {
		panicerr("%v mesh %v <- %v exceeds %v", h.logprefix, dst, src, MaxMeshes)
	}

	var err error
	base, size, primary := h.arena.begin(), dst.spansize(), dst.spans[0]
	src.formeshed(func(s span) bool {
		err = h.arena.beginmesh(primary, s, size)
		return err != nil
	})
	if err != nil {
		panicerr("%v beginmesh %v <- %v: %v", h.logprefix, dst, src, err)
	}

	b := h.bins[src.sizeclass]
	b.remove(src)
	dst.consume(base, src)

	id := h.registry.miniheapidfor(dst)
	src.formeshed(func(s span) bool {
		h.arena.trackspan(s, id)
		err = h.arena.finalizemesh(primary, s, size)
		return err != nil
	})
	if err != nil {
		panicerr("%v finalizemesh %v <- %v: %v", h.logprefix, dst, src, err)
	}

	b.postfree(dst, dst.Inusecount())
	h.registry.untrack(src)
}

package malloc

import "fmt"
import "strings"
import "sync/atomic"

import humanize "github.com/dustin/go-humanize"
import "github.com/bnclabs/gomesh/lib"

// Stats implement api.Mallocer interface.
func (h *GlobalHeap) Stats() map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats()
}

func (h *GlobalHeap) stats() map[string]interface{} {
	stats := map[string]interface{}{
		"n_mallocs":      h.n_mallocs,
		"n_frees":        h.n_frees,
		"n_largemallocs": h.n_largemallocs,
		"n_untracked":    atomic.LoadInt64(&h.n_untracked),
		"n_meshes":       h.n_meshes,
		"n_meshpasses":   h.n_meshpasses,
		"n_compacts":     h.n_compacts,
		"mh_allocs":      h.mh_allocs,
		"mh_frees":       h.mh_frees,
		"mh_count":       h.registry.count,
		"mh_hwm":         h.registry.hwm,
		"mesh.period":    atomic.LoadInt64(&h.meshperiod),
		"mesh.effective": h.lastmesheffective.Load(),
		"h_meshpass":     h.h_meshpass.Fullstats(),
		"av_pairs":       h.av_pairs.Fullstats(),
		"active":         h.activebytes(),
		"allocated":      h.allocatedbytes(),
	}
	if !h.lastmesh.IsZero() {
		stats["lastmesh"] = h.lastmesh.UnixNano()
	}
	if !h.released {
		h.arena.stats(stats)
	}
	return stats
}

// Log statistics, what can be "stats", "sizeclasses" or "all". If
// humanize is true, byte counts are logged in readable form.
func (h *GlobalHeap) Log(what string, humanize bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if what == "stats" || what == "all" {
		stats := h.stats()
		if humanize {
			for _, key := range bytestats {
				if v, ok := stats[key]; ok {
					stats[key] = humanizebytes(v.(int64))
				}
			}
		}
		infof("%v stats %v\n", h.logprefix, lib.Prettystats(stats, false))
	}
	if what == "sizeclasses" || what == "all" {
		lines := make([]string, 0, len(h.bins))
		for _, b := range h.bins {
			if b.count() == 0 {
				continue
			}
			size, used := b.objsize, b.allocatedcount()*b.objsize
			if humanize {
				line := fmt.Sprintf(
					"  %v: spans:%v partial:%v allocated:%v", humanizebytes(size),
					b.count(), b.partialsize(), humanizebytes(used))
				lines = append(lines, line)
			} else {
				line := fmt.Sprintf(
					"  %v: spans:%v partial:%v allocated:%v",
					size, b.count(), b.partialsize(), used)
				lines = append(lines, line)
			}
		}
		infof("%v sizeclasses\n%v\n", h.logprefix, strings.Join(lines, "\n"))
	}
}

var bytestats = []string{
	"active", "allocated", "arena.capacity", "arena.used", "arena.dirty",
}

func humanizebytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

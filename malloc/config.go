package malloc

import "fmt"

import "github.com/bnclabs/gomesh/lib"
import sigar "github.com/cloudfoundry/gosigar"

// PageSize of the arena, every span is a multiple of PageSize.
const PageSize = int64(4096)

// Alignment of size classes, all small objects are Alignment aligned.
const Alignment = int64(16)

// MinSize smallest object size served by the heap.
const MinSize = int64(16)

// MaxSize largest small object, allocations larger than MaxSize are
// served as large objects with one object per span.
const MaxSize = int64(16 * 1024)

// MinObjects minimum number of slots in a small-object span.
const MinObjects = int64(8)

// MaxObjects maximum number of slots in a small-object span.
const MaxObjects = int64(256)

// MaxMeshes upper limit for "mesh.maxmeshes".
const MaxMeshes = int64(256)

// Maxarenasize maximum size of a memory arena.
const Maxarenasize = int64(1024 * 1024 * 1024 * 1024) // 1TB

// Defaultsettings for a mesh heap.
//
// "arena.capacity" (int64, default: <total system memory>)
//		Size of the virtual address space reserved for the heap, in
//		bytes. Physical memory is committed only when touched.
//
// "arena.maxdirty" (int64, default: 64MB)
//		Bytes of freed spans kept resident before a non-aggressive
//		scavenge returns them to the OS.
//
// "bin.maxempty" (int64, default: 16)
//		Number of empty spans a size class may hold before it is
//		flushed.
//
// "mesh.enabled" (bool, default: true)
//		When false, spans are never meshed and Compact only
//		scavenges.
//
// "mesh.checkperiod" (int64, default: 100)
//		Minimum time, in milliseconds, between two mesh passes
//		triggered by free. Zero disables meshing on free.
//
// "mesh.effectivepairs" (int64, default: 256)
//		A pass that finds more pairs than this is considered
//		effective and the next pass is allowed to run.
//
// "mesh.maxmeshes" (int64, default: 8)
//		Maximum number of spans that can be folded into a single
//		span.
//
// "mesh.maxpages" (int64, default: 30000)
//		Meshing stops once these many pages are aliased, each meshed
//		page costs a kernel mapping.
//
// "mesh.probes" (int64, default: 64)
//		Number of candidates probed for every span while pairing.
//
// "mesh.occupancy" (float64, default: 0.8)
//		Spans fuller than this fraction are not meshing candidates.
//
// "mesh.seed" (int64, default: 0)
//		Seed for the pairing PRNG, zero seeds from the clock.
//
// "sizeclass.utilization" (float64, default: 0.875)
//		Expected ratio of requested size to size-class size, controls
//		the spacing between size classes.
func Defaultsettings() lib.Settings {
	total, _, _ := getsysmem()
	capacity := int64(total)
	if capacity > Maxarenasize {
		capacity = Maxarenasize
	}
	capacity = (capacity / PageSize) * PageSize
	return lib.Settings{
		"arena.capacity":        capacity,
		"arena.maxdirty":        int64(64 * 1024 * 1024),
		"bin.maxempty":          int64(16),
		"mesh.enabled":          true,
		"mesh.checkperiod":      int64(100),
		"mesh.effectivepairs":   int64(256),
		"mesh.maxmeshes":        int64(8),
		"mesh.maxpages":         int64(30000),
		"mesh.probes":           int64(64),
		"mesh.occupancy":        float64(0.8),
		"mesh.seed":             int64(0),
		"sizeclass.utilization": float64(0.875),
	}
}

func validatesettings(setts lib.Settings) {
	capacity := setts.Int64("arena.capacity")
	if capacity > Maxarenasize {
		panicerr("arena cannot exceed %v bytes (%v)", Maxarenasize, capacity)
	} else if capacity < PageSize || capacity%PageSize != 0 {
		panicerr("arena.capacity %v not a multiple of %v", capacity, PageSize)
	}
	if x := setts.Int64("mesh.maxmeshes"); x < 1 || x > MaxMeshes {
		panicerr("mesh.maxmeshes %v out of range [1,%v]", x, MaxMeshes)
	}
	if x := setts.Float64("mesh.occupancy"); x <= 0 || x > 1 {
		panicerr("mesh.occupancy %v out of range (0,1]", x)
	}
	if x := setts.Float64("sizeclass.utilization"); x <= 0 || x >= 1 {
		panicerr("sizeclass.utilization %v out of range (0,1)", x)
	}
	if x := setts.Int64("mesh.probes"); x < 1 {
		panicerr("mesh.probes %v should be positive", x)
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		panic(fmt.Errorf("getsysmem(): %v", err))
	}
	return mem.Total, mem.Used, mem.Free
}

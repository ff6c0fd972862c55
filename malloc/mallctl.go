package malloc

import "encoding/binary"
import "os"
import "sync/atomic"

import sigar "github.com/cloudfoundry/gosigar"

// Mallctl read and write heap properties. Values are native-endian
// uint64 in oldp and newp, oldp must be at least 8 bytes long.
//
// "mesh.check_period"
//		Read current period in milliseconds into oldp, set new period
//		from newp. Zero disables meshing on free. oldp is filled even
//		when newp is too short.
//
// "mesh.scavenge"
//		Return physical pages of freed spans to the OS.
//
// "mesh.compact"
//		Run a full mesh pass and scavenge, number of spans meshed is
//		written to oldp.
//
// "stats.resident"
//		Resident set size of the process.
//
// "stats.active"
//		Bytes in spans that hold at least one live object.
//
// "stats.allocated"
//		Bytes of live objects.
//
// Unknown names are ignored.
func (h *GlobalHeap) Mallctl(name string, oldp, newp []byte) error {
	if len(oldp) < 8 {
		return ErrorMallctlBuffer
	}

	switch name {
	case "mesh.check_period":
		old := atomic.LoadInt64(&h.meshperiod)
		binary.NativeEndian.PutUint64(oldp, uint64(old))
		if len(newp) < 8 {
			return ErrorMallctlBuffer
		}
		period := int64(binary.NativeEndian.Uint64(newp))
		old = atomic.SwapInt64(&h.meshperiod, period)
		h.limiter.SetLimit(periodlimit(period))
		binary.NativeEndian.PutUint64(oldp, uint64(old))
		infof("%v mesh check period %vms -> %vms\n", h.logprefix, old, period)

	case "mesh.scavenge":
		return h.Scavenge()

	case "mesh.compact":
		n := h.Compact()
		binary.NativeEndian.PutUint64(oldp, uint64(n))

	case "arena":

	case "stats.resident":
		binary.NativeEndian.PutUint64(oldp, getrss())

	case "stats.active":
		h.mu.Lock()
		active := h.activebytes()
		h.mu.Unlock()
		binary.NativeEndian.PutUint64(oldp, uint64(active))

	case "stats.allocated":
		h.mu.Lock()
		allocated := h.allocatedbytes()
		h.mu.Unlock()
		binary.NativeEndian.PutUint64(oldp, uint64(allocated))
	}
	return nil
}

func (h *GlobalHeap) activebytes() (n int64) {
	for _, b := range h.bins {
		n += b.nonemptycount() * b.objsize * b.objcount
	}
	return n
}

func (h *GlobalHeap) allocatedbytes() (n int64) {
	for _, b := range h.bins {
		n += b.allocatedcount() * b.objsize
	}
	return n
}

func getrss() uint64 {
	mem := sigar.ProcMem{}
	if err := mem.Get(os.Getpid()); err != nil {
		warnf("getrss(): %v\n", err)
		return 0
	}
	return mem.Resident
}

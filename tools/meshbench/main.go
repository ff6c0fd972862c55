package main

import "fmt"
import "os"
import "flag"
import "time"
import "strings"
import "strconv"
import "net/http"
import "unsafe"
import "math/rand"
import "encoding/binary"

import "github.com/bnclabs/gomesh/lib"
import "github.com/bnclabs/gomesh/malloc"
import hm "github.com/dustin/go-humanize"
import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promhttp"

var options struct {
	size        [2]int // min, max
	n           int
	keep        float64
	capacity    int64
	seed        int64
	sizeclasses bool
	metrics     string
	log         bool
	mesh        bool
}

func argParse() {
	var size string

	flag.StringVar(&size, "size", "",
		"minsize,maxsize - allocate objects between [minsize,maxsize)")
	flag.IntVar(&options.n, "n", 1000000,
		"number of objects to allocate")
	flag.Float64Var(&options.keep, "keep", 0.25,
		"fraction of objects left live after the free phase")
	flag.Int64Var(&options.capacity, "capacity", 4*1024*1024*1024,
		"arena capacity in bytes")
	flag.Int64Var(&options.seed, "seed", 0,
		"seed for workload and pairing, 0 picks the clock")
	flag.BoolVar(&options.sizeclasses, "sizeclasses", false,
		"print size classes and their utilization, and exit")
	flag.StringVar(&options.metrics, "metrics", "",
		"serve prometheus metrics on this address after the run")
	flag.BoolVar(&options.log, "log", false,
		"enable malloc logging")
	flag.BoolVar(&options.mesh, "mesh", true,
		"mesh spans on compact, false to measure the baseline")
	flag.Parse()

	options.size = [2]int{16, 1024}
	if size != "" {
		var err error
		if options.size, err = parsesize(size); err != nil {
			fmt.Printf("invalid -size %q: %v\n", size, err)
			os.Exit(1)
		}
	}
	if options.seed == 0 {
		options.seed = time.Now().UnixNano()
	}
}

// parsesize parse "minsize,maxsize", objects are sized between
// [minsize,maxsize).
func parsesize(size string) ([2]int, error) {
	var minmax [2]int
	parts := strings.Split(size, ",")
	if len(parts) != 2 {
		return minmax, fmt.Errorf("expected minsize,maxsize")
	}
	for i, part := range parts {
		ln, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return minmax, err
		}
		minmax[i] = ln
	}
	if minmax[0] < 1 {
		return minmax, fmt.Errorf("minsize %v should be positive", minmax[0])
	} else if minmax[0] >= minmax[1] {
		return minmax, fmt.Errorf("minsize %v not less than maxsize %v", minmax[0], minmax[1])
	}
	return minmax, nil
}

func main() {
	argParse()
	if options.sizeclasses {
		tellutilization()
		return
	}
	if options.log {
		malloc.LogComponents("all")
	}

	arenasetts := lib.Settings{"capacity": options.capacity}
	meshsetts := lib.Settings{
		"enabled":     options.mesh,
		"checkperiod": int64(0),
		"seed":        options.seed,
	}
	setts := make(lib.Settings).Mixin(
		arenasetts.AddPrefix("arena."), meshsetts.AddPrefix("mesh."))
	heap, err := malloc.NewGlobalHeap("meshbench", setts)
	if err != nil {
		fmt.Printf("NewGlobalHeap(): %v\n", err)
		return
	}
	defer heap.Release()

	rnd := rand.New(rand.NewSource(options.seed))
	now := time.Now()
	ptrs, sizes := fragment(heap, rnd)
	fmt.Printf("Took %v to fragment %v objects\n", time.Since(now), options.n)
	printmemory(heap, "fragmented")

	now = time.Now()
	nmeshed := heap.Compact()
	fmt.Printf("Took %v to mesh %v spans\n", time.Since(now), nmeshed)
	printmemory(heap, "compacted")

	if nbad := verify(ptrs, sizes); nbad > 0 {
		fmt.Printf("%v objects corrupted after compaction\n", nbad)
	}
	heap.Log("stats", true)

	if options.metrics != "" {
		prometheus.MustRegister(malloc.NewCollector(heap))
		http.Handle("/metrics", promhttp.Handler())
		fmt.Printf("serving metrics on %v\n", options.metrics)
		if err := http.ListenAndServe(options.metrics, nil); err != nil {
			fmt.Printf("ListenAndServe(): %v\n", err)
		}
	}
}

// fragment allocate options.n objects, then free all but
// options.keep of them at random.
func fragment(heap *malloc.GlobalHeap, rnd *rand.Rand) ([]unsafe.Pointer, []int64) {
	ptrs := make([]unsafe.Pointer, 0, options.n)
	sizes := make([]int64, 0, options.n)
	min, max := options.size[0], options.size[1]
	for i := 0; i < options.n; i++ {
		size := int64(rnd.Intn(max-min) + min)
		ptr := heap.Malloc(size)
		if ptr == nil {
			fmt.Printf("allocation failed after %v objects\n", i)
			break
		}
		lib.Memset(ptr, byte(i), int(size))
		ptrs, sizes = append(ptrs, ptr), append(sizes, size)
	}

	live, livesizes := ptrs[:0], sizes[:0]
	for i, ptr := range ptrs {
		if rnd.Float64() < options.keep {
			live, livesizes = append(live, ptr), append(livesizes, sizes[i])
			continue
		}
		heap.Free(ptr)
	}
	return live, livesizes
}

// verify count objects whose content changed, the i-th live object
// was filled with the byte of its allocation index, so compare
// within the object only.
func verify(ptrs []unsafe.Pointer, sizes []int64) (nbad int) {
	for i, ptr := range ptrs {
		block := lib.Bytes(ptr, int(sizes[i]))
		for _, c := range block {
			if c != block[0] {
				nbad++
				break
			}
		}
	}
	return nbad
}

func printmemory(heap *malloc.GlobalHeap, what string) {
	oldp := make([]byte, 8)
	mallctl := func(name string) string {
		if err := heap.Mallctl(name, oldp, nil); err != nil {
			return err.Error()
		}
		return hm.Bytes(binary.NativeEndian.Uint64(oldp))
	}
	rss := mallctl("stats.resident")
	active := mallctl("stats.active")
	allocated := mallctl("stats.allocated")
	stats := heap.Stats()
	fmsg := "%v{rss:%v active:%v allocated:%v spans:%v meshed:%v}\n"
	fmt.Printf(fmsg, what, rss, active, allocated, stats["mh_count"], stats["meshed_pages"])
}

func tellutilization() {
	sizes := malloc.Sizeclasses(malloc.MinSize, malloc.MaxSize, 0.875)
	for i, size := range sizes[1:] {
		u := (float64(sizes[i]+sizes[i+1]) / 2.0) / float64(size)
		fmt.Printf("size %6v, util %.3f\n", size, u)
	}
	fmt.Printf("total %v size classes\n", len(sizes))
}

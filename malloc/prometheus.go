package malloc

import "github.com/prometheus/client_golang/prometheus"

// Collector export heap statistics to prometheus, values are read
// from the heap on every scrape.
type Collector struct {
	heap *GlobalHeap

	mallocs     *prometheus.Desc
	frees       *prometheus.Desc
	meshes      *prometheus.Desc
	meshpasses  *prometheus.Desc
	miniheaps   *prometheus.Desc
	active      *prometheus.Desc
	allocated   *prometheus.Desc
	meshedpages *prometheus.Desc
	dirty       *prometheus.Desc
}

// NewCollector for heap, register it with prometheus.MustRegister.
func NewCollector(heap *GlobalHeap) *Collector {
	labels := prometheus.Labels{"heap": heap.name}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("gomesh_"+name, help, nil, labels)
	}
	return &Collector{
		heap:        heap,
		mallocs:     desc("mallocs_total", "Total objects allocated"),
		frees:       desc("frees_total", "Total objects freed"),
		meshes:      desc("meshes_total", "Total spans meshed away"),
		meshpasses:  desc("mesh_passes_total", "Total mesh passes run"),
		miniheaps:   desc("miniheaps", "Spans currently tracked"),
		active:      desc("active_bytes", "Bytes in spans holding live objects"),
		allocated:   desc("allocated_bytes", "Bytes of live objects"),
		meshedpages: desc("meshed_pages", "Pages aliased onto another span"),
		dirty:       desc("dirty_bytes", "Freed bytes not yet returned to the OS"),
	}
}

// Describe implement prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mallocs
	ch <- c.frees
	ch <- c.meshes
	ch <- c.meshpasses
	ch <- c.miniheaps
	ch <- c.active
	ch <- c.allocated
	ch <- c.meshedpages
	ch <- c.dirty
}

// Collect implement prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.heap.Stats()
	metric := func(desc *prometheus.Desc, typ prometheus.ValueType, key string) {
		if v, ok := stats[key].(int64); ok {
			ch <- prometheus.MustNewConstMetric(desc, typ, float64(v))
		}
	}
	metric(c.mallocs, prometheus.CounterValue, "n_mallocs")
	metric(c.frees, prometheus.CounterValue, "n_frees")
	metric(c.meshes, prometheus.CounterValue, "n_meshes")
	metric(c.meshpasses, prometheus.CounterValue, "n_meshpasses")
	metric(c.miniheaps, prometheus.GaugeValue, "mh_count")
	metric(c.active, prometheus.GaugeValue, "active")
	metric(c.allocated, prometheus.GaugeValue, "allocated")
	metric(c.meshedpages, prometheus.GaugeValue, "meshed_pages")
	metric(c.dirty, prometheus.GaugeValue, "arena.dirty")
}

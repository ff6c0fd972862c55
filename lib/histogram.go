package lib

import "math"
import "strconv"

// HistogramInt64 bucketed histogram over int64 samples, along with
// running min, max, mean and deviation. Not thread safe.
type HistogramInt64 struct {
	AverageInt64
	buckets []int64
	from    int64
	till    int64
	width   int64
}

// NewhistorgramInt64 return a new histogram object, samples less than
// `from` are counted in the first bucket and samples greater than or
// equal to `till` are counted in the last bucket.
func NewhistorgramInt64(from, till, width int64) *HistogramInt64 {
	from, till = (from/width)*width, (till/width)*width
	h := &HistogramInt64{from: from, till: till, width: width}
	h.buckets = make([]int64, 1+((till-from)/width)+1)
	return h
}

// Add a sample to this histogram.
func (h *HistogramInt64) Add(sample int64) {
	h.AverageInt64.Add(sample)
	switch {
	case sample < h.from:
		h.buckets[0]++
	case sample >= h.till:
		h.buckets[len(h.buckets)-1]++
	default:
		h.buckets[((sample-h.from)/h.width)+1]++
	}
}

// Stats return cumulative counts keyed by bucket's lower bound, the
// overflow bucket is keyed as "+". Leading and trailing empty buckets
// are skipped.
func (h *HistogramInt64) Stats() map[string]int64 {
	m := make(map[string]int64)
	last := -1
	for i := len(h.buckets) - 1; i >= 0; i-- {
		if h.buckets[i] > 0 {
			last = i
			break
		}
	}
	cumm := int64(0)
	for j := 0; j <= last; j++ {
		cumm += h.buckets[j]
		if j == last {
			m["+"] = cumm
			continue
		}
		m[strconv.Itoa(int(h.from+(int64(j)*h.width)))] = cumm
	}
	return m
}

// Fullstats includes mean,variance,stddeviance in the Stats().
func (h *HistogramInt64) Fullstats() map[string]interface{} {
	hmap := make(map[string]interface{})
	for k, v := range h.Stats() {
		hmap[k] = v
	}
	stats := h.AverageInt64.Fullstats()
	stats["histogram"] = hmap
	return stats
}

// AverageInt64 compute statistical mean and variance over int64
// samples.
type AverageInt64 struct {
	n      int64
	minval int64
	maxval int64
	sum    int64
	sumsq  float64
	init   bool
}

// Add a sample.
func (av *AverageInt64) Add(sample int64) {
	av.n++
	av.sum += sample
	f := float64(sample)
	av.sumsq += f * f
	if !av.init || sample < av.minval {
		av.minval, av.init = sample, true
	}
	if av.maxval < sample {
		av.maxval = sample
	}
}

// Min return minimum value from sample.
func (av *AverageInt64) Min() int64 {
	return av.minval
}

// Max return maximum value from sample.
func (av *AverageInt64) Max() int64 {
	return av.maxval
}

// Samples return total number of samples in the set.
func (av *AverageInt64) Samples() int64 {
	return av.n
}

// Sum return the sum of all sample values.
func (av *AverageInt64) Sum() int64 {
	return av.sum
}

// Mean return the average value of all samples.
func (av *AverageInt64) Mean() int64 {
	if av.n == 0 {
		return 0
	}
	return int64(float64(av.sum) / float64(av.n))
}

// Variance return the squared deviation of a random sample from
// its mean.
func (av *AverageInt64) Variance() float64 {
	if av.n == 0 {
		return 0
	}
	nf, meanf := float64(av.n), float64(av.sum)/float64(av.n)
	return (av.sumsq / nf) - (meanf * meanf)
}

// SD return by how much the samples differ from the mean value of
// sample set.
func (av *AverageInt64) SD() float64 {
	return math.Sqrt(av.Variance())
}

// Fullstats return the accumulated figures as a map.
func (av *AverageInt64) Fullstats() map[string]interface{} {
	return map[string]interface{}{
		"samples":     av.Samples(),
		"min":         av.Min(),
		"max":         av.Max(),
		"mean":        av.Mean(),
		"variance":    av.Variance(),
		"stddeviance": av.SD(),
	}
}

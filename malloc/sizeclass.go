package malloc

import "sort"

import "github.com/bnclabs/gomesh/lib"

// Sizeclasses generate object sizes between minsize and maxsize, such
// that a request rounded up to its size class is expected to use
// `utilization` of the slot.
func Sizeclasses(minsize, maxsize int64, utilization float64) []int64 {
	if maxsize < minsize {
		panicerr("maxsize %v < minsize %v", maxsize, minsize)
	} else if (minsize % Alignment) != 0 {
		panicerr("minsize %v is not multiple of %v", minsize, Alignment)
	} else if (maxsize % Alignment) != 0 {
		panicerr("maxsize %v is not multiple of %v", maxsize, Alignment)
	}

	nextsize := func(from int64) int64 {
		addby := int64(float64(from) * (1.0 - utilization))
		if addby <= Alignment {
			addby = Alignment
		} else {
			addby = (addby / Alignment) * Alignment
		}
		return from + addby
	}

	sizes := make([]int64, 0, 64)
	for size := minsize; size < maxsize; size = nextsize(size) {
		sizes = append(sizes, size)
	}
	return append(sizes, maxsize)
}

// sizeclassof return the index of the smallest size class that can
// hold `size` bytes, `size` must not exceed the largest class.
func sizeclassof(sizes []int64, size int64) int {
	idx := sort.Search(len(sizes), func(i int) bool { return sizes[i] >= size })
	if idx == len(sizes) {
		panicerr("size %v exceeds largest size class %v", size, sizes[len(sizes)-1])
	}
	return idx
}

// spangeometry return the number of pages backing a span of objsize
// objects and the number of slots in it.
func spangeometry(objsize int64) (spanpages, objcount int64) {
	spanpages = lib.Ceil(objsize*MinObjects, PageSize)
	objcount = (spanpages * PageSize) / objsize
	if objcount > MaxObjects {
		objcount = MaxObjects
	}
	return spanpages, objcount
}

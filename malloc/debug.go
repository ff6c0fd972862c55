//go:build debug

package malloc

import "unsafe"

import "github.com/bnclabs/gomesh/lib"

// initblock poison fresh objects so that reads of uninitialized
// memory stand out.
func initblock(ptr unsafe.Pointer, size int64) {
	lib.Memset(ptr, 0xff, int(size))
}

func untrackedfree(logprefix string, ptr unsafe.Pointer) {
	warnf("%v free of untracked pointer %p\n", logprefix, ptr)
}

package api

import "unsafe"

// Mallocer interface for off-heap memory management.
type Mallocer interface {
	// Malloc allocate `size` bytes, return nil if size is zero or if
	// memory could not be allocated. Memory is always 16 byte
	// aligned.
	Malloc(size int64) unsafe.Pointer

	// Free memory returned by Malloc. Freeing nil or a pointer not
	// allocated by this Mallocer is a no-op.
	Free(ptr unsafe.Pointer)

	// Usablesize return the number of bytes usable at ptr, which can
	// be larger than the size passed to Malloc.
	Usablesize(ptr unsafe.Pointer) int64

	// Mallctl read and write named control properties.
	Mallctl(name string, oldp, newp []byte) error

	// Stats return memory accounting for the heap.
	Stats() map[string]interface{}

	// Release the heap and all its memory.
	Release()
}

package lib

import "unsafe"

// Memcpy copy memory block of length `ln` from `src` to `dst`. This
// function is useful if memory block is obtained outside golang runtime.
func Memcpy(dst, src unsafe.Pointer, ln int) int {
	if ln <= 0 {
		return 0
	}
	return copy(Bytes(dst, ln), Bytes(src, ln))
}

// Memset fill `ln` bytes starting from `dst` with `value`.
func Memset(dst unsafe.Pointer, value byte, ln int) {
	if ln <= 0 {
		return
	}
	block := Bytes(dst, ln)
	for i := range block {
		block[i] = value
	}
}

// Bytes view `ln` bytes starting from `ptr` as a byte-slice. The
// slice aliases the memory, it does not own it.
func Bytes(ptr unsafe.Pointer, ln int) []byte {
	return unsafe.Slice((*byte)(ptr), ln)
}

package malloc

import "errors"

// ErrorOutofMemory arena does not have enough free pages.
var ErrorOutofMemory = errors.New("malloc.outofmemory")

// ErrorMallctlBuffer Mallctl called with a missing or undersized
// buffer.
var ErrorMallctlBuffer = errors.New("malloc.mallctlbuffer")

// ErrorArenaReleased operation on a released heap.
var ErrorArenaReleased = errors.New("malloc.arenareleased")

// ErrorUnsupported meshing needs memfd and fixed shared mappings.
var ErrorUnsupported = errors.New("malloc.unsupported")

// Package malloc supplies off-heap memory management that compacts
// itself without moving objects, with a limited scope:
//
//  * Only Linux is supported, the arena is an in-memory file mapped
//    shared, so two virtual spans can point at the same physical
//    pages.
//  * Objects up to MaxSize are served from size classes, each span
//    holds between MinObjects and MaxObjects slots of one size.
//    Larger objects get a span of their own.
//  * Memory is never moved, pointers handed out by Malloc stay
//    valid until they are freed.
//  * Memory chunks allocated by this package are always 16 byte
//    aligned.
//
// GlobalHeap periodically looks for spans of the same size class
// whose live slots do not overlap. Such spans are meshed: live
// objects of one are copied into the same slots of the other, and
// its virtual pages are re-pointed at the other span's physical
// pages, releasing one span worth of physical memory. A span is
// read-only while it is being meshed and writes into it will fault.
// Applications that write into heap memory while other goroutines
// call Free should set "mesh.checkperiod" to zero, and call
// Compact() at quiescent points.
//
// Pointers into the heap are unsafe.Pointer values the Go garbage
// collector does not track, applications must free them explicitly.
package malloc

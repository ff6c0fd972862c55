// Package lib provide small, self-contained helpers shared by the heap
// packages: settings maps, statistical accumulators and routines to
// touch memory obtained outside the golang runtime.
package lib

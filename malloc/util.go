package malloc

import "fmt"

// panicerr is reserved for broken heap invariants, continuing past
// them would corrupt application memory.
func panicerr(fmsg string, args ...interface{}) {
	err := fmt.Errorf(fmsg, args...)
	fatalf("%v\n", err)
	panic(err)
}

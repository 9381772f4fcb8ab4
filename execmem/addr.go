package execmem

import "unsafe"

// regionBase returns the start address of a mapped backing. The backing is
// off the Go heap, so the address is stable for the mapping's lifetime.
func regionBase(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}

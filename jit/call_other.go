//go:build !amd64 || !unix

package jit

import "unsafe"

// Supported reports whether emitted callables can be invoked on this
// platform. Compilation and inspection work everywhere; invocation needs
// an amd64 unix host.
const Supported = false

func call(entry uintptr, base *float64, ranges unsafe.Pointer, n int32) float64 {
	panic("jit: emitted code cannot be invoked on this platform")
}

//go:build amd64 && unix

package jit

import "unsafe"

// Supported reports whether emitted callables can be invoked on this
// platform. The template catalog follows the System V AMD64 calling
// convention, so invocation needs an amd64 unix host.
const Supported = true

// call invokes a System V AMD64 entry point: array base in rdi, range
// pointer in rsi, range count in edx, result in xmm0. Implemented in
// call_amd64.s.
func call(entry uintptr, base *float64, ranges unsafe.Pointer, n int32) float64

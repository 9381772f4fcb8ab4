//go:build !amd64 && !386

package execmem

// flushInstructionCache performs no instruction-cache maintenance here: on
// architectures with split caches (e.g. arm64) freshly written code is not
// explicitly synchronised with the instruction cache. The only template
// catalog targets x86-64, and emitted code is invoked only on amd64 hosts.
func flushInstructionCache(mem []byte) {}

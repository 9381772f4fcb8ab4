//go:build windows

package execmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// osAlloc commits a private read+write region. size is already page-rounded
// (VirtualAlloc rounds to its own allocation granularity on top of that).
func osAlloc(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// osProtectExec remaps the region read+execute.
func osProtectExec(mem []byte) error {
	var old uint32
	return windows.VirtualProtect(regionBase(mem), uintptr(len(mem)),
		windows.PAGE_EXECUTE_READ, &old)
}

// osFree releases the region.
func osFree(mem []byte) error {
	return windows.VirtualFree(regionBase(mem), 0, windows.MEM_RELEASE)
}

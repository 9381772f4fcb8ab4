//go:build unix

package execmem

import "golang.org/x/sys/unix"

// osAlloc maps an anonymous private read+write region. size is already
// page-rounded.
func osAlloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// osProtectExec remaps the region read+execute.
func osProtectExec(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

// osFree unmaps the region.
func osFree(mem []byte) error {
	return unix.Munmap(mem)
}

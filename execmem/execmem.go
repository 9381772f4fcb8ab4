// Package execmem manages the lifecycle of executable memory regions: a
// region is allocated read+write, filled with code, armed to read+execute,
// and finally released. Nothing in this package interprets the bytes; it
// only moves a region through its states and hands out the entry pointer.
package execmem

import (
	"os"
)

// State of a region. A region starts Allocated, becomes Armed exactly once,
// and ends Released. The zero value is not a valid state; regions are only
// obtained from Allocate.
type State int

const (
	// Allocated: backing mapped read+write, entry pointer not yet valid.
	Allocated State = iota + 1
	// Armed: backing mapped read+execute, entry pointer callable.
	Armed
	// Released: backing unmapped. Terminal.
	Released
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Allocated:
		return "allocated"
	case Armed:
		return "armed"
	case Released:
		return "released"
	default:
		return "invalid"
	}
}

// Region is one page-aligned executable-capable memory region. A region is
// owned exclusively by its holder; it is not safe for concurrent mutation,
// though calling an armed region's entry from many goroutines at once is
// fine (the code itself is pure).
type Region struct {
	mem   []byte
	entry uintptr
	state State
}

// Allocate obtains a fresh region of at least size bytes, rounded up to the
// host page granularity. The region is anonymous, private, zero-filled and
// mapped read+write. size must be positive.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, &MemError{Op: "allocate", Kind: AllocationFailed,
			Message: "size must be positive"}
	}

	pageSize := os.Getpagesize()
	allocSize := ((size + pageSize - 1) / pageSize) * pageSize

	mem, err := osAlloc(allocSize)
	if err != nil {
		return nil, &MemError{Op: "allocate", Kind: AllocationFailed, Err: err}
	}
	return &Region{mem: mem, state: Allocated}, nil
}

// Bytes returns the writable view of the backing while the region is
// Allocated. After arming, writes through the returned slice fault; after
// release it returns nil.
func (r *Region) Bytes() []byte {
	if r.state == Released {
		return nil
	}
	return r.mem
}

// Size returns the page-rounded size of the backing, or 0 once released.
func (r *Region) Size() int {
	return len(r.mem)
}

// State returns the region's lifecycle state.
func (r *Region) State() State {
	return r.state
}

// Entry returns the callable entry pointer. It is nonzero only while the
// region is Armed.
func (r *Region) Entry() uintptr {
	return r.entry
}

// Arm transitions the region from Allocated to Armed: the backing becomes
// read+execute and the entry pointer is set to the region start. Arm then
// calls the instruction-cache hook, which is empty on every architecture:
// x86 needs no invalidation, and on other architectures no instruction-cache
// invalidation is performed.
//
// If the protection change is refused, the region is released best-effort
// before the error is returned; the handle is not reusable afterwards.
func (r *Region) Arm() error {
	if r.state != Allocated || len(r.mem) == 0 {
		return &MemError{Op: "arm", Kind: NotAllocated,
			Message: "region is " + r.state.String()}
	}

	if err := osProtectExec(r.mem); err != nil {
		_ = r.Release()
		return &MemError{Op: "arm", Kind: ProtectionFailed, Err: err}
	}
	flushInstructionCache(r.mem)

	r.entry = regionBase(r.mem)
	r.state = Armed
	return nil
}

// Release unmaps the backing and ends the region's life. It is idempotent:
// releasing an already-released region (or one whose backing is gone) is a
// no-op. An unmap refusal is reported but the region is marked Released
// regardless; there is nothing more the caller can do with it.
func (r *Region) Release() error {
	r.entry = 0
	if r.state == Released || len(r.mem) == 0 {
		r.state = Released
		r.mem = nil
		return nil
	}

	mem := r.mem
	r.mem = nil
	r.state = Released
	if err := osFree(mem); err != nil {
		return &MemError{Op: "release", Kind: ReleaseFailed, Err: err}
	}
	return nil
}

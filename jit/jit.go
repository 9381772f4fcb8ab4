// Package jit turns a batch of range descriptors into an armed native
// callable computing the batched fast log-sum-exp reduction. It glues the
// codegen builder to the execmem lifecycle: size pass, allocate, emit
// straight into the region, arm, and hand back a handle.
package jit

import (
	"runtime"
	"unsafe"

	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/execmem"
)

// Compiler builds callables over one template catalog. It is stateless and
// safe for concurrent use; every Compile yields an independent handle.
type Compiler struct {
	builder *codegen.Builder
}

// NewCompiler creates a compiler over the given catalog.
func NewCompiler(cat codegen.Catalog) *Compiler {
	return &Compiler{builder: codegen.NewBuilder(cat)}
}

var defaultCompiler = NewCompiler(codegen.NewAMD64Catalog())

// Compile builds and arms a callable for batch using the default x86-64
// catalog. The returned handle owns its memory region; Close it when done.
func Compile(batch []codegen.Range) (*Func, error) {
	return defaultCompiler.Compile(batch)
}

// CompileSingle builds and arms the non-batched reduction over the first n
// elements of the input array, n in [0, MaxWidth].
func CompileSingle(n int) (*Func, error) {
	return defaultCompiler.CompileSingle(n)
}

// Compile builds and arms a callable for batch.
func (c *Compiler) Compile(batch []codegen.Range) (*Func, error) {
	size, err := c.builder.Size(batch)
	if err != nil {
		return nil, err
	}

	region, err := execmem.Allocate(size)
	if err != nil {
		return nil, err
	}
	layout, _, err := c.builder.EmitBatch(region.Bytes(), batch)
	if err != nil {
		_ = region.Release()
		return nil, err
	}
	if err := region.Arm(); err != nil {
		// Arm already released the region on failure.
		return nil, err
	}

	ranges := make([]codegen.Range, len(batch))
	copy(ranges, batch)
	return &Func{region: region, layout: layout, codeSize: size, ranges: ranges}, nil
}

// CompileSingle builds and arms the non-batched single-reduction variant.
func (c *Compiler) CompileSingle(n int) (*Func, error) {
	size, err := c.builder.SizeSingle(n)
	if err != nil {
		return nil, err
	}

	region, err := execmem.Allocate(size)
	if err != nil {
		return nil, err
	}
	layout, _, err := c.builder.EmitSingle(region.Bytes(), n)
	if err != nil {
		_ = region.Release()
		return nil, err
	}
	if err := region.Arm(); err != nil {
		return nil, err
	}

	return &Func{region: region, layout: layout, codeSize: size}, nil
}

// Func is an armed emitted callable. The compiled ranges and their count
// are baked into the code; the callable reads nothing but the input array
// and writes no memory, so concurrent Calls on one Func are safe. Func
// itself must not be Closed while calls are in flight.
type Func struct {
	region   *execmem.Region
	layout   []codegen.Chunk
	codeSize int
	ranges   []codegen.Range
}

// Call invokes the callable on a. The caller must guarantee
// offset + width <= len(a) for every compiled range; this is not checked.
//
// Call requires an armed handle on a supported platform (see Supported);
// anything else is a precondition violation.
func (f *Func) Call(a []float64) float64 {
	var base *float64
	if len(a) > 0 {
		base = &a[0]
	}
	// The range pointer and count are part of the ABI for compatibility
	// with the interpreted reductions, but the emitted code ignores them.
	var rangesPtr unsafe.Pointer
	if len(f.ranges) > 0 {
		rangesPtr = unsafe.Pointer(&f.ranges[0])
	}
	result := call(f.region.Entry(), base, rangesPtr, int32(len(f.ranges)))
	runtime.KeepAlive(a)
	runtime.KeepAlive(f)
	return result
}

// Entry returns the callable's entry pointer (page aligned while armed).
func (f *Func) Entry() uintptr {
	return f.region.Entry()
}

// CodeSize returns the emitted code size in bytes, before page rounding.
func (f *Func) CodeSize() int {
	return f.codeSize
}

// RegionSize returns the page-rounded size of the backing region.
func (f *Func) RegionSize() int {
	return f.region.Size()
}

// Code returns a read-only view of the emitted code bytes.
func (f *Func) Code() []byte {
	mem := f.region.Bytes()
	if mem == nil {
		return nil
	}
	return mem[:f.codeSize]
}

// Layout returns the template layout table recorded during emission.
func (f *Func) Layout() []codegen.Chunk {
	return f.layout
}

// Ranges returns the compiled batch.
func (f *Func) Ranges() []codegen.Range {
	return f.ranges
}

// Close releases the backing region. The handle is unusable afterwards.
// Closing an already-closed handle is a no-op.
func (f *Func) Close() error {
	return f.region.Release()
}

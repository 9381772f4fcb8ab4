// Package codegen maps a batch of range descriptors onto a self-contained
// sequence of x86-64 machine instructions computing the batched fast
// log-sum-exp reduction. It owns the instruction template catalog and the
// two-pass builder (exact size pass, then emission pass); it does not touch
// executable memory, which is the execmem package's job.
package codegen

// MaxWidth is the upper bound on the number of elements a single range may
// cover. The template catalog carries one load template per element slot, so
// widths beyond this would need templates that do not exist.
const MaxWidth = 10

// Range describes one contiguous sub-slice of the input array: Width
// elements starting at array index Offset.
//
// The in-memory layout (two 32-bit signed integers, offset before width,
// natural alignment) matches the layout the emitted callable's second
// argument points at; that argument is part of the ABI but ignored at
// runtime, since the ranges are baked into the code at compile time.
type Range struct {
	Offset int32
	Width  int32
}

// ValidateBatch checks every range width against [1, MaxWidth]. Offsets are
// not checked: offset + width <= len(array) is the caller's invariant at
// call time, and ranges may overlap, repeat or step backwards.
func ValidateBatch(batch []Range) error {
	for i, r := range batch {
		if r.Width < 1 || r.Width > MaxWidth {
			return &WidthError{Index: i, Width: r.Width}
		}
	}
	return nil
}

package codegen

// Template is one pre-assembled, position-independent fragment of native
// code. Templates use only register-relative and literal-immediate operands,
// never branch internally, never touch the stack, and clobber only
// caller-saved registers, so the builder is free to concatenate them in any
// order the batch calls for.
type Template struct {
	Name string
	Code []byte
}

// Len returns the emitted size of the template in bytes.
func (t Template) Len() int {
	return len(t.Code)
}

// AdjustTemplate is a template with an 8-byte signed integer literal hole at
// a named offset. The builder copies the template and then overwrites the
// hole with the byte displacement to add to the base pointer register.
type AdjustTemplate struct {
	Template
	LiteralOffset int
}

// Catalog is the per-architecture set of instruction templates the builder
// concatenates. An alternative back-end (say AArch64 NEON with FMA) plugs in
// here; the builder and everything above it stay unchanged.
//
// The templates assume one fixed register plan, documented by the amd64
// implementation; within a catalog they agree on which register holds the
// outer accumulator, the running maximum, the exponential accumulator and
// the loaded element.
type Catalog interface {
	// Prologue zeroes the outer accumulator.
	Prologue() Template
	// Epilogue places the outer accumulator in the ABI return slot and
	// returns.
	Epilogue() Template
	// LoadElem loads the double at array slot i (relative to the current
	// base pointer) into the element register. i is in [0, MaxWidth).
	LoadElem(i int) Template
	// FMaxInit loads negative infinity into the running maximum register.
	FMaxInit() Template
	// MaxStep folds the element register into the running maximum.
	MaxStep() Template
	// MoveMaxToAcc copies the element register (holding a completed tree
	// reduction) into the running maximum register.
	MoveMaxToAcc() Template
	// MaxTree leaves max of array slots [0, n) in the element register
	// via a balanced reduction tree. n is in [0, MaxWidth]; n = 0 yields
	// negative infinity.
	MaxTree(n int) Template
	// FastExpInit zeroes the exponential accumulator and materialises the
	// exp approximation coefficients in the coefficient registers.
	FastExpInit() Template
	// FastExpStep subtracts the running maximum from the element,
	// evaluates the exp approximation with its low-argument clamp, and
	// adds the result to the exponential accumulator.
	FastExpStep() Template
	// FastLog evaluates the log approximation of the exponential
	// accumulator with its non-positive clamp, adds back the running
	// maximum, and folds the result into the outer accumulator.
	FastLog() Template
	// Accumulate adds the element register directly to the outer
	// accumulator (the exact width-1 path, bypassing both approximations).
	Accumulate() Template
	// PointerAdjust advances the base pointer register by the signed byte
	// displacement patched into its literal hole.
	PointerAdjust() AdjustTemplate
}

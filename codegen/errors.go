package codegen

import "fmt"

// WidthError reports a range whose width falls outside [1, MaxWidth]. It is
// a precondition violation: the builder refuses the whole batch and emits
// nothing.
type WidthError struct {
	Index int   // position of the offending range within the batch
	Width int32 // the rejected width
}

// Error implements the error interface.
func (e *WidthError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("width %d unsupported (max %d)", e.Width, MaxWidth)
	}
	return fmt.Sprintf("range %d: width %d outside [1, %d]", e.Index, e.Width, MaxWidth)
}

// SizeError reports disagreement between the size pass and the emission
// pass. It indicates a bug in the template catalog or builder, never bad
// caller input.
type SizeError struct {
	Computed int // byte count from the size pass
	Emitted  int // byte count actually written
}

// Error implements the error interface.
func (e *SizeError) Error() string {
	return fmt.Sprintf("size pass computed %d bytes but emission wrote %d", e.Computed, e.Emitted)
}

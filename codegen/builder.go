package codegen

import (
	"encoding/binary"
	"fmt"
)

// Chunk records where one template landed in the emitted code, so tooling
// can annotate a hexdump or map a fault address back to a range.
type Chunk struct {
	Name  string // template name
	Range int    // batch index the chunk belongs to, -1 for prologue/epilogue
	Off   int    // byte offset within the emitted code
	Len   int    // byte length
}

// Program is the output of a build: the emitted code and its layout table.
// The code is plain bytes; arming it is the caller's business.
type Program struct {
	Code   []byte
	Layout []Chunk
}

// Builder concatenates catalog templates into executable programs. It is
// stateless and safe for concurrent use.
type Builder struct {
	cat Catalog
}

// NewBuilder creates a builder over the given template catalog.
func NewBuilder(cat Catalog) *Builder {
	return &Builder{cat: cat}
}

// Size computes the exact byte count EmitBatch will write for batch,
// validating every width on the way. This is the size pass: callers use it
// to allocate the destination region before emission.
func (b *Builder) Size(batch []Range) (int, error) {
	if err := ValidateBatch(batch); err != nil {
		return 0, err
	}

	total := b.cat.Prologue().Len()
	adj := b.cat.PointerAdjust().Len()
	for _, r := range batch {
		total += adj + b.rangeSize(int(r.Width))
	}
	total += b.cat.Epilogue().Len()
	return total, nil
}

func (b *Builder) rangeSize(w int) int {
	if w == 1 {
		// log_sum_exp([x]) is x: load and accumulate directly.
		return b.cat.LoadElem(0).Len() + b.cat.Accumulate().Len()
	}
	total := b.cat.MaxTree(w).Len() + b.cat.MoveMaxToAcc().Len() + b.cat.FastExpInit().Len()
	for i := 0; i < w; i++ {
		total += b.cat.LoadElem(i).Len() + b.cat.FastExpStep().Len()
	}
	return total + b.cat.FastLog().Len()
}

// EmitBatch writes the batched reduction into dst and returns the layout
// table and the number of bytes written. dst must hold at least Size(batch)
// bytes; emission visits ranges strictly in the order given, patching each
// pointer adjustment with the signed displacement from the previous range's
// offset (initially zero, matching the base pointer the ABI hands in).
func (b *Builder) EmitBatch(dst []byte, batch []Range) ([]Chunk, int, error) {
	size, err := b.Size(batch)
	if err != nil {
		return nil, 0, err
	}
	if len(dst) < size {
		return nil, 0, fmt.Errorf("destination holds %d bytes, need %d", len(dst), size)
	}

	e := emitter{dst: dst}
	e.emit(-1, b.cat.Prologue())

	prevOffset := int64(0)
	for i, r := range batch {
		offset := int64(r.Offset)
		e.emitAdjust(i, b.cat.PointerAdjust(), (offset-prevOffset)*8)
		prevOffset = offset

		w := int(r.Width)
		if w == 1 {
			e.emit(i, b.cat.LoadElem(0))
			e.emit(i, b.cat.Accumulate())
			continue
		}
		e.emit(i, b.cat.MaxTree(w))
		e.emit(i, b.cat.MoveMaxToAcc())
		e.emit(i, b.cat.FastExpInit())
		for j := 0; j < w; j++ {
			e.emit(i, b.cat.LoadElem(j))
			e.emit(i, b.cat.FastExpStep())
		}
		e.emit(i, b.cat.FastLog())
	}

	e.emit(-1, b.cat.Epilogue())

	if e.pos != size {
		return nil, 0, &SizeError{Computed: size, Emitted: e.pos}
	}
	return e.layout, e.pos, nil
}

// Build is EmitBatch into a freshly allocated plain byte slice. Useful for
// inspection and tests; for execution, emit straight into an executable
// region instead.
func (b *Builder) Build(batch []Range) (*Program, error) {
	size, err := b.Size(batch)
	if err != nil {
		return nil, err
	}
	code := make([]byte, size)
	layout, n, err := b.EmitBatch(code, batch)
	if err != nil {
		return nil, err
	}
	return &Program{Code: code[:n], Layout: layout}, nil
}

// SizeSingle computes the byte count of the non-batched reduction over the
// first n elements. n may be zero; the degenerate program returns -Inf.
func (b *Builder) SizeSingle(n int) (int, error) {
	if n < 0 || n > MaxWidth {
		return 0, &WidthError{Index: -1, Width: int32(n)}
	}

	total := b.cat.Prologue().Len() + b.cat.FMaxInit().Len()
	for i := 0; i < n; i++ {
		total += b.cat.LoadElem(i).Len() + b.cat.MaxStep().Len()
	}
	total += b.cat.FastExpInit().Len()
	for i := 0; i < n; i++ {
		total += b.cat.LoadElem(i).Len() + b.cat.FastExpStep().Len()
	}
	total += b.cat.FastLog().Len() + b.cat.Epilogue().Len()
	return total, nil
}

// EmitSingle writes the non-batched reduction over the first n elements of
// the input array into dst. The maximum pass daisy-chains one MaxStep per
// element.
//
// TODO: replace the daisy chain with the MaxTree templates; the chained
// form has unnecessarily deep dependency latency for n >= 3. There is also
// no early return when the running maximum is -Inf.
func (b *Builder) EmitSingle(dst []byte, n int) ([]Chunk, int, error) {
	size, err := b.SizeSingle(n)
	if err != nil {
		return nil, 0, err
	}
	if len(dst) < size {
		return nil, 0, fmt.Errorf("destination holds %d bytes, need %d", len(dst), size)
	}

	e := emitter{dst: dst}
	e.emit(-1, b.cat.Prologue())
	e.emit(0, b.cat.FMaxInit())
	for i := 0; i < n; i++ {
		e.emit(0, b.cat.LoadElem(i))
		e.emit(0, b.cat.MaxStep())
	}
	e.emit(0, b.cat.FastExpInit())
	for i := 0; i < n; i++ {
		e.emit(0, b.cat.LoadElem(i))
		e.emit(0, b.cat.FastExpStep())
	}
	e.emit(0, b.cat.FastLog())
	e.emit(-1, b.cat.Epilogue())

	if e.pos != size {
		return nil, 0, &SizeError{Computed: size, Emitted: e.pos}
	}
	return e.layout, e.pos, nil
}

// BuildSingle is EmitSingle into a fresh byte slice.
func (b *Builder) BuildSingle(n int) (*Program, error) {
	size, err := b.SizeSingle(n)
	if err != nil {
		return nil, err
	}
	code := make([]byte, size)
	layout, written, err := b.EmitSingle(code, n)
	if err != nil {
		return nil, err
	}
	return &Program{Code: code[:written], Layout: layout}, nil
}

// emitter tracks the write cursor and layout table during emission.
type emitter struct {
	dst    []byte
	pos    int
	layout []Chunk
}

func (e *emitter) emit(rangeIdx int, t Template) {
	copy(e.dst[e.pos:], t.Code)
	e.layout = append(e.layout, Chunk{Name: t.Name, Range: rangeIdx, Off: e.pos, Len: t.Len()})
	e.pos += t.Len()
}

// emitAdjust copies the template and then overwrites its literal hole with
// the little-endian two's complement of delta.
func (e *emitter) emitAdjust(rangeIdx int, t AdjustTemplate, delta int64) {
	start := e.pos
	e.emit(rangeIdx, t.Template)
	binary.LittleEndian.PutUint64(e.dst[start+t.LiteralOffset:], uint64(delta))
}

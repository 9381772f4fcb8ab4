package codegen

import (
	"fmt"
	"math"

	"github.com/fcostin/logsumexp-approx/approx"
)

// Register plan for the emitted x86-64 code (System V ABI, AVX + FMA).
// The base pointer arrives in rdi (first integer argument); rcx and rax are
// integer scratch. Everything is caller-saved, so the templates need no
// prologue spills.
const (
	regResult = 0 // xmm0: outer accumulator, doubles as the return slot
	regMax    = 1 // xmm1: per-reduction running maximum
	regExpAcc = 2 // xmm2: per-reduction exponential accumulator
	regElem   = 3 // xmm3: loaded element / tree reduction result
	regCoefA  = 4 // xmm4: coefficient (exp factor; -Inf during the log)
	regCoefB  = 5 // xmm5: coefficient (exp term; log factor during the log)
	regCoefC  = 6 // xmm6: coefficient (exp clamp arg; log term during the log)
	regTemp   = 7 // xmm7: temporary / zero
)

// AMD64Catalog is the x86-64 template catalog. All templates are assembled
// once at construction; the only runtime parameterisation left is the load
// slot index and the pointer-adjust literal.
type AMD64Catalog struct {
	prologue    Template
	epilogue    Template
	loads       [MaxWidth]Template
	fmaxInit    Template
	maxStep     Template
	moveMax     Template
	maxTrees    [MaxWidth + 1]Template
	fastExpInit Template
	fastExpStep Template
	fastLog     Template
	accumulate  Template
	adjust      AdjustTemplate
}

// NewAMD64Catalog assembles the catalog.
func NewAMD64Catalog() *AMD64Catalog {
	c := &AMD64Catalog{}

	negInf := math.Float64bits(math.Inf(-1))

	{
		var a asm
		a.vxorpd(regResult)
		c.prologue = Template{Name: "prologue", Code: a.code}
	}
	{
		var a asm
		a.ret()
		c.epilogue = Template{Name: "epilogue", Code: a.code}
	}
	for i := 0; i < MaxWidth; i++ {
		var a asm
		a.vmovsdLoad(regElem, 8*i)
		c.loads[i] = Template{Name: fmt.Sprintf("load_a%d", i), Code: a.code}
	}
	{
		var a asm
		a.movabsRCX(negInf)
		a.vmovqToXmm(regMax)
		c.fmaxInit = Template{Name: "fmax_init", Code: a.code}
	}
	{
		var a asm
		a.vmaxsd(regMax, regMax, regElem)
		c.maxStep = Template{Name: "max_step", Code: a.code}
	}
	{
		var a asm
		a.vmovapd(regMax, regElem)
		c.moveMax = Template{Name: "move_max", Code: a.code}
	}
	for n := 0; n <= MaxWidth; n++ {
		c.maxTrees[n] = Template{Name: fmt.Sprintf("max_tree%d", n), Code: assembleMaxTree(n)}
	}
	{
		var a asm
		a.vxorpd(regExpAcc)
		a.movabsRCX(math.Float64bits(approx.ExpFactor))
		a.vmovqToXmm(regCoefA)
		a.movabsRCX(math.Float64bits(approx.ExpTerm))
		a.vmovqToXmm(regCoefB)
		a.movabsRCX(math.Float64bits(approx.ExpMinArg))
		a.vmovqToXmm(regCoefC)
		c.fastExpInit = Template{Name: "fastexp_init", Code: a.code}
	}
	{
		// Assumes the element is in xmm3 and the running maximum in
		// xmm1. The comparison mask doubles as the low-argument clamp:
		// below the threshold the and wipes the garbage bit pattern to
		// +0.0 before it reaches the accumulator.
		var a asm
		a.vsubsd(regElem, regElem, regMax)
		a.vmovapd(regTemp, regCoefA)
		a.vfmadd213sd(regTemp, regElem, regCoefB)
		a.vcmpsd(regElem, regCoefC, regElem, cmpLE)
		a.vcvttsd2siRCX(regTemp)
		a.vmovqToXmm(regTemp)
		a.vandpd(regElem, regElem, regTemp)
		a.vaddsd(regExpAcc, regExpAcc, regElem)
		c.fastExpStep = Template{Name: "fastexp_step", Code: a.code}
	}
	{
		// Reuses the coefficient registers for the log constants, so a
		// later range's FastExpInit must (and does) reload them.
		var a asm
		a.vxorpd(regTemp)
		a.movabsRCX(negInf)
		a.vmovqToXmm(regCoefA)
		a.movabsRCX(math.Float64bits(approx.LogFactor))
		a.vmovqToXmm(regCoefB)
		a.movabsRCX(math.Float64bits(approx.LogTerm))
		a.vmovqToXmm(regCoefC)
		a.vmovqToRAX(regExpAcc)
		a.vcvtsi2sdRAX(regElem, regTemp)
		a.vfmadd213sd(regElem, regCoefB, regCoefC)
		a.vcmpsd(regExpAcc, regTemp, regExpAcc, cmpLT)
		a.vblendvpd(regExpAcc, regCoefA, regElem, regExpAcc)
		a.vaddsd(regExpAcc, regMax, regExpAcc)
		a.vaddsd(regResult, regResult, regExpAcc)
		c.fastLog = Template{Name: "fastlog", Code: a.code}
	}
	{
		var a asm
		a.vaddsd(regResult, regResult, regElem)
		c.accumulate = Template{Name: "accumulate", Code: a.code}
	}
	{
		var a asm
		a.movabsRCX(0)
		a.addRCXtoRDI()
		c.adjust = AdjustTemplate{
			Template:      Template{Name: "adjust_base", Code: a.code},
			LiteralOffset: 2,
		}
	}

	return c
}

// assembleMaxTree builds the balanced max reduction over array slots [0, n),
// leaving the result in the element register. The first level folds element
// pairs with memory-operand maxes into up to five partials in xmm3..xmm7;
// the remaining levels fold the partials pairwise, which bounds the
// dependency depth by ceil(log2 n).
func assembleMaxTree(n int) []byte {
	var a asm

	switch n {
	case 0:
		a.movabsRCX(math.Float64bits(math.Inf(-1)))
		a.vmovqToXmm(regElem)
		return a.code
	case 1:
		a.vmovsdLoad(regElem, 0)
		return a.code
	}

	var partials []byte
	for j := 0; j < n/2; j++ {
		r := byte(regElem + j)
		a.vmovsdLoad(r, 16*j)
		a.vmaxsdLoad(r, r, 16*j+8)
		partials = append(partials, r)
	}
	if n%2 == 1 {
		r := byte(regElem + n/2)
		a.vmovsdLoad(r, 8*(n-1))
		partials = append(partials, r)
	}

	for len(partials) > 1 {
		var next []byte
		for i := 0; i+1 < len(partials); i += 2 {
			a.vmaxsd(partials[i], partials[i], partials[i+1])
			next = append(next, partials[i])
		}
		if len(partials)%2 == 1 {
			next = append(next, partials[len(partials)-1])
		}
		partials = next
	}

	return a.code
}

// Prologue implements Catalog.
func (c *AMD64Catalog) Prologue() Template { return c.prologue }

// Epilogue implements Catalog. The outer accumulator already lives in the
// return register, so this is a bare ret.
func (c *AMD64Catalog) Epilogue() Template { return c.epilogue }

// LoadElem implements Catalog.
func (c *AMD64Catalog) LoadElem(i int) Template { return c.loads[i] }

// FMaxInit implements Catalog.
func (c *AMD64Catalog) FMaxInit() Template { return c.fmaxInit }

// MaxStep implements Catalog.
func (c *AMD64Catalog) MaxStep() Template { return c.maxStep }

// MoveMaxToAcc implements Catalog.
func (c *AMD64Catalog) MoveMaxToAcc() Template { return c.moveMax }

// MaxTree implements Catalog.
func (c *AMD64Catalog) MaxTree(n int) Template { return c.maxTrees[n] }

// FastExpInit implements Catalog.
func (c *AMD64Catalog) FastExpInit() Template { return c.fastExpInit }

// FastExpStep implements Catalog.
func (c *AMD64Catalog) FastExpStep() Template { return c.fastExpStep }

// FastLog implements Catalog.
func (c *AMD64Catalog) FastLog() Template { return c.fastLog }

// Accumulate implements Catalog.
func (c *AMD64Catalog) Accumulate() Template { return c.accumulate }

// PointerAdjust implements Catalog.
func (c *AMD64Catalog) PointerAdjust() AdjustTemplate { return c.adjust }

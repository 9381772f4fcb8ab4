package codegen

import "encoding/binary"

// Minimal VEX instruction encoder covering exactly the AVX/FMA scalar forms
// the template catalog needs. All operands are xmm0-xmm7 or the fixed
// integer registers of the emitted code's calling convention (rdi base
// pointer, rcx/rax scratch), so the two-byte VEX prefix suffices except for
// the W1 and 0F38/0F3A forms.
//
// Register operands are plain register numbers; the assembler does not
// check them beyond what the encodings force.

// VEX pp prefix selector values.
const (
	ppNone = 0x0
	pp66   = 0x1
	ppF3   = 0x2
	ppF2   = 0x3
)

// VEX mmmmm opcode map selector values (three-byte form).
const (
	mm0F   = 0x01
	mm0F38 = 0x02
	mm0F3A = 0x03
)

// asm accumulates encoded instructions for one template.
type asm struct {
	code []byte
}

func (a *asm) raw(bs ...byte) {
	a.code = append(a.code, bs...)
}

// vex2 emits a two-byte VEX prefix. v is the register encoded in vvvv
// (pass 0 when the field is unused; its encoding is inverted, so 0 encodes
// as the required 1111).
func (a *asm) vex2(pp, v byte) {
	a.raw(0xc5, 0x80|((^v&0xf)<<3)|pp)
}

// vex3 emits a three-byte VEX prefix with R/X/B all clear (inverted: set).
func (a *asm) vex3(mm, w, pp, v byte) {
	a.raw(0xc4, 0xe0|mm, (w<<7)|((^v&0xf)<<3)|pp)
}

// modrmReg builds a register-direct ModRM byte.
func modrmReg(reg, rm byte) byte {
	return 0xc0 | (reg << 3) | rm
}

// rdiMem emits a ModRM memory operand addressing disp(%rdi). Displacements
// are at most (MaxWidth-1)*8 bytes, so the 8-bit form always fits.
func (a *asm) rdiMem(reg byte, disp int) {
	const rmRDI = 7
	if disp == 0 {
		a.raw((reg << 3) | rmRDI)
		return
	}
	a.raw(0x40|(reg<<3)|rmRDI, byte(disp))
}

// vmovsdLoad: vmovsd disp(%rdi), %xmm(dst)
func (a *asm) vmovsdLoad(dst byte, disp int) {
	a.vex2(ppF2, 0)
	a.raw(0x10)
	a.rdiMem(dst, disp)
}

// vmovapd: vmovapd %xmm(src), %xmm(dst)
func (a *asm) vmovapd(dst, src byte) {
	a.vex2(pp66, 0)
	a.raw(0x28, modrmReg(dst, src))
}

// vxorpd: vxorpd %xmm(r), %xmm(r), %xmm(r) -- the idiomatic zeroing form
func (a *asm) vxorpd(r byte) {
	a.vex2(pp66, r)
	a.raw(0x57, modrmReg(r, r))
}

// vmaxsd: vmaxsd %xmm(src2), %xmm(src1), %xmm(dst)
func (a *asm) vmaxsd(dst, src1, src2 byte) {
	a.vex2(ppF2, src1)
	a.raw(0x5f, modrmReg(dst, src2))
}

// vmaxsdLoad: vmaxsd disp(%rdi), %xmm(src1), %xmm(dst)
func (a *asm) vmaxsdLoad(dst, src1 byte, disp int) {
	a.vex2(ppF2, src1)
	a.raw(0x5f)
	a.rdiMem(dst, disp)
}

// vaddsd: vaddsd %xmm(src2), %xmm(src1), %xmm(dst)
func (a *asm) vaddsd(dst, src1, src2 byte) {
	a.vex2(ppF2, src1)
	a.raw(0x58, modrmReg(dst, src2))
}

// vsubsd: vsubsd %xmm(src2), %xmm(src1), %xmm(dst)
func (a *asm) vsubsd(dst, src1, src2 byte) {
	a.vex2(ppF2, src1)
	a.raw(0x5c, modrmReg(dst, src2))
}

// vandpd: vandpd %xmm(src2), %xmm(src1), %xmm(dst)
func (a *asm) vandpd(dst, src1, src2 byte) {
	a.vex2(pp66, src1)
	a.raw(0x54, modrmReg(dst, src2))
}

// vcmpsd: vcmpsd $pred, %xmm(src2), %xmm(src1), %xmm(dst)
func (a *asm) vcmpsd(dst, src1, src2, pred byte) {
	a.vex2(ppF2, src1)
	a.raw(0xc2, modrmReg(dst, src2), pred)
}

// Comparison predicates for vcmpsd.
const (
	cmpLT = 0x01
	cmpLE = 0x02
)

// vfmadd213sd: %xmm(dst) = %xmm(src1)*%xmm(dst) + %xmm(src2)
func (a *asm) vfmadd213sd(dst, src1, src2 byte) {
	a.vex3(mm0F38, 1, pp66, src1)
	a.raw(0xa9, modrmReg(dst, src2))
}

// vblendvpd: %xmm(dst) = mask-selected blend of %xmm(src1) (mask bit clear)
// and %xmm(src2) (mask bit set)
func (a *asm) vblendvpd(dst, src1, src2, mask byte) {
	a.vex3(mm0F3A, 0, pp66, src1)
	a.raw(0x4b, modrmReg(dst, src2), mask<<4)
}

// movabsRCX: movabs $imm, %rcx
func (a *asm) movabsRCX(imm uint64) {
	a.raw(0x48, 0xb9)
	a.code = binary.LittleEndian.AppendUint64(a.code, imm)
}

// vmovqToXmm: vmovq %rcx, %xmm(dst)
func (a *asm) vmovqToXmm(dst byte) {
	const rmRCX = 1
	a.vex3(mm0F, 1, pp66, 0)
	a.raw(0x6e, modrmReg(dst, rmRCX))
}

// vmovqToRAX: vmovq %xmm(src), %rax
func (a *asm) vmovqToRAX(src byte) {
	const rmRAX = 0
	a.vex3(mm0F, 1, pp66, 0)
	a.raw(0x7e, modrmReg(src, rmRAX))
}

// vcvttsd2siRCX: vcvttsd2si %xmm(src), %rcx -- truncating double-to-int64
func (a *asm) vcvttsd2siRCX(src byte) {
	const regRCX = 1
	a.vex3(mm0F, 1, ppF2, 0)
	a.raw(0x2c, modrmReg(regRCX, src))
}

// vcvtsi2sdRAX: vcvtsi2sd %rax, %xmm(src1), %xmm(dst) -- int64-to-double;
// src1 supplies the untouched upper lane
func (a *asm) vcvtsi2sdRAX(dst, src1 byte) {
	const rmRAX = 0
	a.vex3(mm0F, 1, ppF2, src1)
	a.raw(0x2a, modrmReg(dst, rmRAX))
}

// addRCXtoRDI: add %rcx, %rdi
func (a *asm) addRCXtoRDI() {
	a.raw(0x48, 0x01, 0xcf)
}

// ret: retq
func (a *asm) ret() {
	a.raw(0xc3)
}

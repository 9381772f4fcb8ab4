package codegen

import (
	"bytes"
	"testing"
)

// The expected byte sequences below are the proven encodings of the
// template fragments; they pin the assembler helpers to the exact
// instructions the engine has always emitted.

func TestAMD64FixedTemplates(t *testing.T) {
	cat := NewAMD64Catalog()

	tests := []struct {
		name     string
		got      Template
		expected []byte
	}{
		{"prologue", cat.Prologue(), []byte{
			0xc5, 0xf9, 0x57, 0xc0, // vxorpd %xmm0,%xmm0,%xmm0
		}},
		{"epilogue", cat.Epilogue(), []byte{
			0xc3, // retq
		}},
		{"fmax_init", cat.FMaxInit(), []byte{
			0x48, 0xb9, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0xff, // movabs $-inf,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xc9, // vmovq %rcx,%xmm1
		}},
		{"max_step", cat.MaxStep(), []byte{
			0xc5, 0xf3, 0x5f, 0xcb, // vmaxsd %xmm3,%xmm1,%xmm1
		}},
		{"move_max", cat.MoveMaxToAcc(), []byte{
			0xc5, 0xf9, 0x28, 0xcb, // vmovapd %xmm3,%xmm1
		}},
		{"fastexp_init", cat.FastExpInit(), []byte{
			0xc5, 0xe9, 0x57, 0xd2, // vxorpd %xmm2,%xmm2,%xmm2
			0x48, 0xb9, 0xfe, 0x82, 0x2b, 0x65, 0x47, 0x15, 0x37, 0x43, // movabs factor,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xe1, // vmovq %rcx,%xmm4
			0x48, 0xb9, 0x00, 0x00, 0x80, 0x3f, 0x89, 0xf7, 0xcf, 0x43, // movabs term,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xe9, // vmovq %rcx,%xmm5
			0x48, 0xb9, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x86, 0xc0, // movabs min arg,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xf1, // vmovq %rcx,%xmm6
		}},
		{"fastexp_step", cat.FastExpStep(), []byte{
			0xc5, 0xe3, 0x5c, 0xd9, // vsubsd %xmm1,%xmm3,%xmm3
			0xc5, 0xf9, 0x28, 0xfc, // vmovapd %xmm4,%xmm7
			0xc4, 0xe2, 0xe1, 0xa9, 0xfd, // vfmadd213sd %xmm5,%xmm3,%xmm7
			0xc5, 0xcb, 0xc2, 0xdb, 0x02, // vcmplesd %xmm3,%xmm6,%xmm3
			0xc4, 0xe1, 0xfb, 0x2c, 0xcf, // vcvttsd2si %xmm7,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xf9, // vmovq %rcx,%xmm7
			0xc5, 0xe1, 0x54, 0xdf, // vandpd %xmm7,%xmm3,%xmm3
			0xc5, 0xeb, 0x58, 0xd3, // vaddsd %xmm3,%xmm2,%xmm2
		}},
		{"fastlog", cat.FastLog(), []byte{
			0xc5, 0xc1, 0x57, 0xff, // vxorpd %xmm7,%xmm7,%xmm7
			0x48, 0xb9, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0xff, // movabs $-inf,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xe1, // vmovq %rcx,%xmm4
			0x48, 0xb9, 0xef, 0x39, 0xfa, 0xfe, 0x42, 0x2e, 0xa6, 0x3c, // movabs inv factor,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xe9, // vmovq %rcx,%xmm5
			0x48, 0xb9, 0x20, 0x24, 0x35, 0x1e, 0x65, 0x28, 0x86, 0xc0, // movabs inv term,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xf1, // vmovq %rcx,%xmm6
			0xc4, 0xe1, 0xf9, 0x7e, 0xd0, // vmovq %xmm2,%rax
			0xc4, 0xe1, 0xc3, 0x2a, 0xd8, // vcvtsi2sd %rax,%xmm7,%xmm3
			0xc4, 0xe2, 0xd1, 0xa9, 0xde, // vfmadd213sd %xmm6,%xmm5,%xmm3
			0xc5, 0xc3, 0xc2, 0xd2, 0x01, // vcmpltsd %xmm2,%xmm7,%xmm2
			0xc4, 0xe3, 0x59, 0x4b, 0xd3, 0x20, // vblendvpd %xmm2,%xmm3,%xmm4,%xmm2
			0xc5, 0xf3, 0x58, 0xd2, // vaddsd %xmm2,%xmm1,%xmm2
			0xc5, 0xfb, 0x58, 0xc2, // vaddsd %xmm2,%xmm0,%xmm0
		}},
		{"accumulate", cat.Accumulate(), []byte{
			0xc5, 0xfb, 0x58, 0xc3, // vaddsd %xmm3,%xmm0,%xmm0
		}},
	}

	for _, tt := range tests {
		if !bytes.Equal(tt.got.Code, tt.expected) {
			t.Errorf("%s:\n  got      % x\n  expected % x", tt.name, tt.got.Code, tt.expected)
		}
	}
}

func TestAMD64LoadTemplates(t *testing.T) {
	cat := NewAMD64Catalog()

	// Slot 0 uses the no-displacement form; the rest carry an 8-bit
	// displacement of 8*i.
	if got := cat.LoadElem(0).Code; !bytes.Equal(got, []byte{0xc5, 0xfb, 0x10, 0x1f}) {
		t.Errorf("load_a0 = % x", got)
	}
	for i := 1; i < MaxWidth; i++ {
		expected := []byte{0xc5, 0xfb, 0x10, 0x5f, byte(8 * i)}
		if got := cat.LoadElem(i).Code; !bytes.Equal(got, expected) {
			t.Errorf("load_a%d = % x, expected % x", i, got, expected)
		}
	}
}

func TestAMD64PointerAdjust(t *testing.T) {
	cat := NewAMD64Catalog()
	adj := cat.PointerAdjust()

	expected := []byte{
		0x48, 0xb9, // movabs $literal,%rcx
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x48, 0x01, 0xcf, // add %rcx,%rdi
	}
	if !bytes.Equal(adj.Code, expected) {
		t.Errorf("adjust_base = % x", adj.Code)
	}
	if adj.Len() != 13 {
		t.Errorf("adjust_base length = %d, expected 13", adj.Len())
	}
	if adj.LiteralOffset != 2 {
		t.Errorf("literal offset = %d, expected 2", adj.LiteralOffset)
	}
}

func TestAMD64MaxTreeSmall(t *testing.T) {
	cat := NewAMD64Catalog()

	tests := []struct {
		n        int
		expected []byte
	}{
		{0, []byte{
			0x48, 0xb9, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0xff, // movabs $-inf,%rcx
			0xc4, 0xe1, 0xf9, 0x6e, 0xd9, // vmovq %rcx,%xmm3
		}},
		{1, []byte{
			0xc5, 0xfb, 0x10, 0x1f, // vmovsd (%rdi),%xmm3
		}},
		{2, []byte{
			0xc5, 0xfb, 0x10, 0x1f, // vmovsd (%rdi),%xmm3
			0xc5, 0xe3, 0x5f, 0x5f, 0x08, // vmaxsd 0x8(%rdi),%xmm3,%xmm3
		}},
		{3, []byte{
			0xc5, 0xfb, 0x10, 0x1f, // vmovsd (%rdi),%xmm3
			0xc5, 0xe3, 0x5f, 0x5f, 0x08, // vmaxsd 0x8(%rdi),%xmm3,%xmm3
			0xc5, 0xfb, 0x10, 0x67, 0x10, // vmovsd 0x10(%rdi),%xmm4
			0xc5, 0xe3, 0x5f, 0xdc, // vmaxsd %xmm4,%xmm3,%xmm3
		}},
	}

	for _, tt := range tests {
		if got := cat.MaxTree(tt.n).Code; !bytes.Equal(got, tt.expected) {
			t.Errorf("max_tree%d:\n  got      % x\n  expected % x", tt.n, got, tt.expected)
		}
	}
}

// Every tree must deposit its result in xmm3 for MoveMaxToAcc to pick up:
// for n >= 3 the last instruction is a register-register vmaxsd with
// destination xmm3 (n <= 2 is covered byte-exactly above).
func TestAMD64MaxTreeResultRegister(t *testing.T) {
	cat := NewAMD64Catalog()

	for n := 3; n <= MaxWidth; n++ {
		code := cat.MaxTree(n).Code
		if len(code) < 4 {
			t.Fatalf("max_tree%d too short: % x", n, code)
		}
		last := code[len(code)-4:]
		if last[0] != 0xc5 || last[2] != 0x5f {
			t.Errorf("max_tree%d does not end in a vmaxsd: % x", n, last)
			continue
		}
		if dst := (last[3] >> 3) & 0x7; dst != 3 {
			t.Errorf("max_tree%d final destination = xmm%d, expected xmm3", n, dst)
		}
	}
}

func TestAMD64MaxTreeGrowsWithWidth(t *testing.T) {
	cat := NewAMD64Catalog()

	for n := 2; n <= MaxWidth; n++ {
		if cat.MaxTree(n).Len() <= cat.MaxTree(n-1).Len() {
			t.Errorf("max_tree%d (%d bytes) not larger than max_tree%d (%d bytes)",
				n, cat.MaxTree(n).Len(), n-1, cat.MaxTree(n-1).Len())
		}
	}
}

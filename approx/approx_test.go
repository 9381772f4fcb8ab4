package approx

import (
	"math"
	"testing"
)

// Known bit patterns of the coefficients, as they appear embedded in the
// emitted machine code. If these drift, the scalar reductions and the JIT
// output stop agreeing.
func TestCoefficientBitPatterns(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected uint64
	}{
		{"ExpFactor", ExpFactor, 0x43371547652B82FE},
		{"ExpTerm", ExpTerm, 0x43CFF7893F800000},
		{"ExpMinArg", ExpMinArg, 0xC086100000000000},
		{"LogFactor", LogFactor, 0x3CA62E42FEFA39EF},
		{"LogTerm", LogTerm, 0xC08628651E352420},
	}

	for _, tt := range tests {
		if got := math.Float64bits(tt.value); got != tt.expected {
			t.Errorf("%s bits = %#016x, expected %#016x", tt.name, got, tt.expected)
		}
	}
}

func TestFastExp(t *testing.T) {
	// The worst-case relative error of the approximation is just under
	// 4e-2, periodic in x with period ln 2.
	tests := []struct {
		x      float64
		relTol float64
	}{
		{0.0, 4.2e-2},
		{-0.5, 4.2e-2},
		{-1.0, 4.2e-2},
		{-2.302585092994046, 4.2e-2}, // log(0.1)
		{-5.0, 4.2e-2},
		{-20.0, 4.2e-2},
		{-100.0, 4.2e-2},
		{-700.0, 4.2e-2},
	}

	for _, tt := range tests {
		got := FastExp(tt.x)
		want := math.Exp(tt.x)
		relErr := math.Abs(got-want) / want
		if relErr > tt.relTol {
			t.Errorf("FastExp(%g) = %g, exp = %g, rel error %g > %g", tt.x, got, want, relErr, tt.relTol)
		}
	}
}

func TestFastExpClamp(t *testing.T) {
	for _, x := range []float64{-706.5, -1000.0, math.Inf(-1)} {
		if got := FastExp(x); got != 0.0 {
			t.Errorf("FastExp(%g) = %g, expected clamp to 0", x, got)
		}
	}
	// At the clamp threshold itself the approximation still produces a
	// tiny positive value rather than zero.
	if got := FastExp(ExpMinArg); got <= 0.0 {
		t.Errorf("FastExp(ExpMinArg) = %g, expected positive", got)
	}
}

func TestFastLog(t *testing.T) {
	for _, x := range []float64{1e-10, 0.25, 0.5, 1.0, 2.0, 100.0, 1e10} {
		got := FastLog(x)
		want := math.Log(x)
		if math.Abs(got-want) > 4.2e-2*math.Max(1.0, math.Abs(want)) {
			t.Errorf("FastLog(%g) = %g, log = %g", x, got, want)
		}
	}
}

func TestFastLogClamp(t *testing.T) {
	for _, x := range []float64{0.0, -1.0, math.Inf(-1)} {
		if got := FastLog(x); !math.IsInf(got, -1) {
			t.Errorf("FastLog(%g) = %g, expected -Inf", x, got)
		}
	}
}

func TestFastLogFastExpRoundTrip(t *testing.T) {
	// The log map is the exact inverse of the exp map up to the integer
	// truncation, so the round trip is far tighter than either direction
	// alone.
	for x := -30.0; x <= 0.0; x += 0.37 {
		got := FastLog(FastExp(x))
		if math.Abs(got-x) > 1e-9*math.Max(1.0, math.Abs(x)) {
			t.Errorf("FastLog(FastExp(%g)) = %g", x, got)
		}
	}
}

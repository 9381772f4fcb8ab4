package jit_test

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcostin/logsumexp-approx/approx"
	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/jit"
)

func compile(t *testing.T, batch []codegen.Range) *jit.Func {
	t.Helper()
	if !jit.Supported {
		t.Skip("emitted code cannot be invoked on this platform")
	}
	f, err := jit.Compile(batch)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// batchOracle sums the scalar twin of the emitted code over the batch.
func batchOracle(a []float64, batch []codegen.Range) float64 {
	acc := 0.0
	for _, r := range batch {
		acc += approx.FasterLogSumExp(a[r.Offset : r.Offset+r.Width])
	}
	return acc
}

func TestEmptyBatchReturnsZero(t *testing.T) {
	f := compile(t, nil)
	assert.Equal(t, 0.0, f.Call([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, f.Call(nil))
}

func TestSingleWidthOneRangeIsExact(t *testing.T) {
	f := compile(t, []codegen.Range{{Offset: 3, Width: 1}})

	a := []float64{0, 0, 0, 7.5, 0, 0, 0, 0}
	assert.Equal(t, 7.5, f.Call(a))
}

func TestSingleWidthTwoRange(t *testing.T) {
	f := compile(t, []codegen.Range{{Offset: 0, Width: 2}})

	// log(exp(log 0.25) + exp(log 0.75)) = 0; the approximation is
	// coarse, so only order-of-magnitude agreement is expected.
	a := []float64{math.Log(0.25), math.Log(0.75)}
	assert.InDelta(t, 0.0, f.Call(a), 4.2e-2)
}

func TestUniformDistributionSumsToOne(t *testing.T) {
	f := compile(t, []codegen.Range{{Offset: 0, Width: 10}})

	a := make([]float64, 10)
	for i := range a {
		a[i] = math.Log(float64(i+1) / 55.0)
	}
	assert.InDelta(t, 0.0, f.Call(a), 4.2e-2)
}

func TestMultiRangeWithStepBack(t *testing.T) {
	batch := []codegen.Range{{5, 3}, {2, 4}, {8, 2}}
	f := compile(t, batch)

	rng := rand.New(rand.NewSource(12345))
	for trial := 0; trial < 50; trial++ {
		a := make([]float64, 16)
		for i := range a {
			a[i] = math.Log(rng.Float64())
		}

		got := f.Call(a)

		// The emitted code performs the same maxes, fused
		// multiply-adds, truncations and ordered sums as the scalar
		// twin, so agreement is tight.
		want := batchOracle(a, batch)
		assert.InDelta(t, want, got, 1e-9*math.Max(1.0, math.Abs(want)))

		// Against the exact reduction only coarse agreement holds.
		exact := 0.0
		for _, r := range batch {
			exact += approx.LogSumExp(a[r.Offset : r.Offset+r.Width])
		}
		assert.InDelta(t, exact, got, 1e-1*math.Max(1.0, math.Abs(exact)))
	}
}

func TestAllWidthsMatchScalarTwin(t *testing.T) {
	rng := rand.New(rand.NewSource(777))

	for w := int32(2); w <= codegen.MaxWidth; w++ {
		batch := []codegen.Range{{Offset: 1, Width: w}}
		f := compile(t, batch)

		a := make([]float64, w+2)
		for i := range a {
			a[i] = math.Log(rng.Float64())
		}
		got := f.Call(a)
		want := batchOracle(a, batch)
		assert.InDelta(t, want, got, 1e-9*math.Max(1.0, math.Abs(want)), "width %d", w)
	}
}

// For width-1 ranges the emitted code adds elements directly, so any
// combination of offsets, including backward steps, must come out exact.
func TestDisplacementGrid(t *testing.T) {
	if !jit.Supported {
		t.Skip("emitted code cannot be invoked on this platform")
	}

	a := []float64{0.5, -1.25, 3.0, -0.125, 2.75, -8.5, 0.0625, 9.0}
	for o1 := int32(0); o1 < int32(len(a)); o1++ {
		for o2 := int32(0); o2 < int32(len(a)); o2++ {
			f, err := jit.Compile([]codegen.Range{{o1, 1}, {o2, 1}})
			require.NoError(t, err)
			got := f.Call(a)
			require.NoError(t, f.Close())

			if want := a[o1] + a[o2]; got != want {
				t.Fatalf("offsets (%d, %d): got %g, expected %g", o1, o2, got, want)
			}
		}
	}
}

func TestRepeatInvocationIsBitStable(t *testing.T) {
	f := compile(t, []codegen.Range{{5, 3}, {2, 4}, {8, 2}})

	rng := rand.New(rand.NewSource(99))
	a := make([]float64, 16)
	for i := range a {
		a[i] = math.Log(rng.Float64())
	}

	first := math.Float64bits(f.Call(a))
	for i := 0; i < 1000000; i++ {
		if got := math.Float64bits(f.Call(a)); got != first {
			t.Fatalf("call %d: %#x, first call %#x", i, got, first)
		}
	}
}

func TestConcurrentInvocation(t *testing.T) {
	f := compile(t, []codegen.Range{{0, 4}, {2, 3}, {6, 1}})

	const workers = 8
	inputs := make([][]float64, workers)
	sequential := make([]float64, workers)
	rng := rand.New(rand.NewSource(4242))
	for w := range inputs {
		a := make([]float64, 8)
		for i := range a {
			a[i] = math.Log(rng.Float64())
		}
		inputs[w] = a
		sequential[w] = f.Call(a)
	}

	var wg sync.WaitGroup
	failures := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if got := f.Call(inputs[w]); got != sequential[w] {
					failures <- "worker result diverged from sequential result"
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(failures)
	for msg := range failures {
		t.Error(msg)
	}
}

func TestRegionInvariants(t *testing.T) {
	f := compile(t, []codegen.Range{{0, 3}, {4, 2}})

	pageSize := os.Getpagesize()
	assert.Zero(t, int(f.Entry())%pageSize, "entry pointer not page aligned")
	assert.Zero(t, f.RegionSize()%pageSize, "region size not a page multiple")
	assert.GreaterOrEqual(t, f.RegionSize(), f.CodeSize())
	assert.Len(t, f.Code(), f.CodeSize())
}

func TestCompileRejectsBadWidth(t *testing.T) {
	_, err := jit.Compile([]codegen.Range{{Offset: 0, Width: 11}})
	var werr *codegen.WidthError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, int32(11), werr.Width)

	_, err = jit.Compile([]codegen.Range{{Offset: 0, Width: 0}})
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	if !jit.Supported {
		t.Skip("emitted code cannot be invoked on this platform")
	}
	f, err := jit.Compile([]codegen.Range{{0, 1}})
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Nil(t, f.Code())
	assert.Zero(t, f.Entry())
}

func TestCompileSingle(t *testing.T) {
	if !jit.Supported {
		t.Skip("emitted code cannot be invoked on this platform")
	}

	rng := rand.New(rand.NewSource(31337))
	a := make([]float64, codegen.MaxWidth)
	for i := range a {
		a[i] = math.Log(rng.Float64())
	}

	// n = 0 degenerates to -Inf (running max never leaves its initial
	// value and the log clamp fires).
	f0, err := jit.CompileSingle(0)
	require.NoError(t, err)
	defer func() { _ = f0.Close() }()
	assert.True(t, math.IsInf(f0.Call(a), -1))

	// n = 1 runs the full pipeline rather than an early return, so it is
	// only as exact as the approximation round trip.
	f1, err := jit.CompileSingle(1)
	require.NoError(t, err)
	defer func() { _ = f1.Close() }()
	assert.InDelta(t, a[0], f1.Call(a), 1e-9)

	for n := 2; n <= codegen.MaxWidth; n++ {
		f, err := jit.CompileSingle(n)
		require.NoError(t, err)
		got := f.Call(a)
		require.NoError(t, f.Close())
		want := approx.FasterLogSumExp(a[:n])
		assert.InDelta(t, want, got, 1e-9*math.Max(1.0, math.Abs(want)), "n=%d", n)
	}

	_, err = jit.CompileSingle(codegen.MaxWidth + 1)
	require.Error(t, err)
}

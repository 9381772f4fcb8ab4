// Package bench is the measurement harness: it samples a log-probability
// array and a batch of random ranges, then evaluates the batched reduction
// repeatedly in one of several modes, from the exact interpreted baseline
// to the emitted native code.
package bench

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/fcostin/logsumexp-approx/approx"
	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/jit"
)

// Mode selects the reduction implementation a run measures.
type Mode string

const (
	// ModeBase: exact exp and log.
	ModeBase Mode = "base"
	// ModeFast: fast exp, exact log.
	ModeFast Mode = "fast"
	// ModeFaster: fast exp and fast log.
	ModeFaster Mode = "faster"
	// ModeFasterB: fast exp and fast log with split accumulation.
	ModeFasterB Mode = "fasterb"
	// ModeOnlySum: plain summation, the memory-bandwidth yardstick.
	ModeOnlySum Mode = "onlysum"
	// ModeJIT: one emitted native callable for the whole batch.
	ModeJIT Mode = "jit"
)

// Modes lists every valid mode in display order.
var Modes = []Mode{ModeBase, ModeFast, ModeFaster, ModeFasterB, ModeOnlySum, ModeJIT}

// ParseMode converts a mode name from config or command line.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unrecognised mode %q, expected one of base, fast, faster, fasterb, onlysum, jit", s)
}

// Params describes one benchmark run.
type Params struct {
	ArraySize   int   // number of doubles in the input array
	NumRanges   int   // ranges per batch
	MaxWidth    int   // widest sampled range, at most codegen.MaxWidth
	Trials      int   // batch evaluations
	Seed        int64 // seed for input and range sampling
	SortByWidth bool  // sort the batch by width before running
}

// DefaultParams returns the historical measurement setup: a 1000-element
// array, 5000 ranges up to width 10, 10000 trials.
func DefaultParams() Params {
	return Params{
		ArraySize: 1000,
		NumRanges: 5000,
		MaxWidth:  10,
		Trials:    10000,
		Seed:      12345,
	}
}

// Validate checks the parameters against the engine's limits.
func (p Params) Validate() error {
	if p.ArraySize < 1 {
		return fmt.Errorf("array size must be positive, got %d", p.ArraySize)
	}
	if p.NumRanges < 0 {
		return fmt.Errorf("range count must be non-negative, got %d", p.NumRanges)
	}
	if p.MaxWidth < 1 || p.MaxWidth > codegen.MaxWidth {
		return fmt.Errorf("max width must be in [1, %d], got %d", codegen.MaxWidth, p.MaxWidth)
	}
	if p.MaxWidth > p.ArraySize {
		return fmt.Errorf("max width %d exceeds array size %d", p.MaxWidth, p.ArraySize)
	}
	if p.Trials < 1 {
		return fmt.Errorf("trial count must be positive, got %d", p.Trials)
	}
	return nil
}

// SampleLogProbs fills a fresh array with log(U(0,1)) draws.
func SampleLogProbs(rng *rand.Rand, n int) []float64 {
	a := make([]float64, n)
	for i := range a {
		a[i] = math.Log(rng.Float64())
	}
	return a
}

// SampleRanges draws n ranges with width uniform on [1, w] and offset
// uniform on [0, m-width].
func SampleRanges(rng *rand.Rand, n, w, m int) []codegen.Range {
	ranges := make([]codegen.Range, n)
	for i := range ranges {
		width := 1 + rng.Intn(w)
		offset := rng.Intn(m - width + 1)
		ranges[i] = codegen.Range{Offset: int32(offset), Width: int32(width)}
	}
	return ranges
}

// SortByWidth stably sorts a batch by ascending width. The interpreted
// modes benefit from the branch-prediction locality; the emitted code is
// indifferent to order.
func SortByWidth(ranges []codegen.Range) {
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Width < ranges[j].Width
	})
}

// Result summarises one run.
type Result struct {
	Mode        Mode          `json:"mode"`
	Trials      int           `json:"trials"`
	NumRanges   int           `json:"numRanges"`
	Acc         float64       `json:"acc"`     // summed results across all trials
	Elapsed     time.Duration `json:"elapsed"` // evaluation time, excluding setup
	CompileTime time.Duration `json:"compileTime,omitempty"`
	CodeSize    int           `json:"codeSize,omitempty"`
}

// ReductionsPerSecond returns the throughput in single-range reductions per
// second.
func (r *Result) ReductionsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Trials) * float64(r.NumRanges) / r.Elapsed.Seconds()
}

// Progress reports completed trials during a run.
type Progress struct {
	Trial  int `json:"trial"`
	Trials int `json:"trials"`
}

// progressStride is how many trials pass between progress callbacks.
const progressStride = 256

// Run executes one benchmark run. onProgress may be nil; when set it is
// invoked from the benchmarking goroutine every few hundred trials. The
// context is checked at the same stride, so cancellation is prompt at
// benchmark scale.
func Run(ctx context.Context, p Params, mode Mode, onProgress func(Progress)) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(p.Seed))
	logps := SampleLogProbs(rng, p.ArraySize)
	ranges := SampleRanges(rng, p.NumRanges, p.MaxWidth, p.ArraySize)
	if p.SortByWidth {
		SortByWidth(ranges)
	}

	res := &Result{Mode: mode, Trials: p.Trials, NumRanges: p.NumRanges}

	var evalBatch func(a []float64) float64
	switch mode {
	case ModeJIT:
		start := time.Now()
		f, err := jit.Compile(ranges)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		res.CompileTime = time.Since(start)
		res.CodeSize = f.CodeSize()
		evalBatch = f.Call
	case ModeBase, ModeFast, ModeFaster, ModeFasterB, ModeOnlySum:
		reduce := scalarReduction(mode)
		evalBatch = func(a []float64) float64 {
			acc := 0.0
			for _, r := range ranges {
				acc += reduce(a[r.Offset : r.Offset+r.Width])
			}
			return acc
		}
	default:
		return nil, fmt.Errorf("unrecognised mode %q", mode)
	}

	start := time.Now()
	for trial := 0; trial < p.Trials; trial++ {
		res.Acc += evalBatch(logps)

		if trial%progressStride == progressStride-1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if onProgress != nil {
				onProgress(Progress{Trial: trial + 1, Trials: p.Trials})
			}
		}
	}
	res.Elapsed = time.Since(start)

	return res, nil
}

func scalarReduction(mode Mode) func([]float64) float64 {
	switch mode {
	case ModeBase:
		return approx.LogSumExp
	case ModeFast:
		return approx.FastLogSumExp
	case ModeFasterB:
		return approx.FasterBLogSumExp
	case ModeOnlySum:
		return approx.Sum
	default:
		return approx.FasterLogSumExp
	}
}

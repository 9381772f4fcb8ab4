package approx

import "math"

// The reductions below all compute log(sum_i(exp(a[i]))) over a slice of
// log-probabilities, stabilised by first subtracting the maximum and adding
// it back after the log. They differ only in which of exp/log is replaced by
// its fast approximation, and serve both as interpreter fallbacks and as
// oracles for the JIT engine's tests.
//
// Precondition for all of them: -Inf <= a[i] <= 0.

// Sum returns the plain sum of the elements. It is the degenerate reduction
// used to measure memory-bound throughput.
func Sum(a []float64) float64 {
	acc := 0.0
	for _, x := range a {
		acc += x
	}
	return acc
}

// LogSumExp is the exact, numerically stabilised reduction.
func LogSumExp(a []float64) float64 {
	aMax := math.Inf(-1)
	for _, x := range a {
		aMax = math.Max(x, aMax)
	}
	if math.IsInf(aMax, -1) || len(a) <= 1 {
		return aMax
	}
	acc := 0.0
	for _, x := range a {
		acc += math.Exp(x - aMax)
	}
	return math.Log(acc) + aMax
}

// FastLogSumExp replaces exp with FastExp but keeps the exact log.
func FastLogSumExp(a []float64) float64 {
	aMax := math.Inf(-1)
	for _, x := range a {
		aMax = math.Max(x, aMax)
	}
	if math.IsInf(aMax, -1) || len(a) <= 1 {
		return aMax
	}
	acc := 0.0
	for _, x := range a {
		acc += FastExp(x - aMax)
	}
	return math.Log(acc) + aMax
}

// FasterLogSumExp replaces both exp and log with their approximations. This
// is the scalar twin of what the JIT engine emits.
//
// TODO: consider biasing aMax to push more information into the exponent
// bits before the fast log.
func FasterLogSumExp(a []float64) float64 {
	aMax := math.Inf(-1)
	for _, x := range a {
		aMax = math.Max(x, aMax)
	}
	if math.IsInf(aMax, -1) || len(a) <= 1 {
		return aMax
	}
	acc := 0.0
	for _, x := range a {
		acc += FastExp(x - aMax)
	}
	return FastLog(acc) + aMax
}

// FasterBLogSumExp is FasterLogSumExp with the accumulation split over two
// independent chains to shorten the dependency latency of the adds.
func FasterBLogSumExp(a []float64) float64 {
	n := len(a)
	aMax := math.Inf(-1)
	for _, x := range a {
		aMax = math.Max(x, aMax)
	}
	if math.IsInf(aMax, -1) || n <= 1 {
		return aMax
	}
	m := n - (n % 2)
	acc0, acc1 := 0.0, 0.0
	for i := 0; i < m; i += 2 {
		acc0 += FastExp(a[i] - aMax)
		acc1 += FastExp(a[i+1] - aMax)
	}
	acc := acc0 + acc1
	if m != n {
		acc += FastExp(a[n-1] - aMax)
	}
	return FastLog(acc) + aMax
}

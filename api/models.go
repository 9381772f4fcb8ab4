package api

import (
	"time"

	"github.com/fcostin/logsumexp-approx/bench"
	"github.com/fcostin/logsumexp-approx/codegen"
)

// RangeSpec mirrors codegen.Range on the wire
type RangeSpec struct {
	Offset int32 `json:"offset"`
	Width  int32 `json:"width"`
}

// CompileRequest represents a request to compile a batch
type CompileRequest struct {
	Ranges []RangeSpec `json:"ranges"`
}

// LayoutChunk mirrors one emitted template chunk on the wire
type LayoutChunk struct {
	Name  string `json:"name"`
	Range int    `json:"range"`
	Off   int    `json:"off"`
	Len   int    `json:"len"`
}

// CompileResponse represents the outcome of compiling a batch
type CompileResponse struct {
	SessionID  string        `json:"sessionId"`
	CreatedAt  time.Time     `json:"createdAt"`
	NumRanges  int           `json:"numRanges"`
	CodeSize   int           `json:"codeSize"`
	RegionSize int           `json:"regionSize"`
	Layout     []LayoutChunk `json:"layout"`
	Dump       string        `json:"dump"`
}

// RunRequest asks for one evaluation of a compiled batch on freshly
// sampled input
type RunRequest struct {
	SessionID string `json:"sessionId"`
	Seed      int64  `json:"seed"`
}

// RunResponse carries the emitted code's result next to the interpreted
// oracle's
type RunResponse struct {
	SessionID string  `json:"sessionId"`
	InputLen  int     `json:"inputLen"`
	JIT       float64 `json:"jit"`
	Oracle    float64 `json:"oracle"`
	AbsDiff   float64 `json:"absDiff"`
}

// BenchRequest describes one benchmark run
type BenchRequest struct {
	ArraySize   int    `json:"arraySize,omitempty"`
	NumRanges   int    `json:"numRanges,omitempty"`
	MaxWidth    int    `json:"maxWidth,omitempty"`
	Trials      int    `json:"trials,omitempty"`
	Seed        int64  `json:"seed,omitempty"`
	SortByWidth bool   `json:"sortByWidth,omitempty"`
	Mode        string `json:"mode"`
}

// BenchResponse carries the run summary
type BenchResponse struct {
	Result              *bench.Result `json:"result"`
	ReductionsPerSecond float64       `json:"reductionsPerSecond"`
}

func toRanges(specs []RangeSpec) []codegen.Range {
	ranges := make([]codegen.Range, len(specs))
	for i, s := range specs {
		ranges[i] = codegen.Range{Offset: s.Offset, Width: s.Width}
	}
	return ranges
}

func toLayout(chunks []codegen.Chunk) []LayoutChunk {
	out := make([]LayoutChunk, len(chunks))
	for i, ch := range chunks {
		out[i] = LayoutChunk{Name: ch.Name, Range: ch.Range, Off: ch.Off, Len: ch.Len}
	}
	return out
}

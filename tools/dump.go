// Package tools provides the formatting helpers shared by the command
// line and the API server: annotated hexdumps of emitted code and layout
// summaries. The TUI inspector renders its own highlighted hexdump.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fcostin/logsumexp-approx/codegen"
)

// DumpOptions controls hexdump rendering
type DumpOptions struct {
	BytesPerLine int  // hex bytes per output line
	ShowOffsets  bool // prefix each line with its byte offset
	ShowRanges   bool // annotate chunks with the batch range they serve
}

// DefaultDumpOptions returns the standard rendering
func DefaultDumpOptions() *DumpOptions {
	return &DumpOptions{
		BytesPerLine: 16,
		ShowOffsets:  true,
		ShowRanges:   true,
	}
}

// DumpProgram renders emitted code as an annotated hexdump, one template
// chunk per block. The layout table must tile the code, as produced by the
// builder; a nil layout falls back to a plain dump.
func DumpProgram(code []byte, layout []codegen.Chunk, opts *DumpOptions) string {
	if opts == nil {
		opts = DefaultDumpOptions()
	}

	var sb strings.Builder
	if len(layout) == 0 {
		dumpChunk(&sb, code, 0, "", "", opts)
		return sb.String()
	}

	for _, ch := range layout {
		annot := ""
		if opts.ShowRanges && ch.Range >= 0 {
			annot = fmt.Sprintf("range %d", ch.Range)
		}
		end := ch.Off + ch.Len
		if end > len(code) {
			end = len(code)
		}
		dumpChunk(&sb, code[ch.Off:end], ch.Off, ch.Name, annot, opts)
	}
	return sb.String()
}

// dumpChunk writes one template's bytes, wrapping at BytesPerLine; the name
// and annotation appear on the first line only.
func dumpChunk(sb *strings.Builder, chunk []byte, base int, name, annot string, opts *DumpOptions) {
	width := opts.BytesPerLine
	if width < 1 {
		width = 16
	}

	for start := 0; start < len(chunk) || start == 0; start += width {
		end := start + width
		if end > len(chunk) {
			end = len(chunk)
		}

		if opts.ShowOffsets {
			fmt.Fprintf(sb, "%04x  ", base+start)
		}

		hex := make([]string, 0, width)
		for _, b := range chunk[start:end] {
			hex = append(hex, fmt.Sprintf("%02x", b))
		}
		fmt.Fprintf(sb, "%-*s", width*3, strings.Join(hex, " "))

		if start == 0 {
			fmt.Fprintf(sb, " %s", name)
			if annot != "" {
				fmt.Fprintf(sb, "  [%s]", annot)
			}
		}
		sb.WriteByte('\n')

		if len(chunk) == 0 {
			break
		}
	}
}

// LayoutStat aggregates one template's contribution to a program.
type LayoutStat struct {
	Name  string
	Count int
	Bytes int
}

// SummarizeLayout aggregates a layout table per template name, largest
// byte contribution first.
func SummarizeLayout(layout []codegen.Chunk) []LayoutStat {
	byName := make(map[string]*LayoutStat)
	for _, ch := range layout {
		st, ok := byName[ch.Name]
		if !ok {
			st = &LayoutStat{Name: ch.Name}
			byName[ch.Name] = st
		}
		st.Count++
		st.Bytes += ch.Len
	}

	stats := make([]LayoutStat, 0, len(byName))
	for _, st := range byName {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Bytes != stats[j].Bytes {
			return stats[i].Bytes > stats[j].Bytes
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// FormatSummary renders a layout summary as an aligned text table.
func FormatSummary(stats []LayoutStat) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %8s %8s\n", "template", "count", "bytes")
	total := 0
	for _, st := range stats {
		fmt.Fprintf(&sb, "%-16s %8d %8d\n", st.Name, st.Count, st.Bytes)
		total += st.Bytes
	}
	fmt.Fprintf(&sb, "%-16s %8s %8d\n", "total", "", total)
	return sb.String()
}

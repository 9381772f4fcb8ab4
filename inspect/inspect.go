// Package inspect is an interactive terminal inspector for compiled
// batches: a ranges panel, an annotated hexdump of the emitted code with
// the selected range highlighted, and live evaluation of the armed callable
// against the interpreted oracle on freshly rolled input.
package inspect

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/fcostin/logsumexp-approx/approx"
	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/jit"
)

// Inspector represents the terminal user interface over one compiled batch
type Inspector struct {
	App   *tview.Application
	Pages *tview.Pages

	// View panels
	RangesList *tview.List
	CodeView   *tview.TextView
	DetailView *tview.TextView
	StatusBar  *tview.TextView

	// State
	batch    []codegen.Range
	fn       *jit.Func
	array    []float64
	rng      *rand.Rand
	selected int
}

// New compiles the batch and builds the interface around the resulting
// handle. The caller runs it with Run; the handle is released when the
// interface shuts down.
func New(batch []codegen.Range, seed int64) (*Inspector, error) {
	fn, err := jit.Compile(batch)
	if err != nil {
		return nil, err
	}

	ins := &Inspector{
		App:   tview.NewApplication(),
		batch: batch,
		fn:    fn,
		rng:   rand.New(rand.NewSource(seed)),
	}
	ins.rollInput()

	ins.initializeViews()
	ins.buildLayout()
	ins.setupKeyBindings()
	ins.refresh()

	return ins, nil
}

// Run starts the interface and blocks until it is quit. The compiled
// handle is released on the way out.
func (i *Inspector) Run() error {
	defer func() { _ = i.fn.Close() }()
	return i.App.Run()
}

// arrayLen returns the smallest input array every compiled range fits in.
func (i *Inspector) arrayLen() int {
	n := 1
	for _, r := range i.batch {
		if end := int(r.Offset) + int(r.Width); end > n {
			n = end
		}
	}
	return n
}

// rollInput redraws the input array from log(U(0,1)).
func (i *Inspector) rollInput() {
	i.array = make([]float64, i.arrayLen())
	for j := range i.array {
		i.array[j] = math.Log(i.rng.Float64())
	}
}

// initializeViews creates all the view panels
func (i *Inspector) initializeViews() {
	i.RangesList = tview.NewList().ShowSecondaryText(false)
	i.RangesList.SetBorder(true).SetTitle(" Ranges ")
	for idx, r := range i.batch {
		i.RangesList.AddItem(fmt.Sprintf("%3d: offset %4d width %2d", idx, r.Offset, r.Width), "", 0, nil)
	}
	if len(i.batch) == 0 {
		i.RangesList.AddItem("(empty batch)", "", 0, nil)
	}
	i.RangesList.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		i.selected = index
		i.renderCode()
		i.renderDetails()
	})

	i.CodeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	i.CodeView.SetBorder(true).SetTitle(" Emitted Code ")

	i.DetailView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	i.DetailView.SetBorder(true).SetTitle(" Evaluation ")

	i.StatusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	i.StatusBar.SetText(" [yellow]r[-] roll input and re-evaluate   [yellow]q[-] quit")
}

// buildLayout arranges the panels
func (i *Inspector) buildLayout() {
	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(i.RangesList, 0, 3, true).
		AddItem(i.DetailView, 0, 2, false)

	main := tview.NewFlex().
		AddItem(left, 34, 0, true).
		AddItem(i.CodeView, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(i.StatusBar, 1, 0, false)

	i.Pages = tview.NewPages().AddPage("main", root, true, true)
	i.App.SetRoot(i.Pages, true)
}

// setupKeyBindings wires global keys
func (i *Inspector) setupKeyBindings() {
	i.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			i.App.Stop()
			return nil
		}
		switch event.Rune() {
		case 'q':
			i.App.Stop()
			return nil
		case 'r':
			i.rollInput()
			i.renderDetails()
			return nil
		}
		return event
	})
}

// refresh redraws every panel
func (i *Inspector) refresh() {
	i.renderCode()
	i.renderDetails()
}

// renderCode rewrites the hexdump with the selected range highlighted
func (i *Inspector) renderCode() {
	code := i.fn.Code()
	var sb strings.Builder

	const bytesPerLine = 16
	for _, ch := range i.fn.Layout() {
		chunk := code[ch.Off : ch.Off+ch.Len]
		for start := 0; start < len(chunk); start += bytesPerLine {
			end := start + bytesPerLine
			if end > len(chunk) {
				end = len(chunk)
			}
			hex := make([]string, 0, bytesPerLine)
			for _, b := range chunk[start:end] {
				hex = append(hex, fmt.Sprintf("%02x", b))
			}

			line := fmt.Sprintf("%04x  %-*s", ch.Off+start, bytesPerLine*3, strings.Join(hex, " "))
			if start == 0 {
				line += " " + ch.Name
			}
			switch {
			case ch.Range >= 0 && ch.Range == i.selected:
				if start == 0 {
					line += fmt.Sprintf("  <- range %d", ch.Range)
				}
				fmt.Fprintf(&sb, "[yellow]%s[-]\n", line)
			case ch.Range >= 0:
				fmt.Fprintf(&sb, "%s\n", line)
			default:
				fmt.Fprintf(&sb, "[blue]%s[-]\n", line)
			}
		}
	}
	i.CodeView.SetText(sb.String())
}

// renderDetails evaluates the callable against the interpreted oracle on
// the current input and shows per-handle facts
func (i *Inspector) renderDetails() {
	var sb strings.Builder

	fmt.Fprintf(&sb, "ranges     %d\n", len(i.batch))
	fmt.Fprintf(&sb, "code size  %d bytes\n", i.fn.CodeSize())
	fmt.Fprintf(&sb, "region     %d bytes\n", i.fn.RegionSize())
	fmt.Fprintf(&sb, "entry      %#x\n", i.fn.Entry())
	fmt.Fprintf(&sb, "input len  %d\n\n", len(i.array))

	oracle := 0.0
	for _, r := range i.batch {
		oracle += approx.FasterLogSumExp(i.array[r.Offset : r.Offset+r.Width])
	}

	if jit.Supported {
		got := i.fn.Call(i.array)
		fmt.Fprintf(&sb, "jit        %.9g\n", got)
		fmt.Fprintf(&sb, "oracle     %.9g\n", oracle)
		fmt.Fprintf(&sb, "abs diff   %.3g\n", math.Abs(got-oracle))
	} else {
		fmt.Fprintf(&sb, "oracle     %.9g\n", oracle)
		fmt.Fprintf(&sb, "[red]invocation unsupported on this platform[-]\n")
	}

	if sel := i.selected; sel >= 0 && sel < len(i.batch) {
		r := i.batch[sel]
		fmt.Fprintf(&sb, "\nselected range %d: offset %d width %d\n", sel, r.Offset, r.Width)
		fmt.Fprintf(&sb, "slice value    %.9g\n", approx.FasterLogSumExp(i.array[r.Offset:r.Offset+r.Width]))
	}

	i.DetailView.SetText(sb.String())
}

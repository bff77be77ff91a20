// Package diag prints parse and evaluation errors with the offending source
// line and a caret under the error column.
package diag

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/sambeau/pratt/pkg/pratt/calc"
	perrors "github.com/sambeau/pratt/pkg/pratt/errors"
)

// Printer writes diagnostics. Colour is applied only when Color is set.
type Printer struct {
	Out   io.Writer
	Color bool
}

func (p *Printer) paint(attrs []color.Attribute, s string) string {
	if !p.Color {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

var (
	headingAttrs = []color.Attribute{color.FgRed, color.Bold}
	caretAttrs   = []color.Attribute{color.FgRed}
	hintAttrs    = []color.Attribute{color.FgCyan}
)

// Error prints err. src is the text that was parsed; it may be empty when
// the source is unavailable.
func (p *Printer) Error(src string, err error) {
	var pe *perrors.ParseError
	var ee *calc.EvalError
	switch {
	case stderrors.As(err, &pe):
		pretty := pe.PrettyString()
		heading, rest, _ := strings.Cut(pretty, ":")
		fmt.Fprintln(p.Out, p.paint(headingAttrs, heading)+":"+rest)
		p.SourceContext(src, pe.Line(), pe.Column())

	case stderrors.As(err, &ee):
		fmt.Fprint(p.Out, p.paint(headingAttrs, "Runtime error"))
		if ee.Span.Start.Line > 0 {
			fmt.Fprintf(p.Out, ": line %d, column %d", ee.Span.Start.Line, ee.Span.Start.Column)
		}
		fmt.Fprintf(p.Out, "\n  %s\n", ee.Message)
		p.SourceContext(src, ee.Span.Start.Line, ee.Span.Start.Column)

	default:
		fmt.Fprintf(p.Out, "%s %v\n", p.paint(headingAttrs, "Error:"), err)
	}
}

// Hint prints an indented hint line.
func (p *Printer) Hint(msg string) {
	fmt.Fprintf(p.Out, "  %s %s\n", p.paint(hintAttrs, "hint:"), msg)
}

// SourceContext prints line lineNum of src, left-trimmed, with a caret under
// column colNum. Columns count runes; tabs count as eight.
func (p *Printer) SourceContext(src string, lineNum, colNum int) {
	lines := strings.Split(src, "\n")
	if lineNum <= 0 || lineNum > len(lines) {
		return
	}
	sourceLine := strings.TrimRight(lines[lineNum-1], "\r")

	trimmed := strings.TrimLeft(sourceLine, " \t")
	if trimmed == "" {
		return
	}
	indent := visualWidth(sourceLine[:len(sourceLine)-len(trimmed)])

	fmt.Fprintf(p.Out, "    %s\n", trimmed)
	if colNum <= 0 {
		return
	}

	visualCol := 0
	for i, r := range []rune(sourceLine) {
		if i >= colNum-1 {
			break
		}
		if r == '\t' {
			visualCol += 8
		} else {
			visualCol++
		}
	}
	pointer := strings.Repeat(" ", max(visualCol-indent, 0))
	fmt.Fprintf(p.Out, "    %s%s\n", pointer, p.paint(caretAttrs, "^"))
}

func visualWidth(s string) int {
	n := 0
	for _, r := range s {
		if r == '\t' {
			n += 8
		} else {
			n++
		}
	}
	return n
}

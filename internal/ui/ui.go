// Package ui holds the colored status lines and tables shared by the CLI
// commands. fatih/color honours NO_COLOR on its own.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	Red    = color.New(color.FgRed, color.Bold)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen, color.Bold)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// DisableColors turns color output off, e.g. for --no-color or tests.
func DisableColors(off bool) {
	color.NoColor = off
}

func Successf(w io.Writer, format string, args ...any) {
	_, _ = Green.Fprintf(w, "✓ "+format+"\n", args...)
}

func Warningf(w io.Writer, format string, args ...any) {
	_, _ = Yellow.Fprintf(w, "⚠ "+format+"\n", args...)
}

func Errorf(w io.Writer, format string, args ...any) {
	_, _ = Red.Fprintf(w, "✗ "+format+"\n", args...)
}

func Infof(w io.Writer, format string, args ...any) {
	_, _ = Cyan.Fprintf(w, format+"\n", args...)
}

// Header prints a bold title underlined with '='.
func Header(w io.Writer, text string) {
	_, _ = Bold.Fprintln(w, text)
	_, _ = fmt.Fprintln(w, strings.Repeat("=", len([]rune(text))))
}

// Field prints an aligned "label: value" line.
func Field(w io.Writer, label string, value any) {
	_, _ = fmt.Fprintf(w, "%-16s %v\n", label+":", value)
}

// NewTable returns a light-styled table writer mirrored to w.
func NewTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

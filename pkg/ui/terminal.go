package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Color functions for terminal output
var (
	Cyan   = colorize("\033[36m%s\033[0m")
	Yellow = colorize("\033[33m%s\033[0m")
	Red    = colorize("\033[31m%s\033[0m")
	Green  = colorize("\033[32m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Console writes the human readable progress lines of a run. A quiet
// console prints nothing.
type Console struct {
	w     io.Writer
	quiet bool
	color bool
}

// NewConsole creates a console on w. Colors are used only when w is a terminal.
func NewConsole(w io.Writer, quiet bool) *Console {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Console{w: w, quiet: quiet, color: color}
}

// Quiet reports whether output is suppressed
func (c *Console) Quiet() bool {
	return c.quiet
}

// Printf writes a raw line fragment
func (c *Console) Printf(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.w, format, args...)
}

func (c *Console) line(paint func(string) string, format string, args []interface{}) {
	if c.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c.color {
		msg = paint(msg)
	}
	fmt.Fprintln(c.w, msg)
}

func (c *Console) Info(format string, args ...interface{})    { c.line(Cyan, format, args) }
func (c *Console) Warn(format string, args ...interface{})    { c.line(Yellow, format, args) }
func (c *Console) Error(format string, args ...interface{})   { c.line(Red, format, args) }
func (c *Console) Success(format string, args ...interface{}) { c.line(Green, format, args) }

// Field prints a label and a value on one line
func (c *Console) Field(label, value string) {
	if c.quiet {
		return
	}
	if c.color {
		label, value = Cyan(label), Yellow(value)
	}
	fmt.Fprintf(c.w, "%s: %s\n", label, value)
}

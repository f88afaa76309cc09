// Package output renders command results for terminals and for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Format represents the output format type.
type Format string

const (
	FormatCLI   Format = "cli"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ParseFormat maps a --format value to a Format. Unknown values select the
// CLI format.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatJSON:
		return FormatJSON
	case FormatPlain:
		return FormatPlain
	default:
		return FormatCLI
	}
}

// ColorMode represents the color output mode.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode maps a --color value to a ColorMode.
func ParseColorMode(s string) ColorMode {
	switch ColorMode(s) {
	case ColorAlways:
		return ColorAlways
	case ColorNever:
		return ColorNever
	default:
		return ColorAuto
	}
}

// Formatter handles output formatting.
type Formatter struct {
	Writer    io.Writer
	Format    Format
	ColorMode ColorMode
}

// NewFormatter creates a new formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		Writer:    os.Stdout,
		Format:    FormatCLI,
		ColorMode: ColorAuto,
	}
}

// IsColorEnabled reports whether output is colored. In auto mode that
// needs a terminal, a non-plain format and no NO_COLOR in the environment.
func (f *Formatter) IsColorEnabled() bool {
	switch f.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if f.Format == FormatPlain || os.Getenv("NO_COLOR") != "" {
		return false
	}
	w, ok := f.Writer.(*os.File)
	return ok && (isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()))
}

// IsJSON returns true if output format is JSON.
func (f *Formatter) IsJSON() bool {
	return f.Format == FormatJSON
}

// Print outputs formatted text.
func (f *Formatter) Print(a ...any) {
	fmt.Fprint(f.Writer, a...)
}

// Println outputs formatted text with newline.
func (f *Formatter) Println(a ...any) {
	fmt.Fprintln(f.Writer, a...)
}

// Printf outputs formatted text.
func (f *Formatter) Printf(format string, a ...any) {
	fmt.Fprintf(f.Writer, format, a...)
}

// JSON outputs data as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatTime formats a time in local timezone.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatFireTime formats a fire time as "Mon Jan 2 15:04".
func FormatFireTime(t time.Time) string {
	return t.Local().Format("Mon Jan 2 15:04")
}

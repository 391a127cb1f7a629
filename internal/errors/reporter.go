package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"iloctool/internal/token"
)

// ErrorLevel is the severity of a reported diagnostic.
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
)

// SourceDiagnostic is a scan or parse error with a real source position,
// reported with the Rust-style caret rendering below. Pass-level failures
// (PassError) have no source position and are reported with PassReporter
// instead.
type SourceDiagnostic struct {
	Level    ErrorLevel
	Message  string
	Position token.Position
	Length   int
}

// ErrorReporter renders SourceDiagnostics against the original source text,
// underlining the offending span with a caret line.
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a reporter for a file's already-read source.
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one diagnostic as a multi-line, colorized string.
func (er *ErrorReporter) Format(d SourceDiagnostic) string {
	var result strings.Builder

	levelColor := er.levelColor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)

	result.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), er.filename, d.Position.Line, d.Position.Column))
	result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line >= 1 && d.Position.Line <= len(er.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), er.lines[d.Position.Line-1]))
		result.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), er.marker(d.Position.Column, d.Length, d.Level)))
	}

	return result.String()
}

func (er *ErrorReporter) levelColor(level ErrorLevel) func(...interface{}) string {
	if level == Warning {
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return color.New(color.FgRed, color.Bold).SprintFunc()
}

func (er *ErrorReporter) marker(column, length int, level ErrorLevel) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", max(0, column-1))
	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == Warning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return spaces + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PassReporter renders PassError failures at the granularity they actually
// carry: pass name, procedure, block, instruction — never a source span,
// since by the time a transformation pass runs the original source text is
// gone.
type PassReporter struct{}

// NewPassReporter creates a PassReporter.
func NewPassReporter() *PassReporter { return &PassReporter{} }

// Format renders a PassError as a single colorized line plus its code.
func (r *PassReporter) Format(err PassError) string {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	return fmt.Sprintf("%s %s\n", red("error["+err.Code()+"]:"), err.Error())
}

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"iloctool/internal/emit"
	"iloctool/internal/errors"
	"iloctool/internal/opt"
	"iloctool/internal/parser"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: iloctool <iloc_file> [passes] [-debug]")
		os.Exit(1)
	}

	path := ""
	passes := ""
	debug := false
	for _, arg := range os.Args[1:] {
		switch {
		case arg == "-debug":
			debug = true
		case path == "":
			path = arg
		default:
			passes = arg
		}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read %s: %s", path, err)
		os.Exit(1)
	}

	result := parser.ParseSource(string(source))
	if !result.OK() {
		reportParseErrors(path, string(source), result)
		os.Exit(1)
	}

	pipeline := opt.NewPipeline(passes, os.Stderr)
	if err := pipeline.Run(result.Program); err != nil {
		reportPassError(err)
		os.Exit(1)
	}

	if debug {
		fmt.Print(emit.PrintDebug(result.Program))
	} else {
		fmt.Print(emit.Print(result.Program))
	}
}

// reportParseErrors prints every scan and parse error collected for path,
// in the caret-diagnostic style the teacher's CLI uses for source-position
// errors.
func reportParseErrors(path, source string, result *parser.ParseResult) {
	reporter := errors.NewErrorReporter(path, source)
	for _, e := range result.ScanErrors {
		fmt.Print(reporter.Format(errors.SourceDiagnostic{
			Level: errors.Error, Message: e.Message, Position: e.Position, Length: e.Length,
		}))
	}
	for _, e := range result.ParseErrors {
		fmt.Print(reporter.Format(errors.SourceDiagnostic{
			Level: errors.Error, Message: e.Message, Position: e.Position,
		}))
	}
}

// reportPassError prints a pass-level failure (no source position) through
// the shared PassReporter.
func reportPassError(err error) {
	if pe, ok := err.(errors.PassError); ok {
		reporter := errors.NewPassReporter()
		color.Red("%s", reporter.Format(pe))
		return
	}
	color.Red("%s", err)
}

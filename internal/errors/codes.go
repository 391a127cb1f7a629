// Package errors defines the pass-level error taxonomy for the ILOC
// optimizer: every failure a pass can raise is one of four kinds, each
// fatal, none locally recoverable.
//
// Code ranges mirror the taxonomy rather than a per-feature catalogue,
// since a back-end pass has no large surface of "kinds of mistakes" the
// way a front-end compiler's semantic analysis does:
//
//	P0001-P0099: precondition failures (an analysis ran on IR it doesn't hold for)
//	L0001-L0099: lookup failures (a referenced name doesn't exist)
//	U0001-U0099: unsupported operations (a well-formed input exceeds what a pass implements)
//	G0001-G0099: usage errors (bad CLI invocation, unreadable file, malformed source)
package errors

const (
	// P0001: a pass assumed a program invariant (e.g. "already in SSA form")
	// that did not hold.
	CodePreconditionFailed = "P0001"

	// L0001: a referenced block, procedure, or value name does not exist.
	CodeLookupFailed = "L0001"

	// U0001: the input is well-formed ILOC but names a construct this pass
	// does not implement (an unrecognized opcode reaching a pass that
	// switches on opcode, for instance).
	CodeUnsupportedOperation = "U0001"

	// G0001: the CLI was invoked incorrectly, or the source file could not
	// be read or parsed.
	CodeUsageError = "G0001"
)

// Category is the coarse grouping a code belongs to, used by the reporter
// to choose a heading and a color.
func Category(code string) string {
	if len(code) == 0 {
		return "unknown"
	}
	switch code[0] {
	case 'P':
		return "precondition"
	case 'L':
		return "lookup"
	case 'U':
		return "unsupported"
	case 'G':
		return "usage"
	default:
		return "unknown"
	}
}

// Description returns a human-readable one-line description of a taxonomy
// code, for diagnostic headers.
func Description(code string) string {
	switch code {
	case CodePreconditionFailed:
		return "a required program invariant did not hold"
	case CodeLookupFailed:
		return "a referenced name could not be found"
	case CodeUnsupportedOperation:
		return "the input uses a construct this pass does not support"
	case CodeUsageError:
		return "invalid invocation or unreadable input"
	default:
		return "unknown error"
	}
}

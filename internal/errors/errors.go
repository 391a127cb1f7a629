package errors

import "fmt"

// PassError is satisfied by every error a pass or analysis can return. All
// four are fatal: there is no local recovery, only reporting and a non-zero
// exit from the CLI.
type PassError interface {
	error
	Code() string
	PassName() string
}

// context carries the optional location fields shared by the four error
// kinds: which procedure, block, and instruction was being processed when
// the failure occurred. Any of these may be empty.
type context struct {
	Pass        string
	Procedure   string
	Block       string
	Instruction string
}

func (c context) describe() string {
	s := c.Pass
	if c.Procedure != "" {
		s += " in procedure " + c.Procedure
	}
	if c.Block != "" {
		s += ", block " + c.Block
	}
	if c.Instruction != "" {
		s += " (" + c.Instruction + ")"
	}
	return s
}

// PreconditionFailed reports that a pass's required invariant over the
// input program did not hold — e.g. DCE or register allocation invoked on a
// program that is not in SSA form, or a spilled argument whose exit block
// has no predecessor to reload it in.
type PreconditionFailed struct {
	context
	Reason string
}

func NewPreconditionFailed(pass, procedure, reason string) *PreconditionFailed {
	return &PreconditionFailed{context: context{Pass: pass, Procedure: procedure}, Reason: reason}
}

func (e *PreconditionFailed) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.describe(), e.Reason)
}
func (e *PreconditionFailed) Code() string     { return CodePreconditionFailed }
func (e *PreconditionFailed) PassName() string { return e.Pass }

// LookupFailed reports that a pass tried to resolve a name — a block, a
// procedure, or a value — and found nothing.
type LookupFailed struct {
	context
	Kind string // "block", "procedure", "value", ...
	Name string
}

func NewLookupFailed(pass, procedure, kind, name string) *LookupFailed {
	return &LookupFailed{context: context{Pass: pass, Procedure: procedure}, Kind: kind, Name: name}
}

func (e *LookupFailed) Error() string {
	return fmt.Sprintf("%s: %s %q not found", e.describe(), e.Kind, e.Name)
}
func (e *LookupFailed) Code() string     { return CodeLookupFailed }
func (e *LookupFailed) PassName() string { return e.Pass }

// UnsupportedOperation reports that the input is well-formed but names a
// construct the pass does not implement.
type UnsupportedOperation struct {
	context
	Operation string
}

func NewUnsupportedOperation(pass, procedure, block, operation string) *UnsupportedOperation {
	return &UnsupportedOperation{context: context{Pass: pass, Procedure: procedure, Block: block}, Operation: operation}
}

func (e *UnsupportedOperation) Error() string {
	return fmt.Sprintf("%s: unsupported operation %q", e.describe(), e.Operation)
}
func (e *UnsupportedOperation) Code() string     { return CodeUnsupportedOperation }
func (e *UnsupportedOperation) PassName() string { return e.Pass }

// UsageError reports a CLI invocation or source-input problem: missing
// arguments, an unreadable file, or parse/scan failures surfaced from
// internal/parser.
type UsageError struct {
	Message string
}

func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string    { return e.Message }
func (e *UsageError) Code() string     { return CodeUsageError }
func (e *UsageError) PassName() string { return "cli" }

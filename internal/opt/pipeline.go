package opt

import (
	"fmt"
	"io"

	"iloctool/internal/analysis"
	"iloctool/internal/ir"
	"iloctool/internal/regalloc"
)

// PassLetter is one character of the CLI pass-selection string: l (LVN), s
// (SSA construction), d (DCE), r (register allocation).
type PassLetter byte

const (
	PassLVN      PassLetter = 'l'
	PassSSA      PassLetter = 's'
	PassDCE      PassLetter = 'd'
	PassRegalloc PassLetter = 'r'
)

// DefaultPasses is the pass string run when the CLI is given none, per
// spec.md §6.
const DefaultPasses = "lsdr"

// Pipeline runs the selected passes over every procedure of a program, in
// the order the pass letters are given, printing two progress lines per pass
// per procedure to Diagnostics: a `performing ...` banner before the pass
// (mirroring the original C++ driver's `std::cerr` banners) and a line
// saying whether the pass changed the procedure.
type Pipeline struct {
	Passes      string
	Diagnostics io.Writer
}

// NewPipeline builds a pipeline running passes (or DefaultPasses if empty),
// narrating to diagnostics.
func NewPipeline(passes string, diagnostics io.Writer) *Pipeline {
	if passes == "" {
		passes = DefaultPasses
	}
	return &Pipeline{Passes: passes, Diagnostics: diagnostics}
}

// Run applies every selected pass, in order, to every procedure in prog.
// Register behavior is inferred as part of the 'l' pass (just before LVN)
// and of the 's' pass (just after SSA construction); when neither letter is
// selected, no inference runs. SSA's dominator-tree CSE gating reads the
// Behavior tags left by the most recent inference.
func (pl *Pipeline) Run(prog *ir.Program) error {
	for _, proc := range prog.Procedures {
		for _, letter := range pl.Passes {
			if err := pl.runPass(PassLetter(letter), prog, proc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (pl *Pipeline) runPass(letter PassLetter, prog *ir.Program, proc *ir.Procedure) error {
	name := pl.passName(letter)
	pl.logf("performing %s on %s\n", name, proc.Frame.Name)

	before := snapshot(proc)

	switch letter {
	case PassLVN:
		if err := pl.inferBehavior(proc); err != nil {
			return err
		}
		RunLVN(proc)
	case PassSSA:
		if err := ConstructSSA(name, proc); err != nil {
			return err
		}
		ir.MarkSSAConstructed(prog)
		if err := pl.inferBehavior(proc); err != nil {
			return err
		}
	case PassDCE:
		if err := RequireSSA(name, prog); err != nil {
			return err
		}
		if err := RunDCE(name, proc); err != nil {
			return err
		}
	case PassRegalloc:
		if err := RequireSSA(name, prog); err != nil {
			return err
		}
		if err := regalloc.Allocate(name, proc); err != nil {
			return err
		}
	default:
		return nil
	}

	pl.logf("%s %s\n", name, changeWord(before, snapshot(proc)))
	return nil
}

func (pl *Pipeline) inferBehavior(proc *ir.Procedure) error {
	tree, err := analysis.BuildDominatorTree("behavior", proc, analysis.Forward)
	if err != nil {
		return err
	}
	analysis.InferRegisterBehavior(proc, tree)
	return nil
}

func (pl *Pipeline) passName(letter PassLetter) string {
	switch letter {
	case PassLVN:
		return "local value numbering"
	case PassSSA:
		return "ssa construction"
	case PassDCE:
		return "dead code elimination"
	case PassRegalloc:
		return "register allocation"
	default:
		return fmt.Sprintf("unknown pass %q", rune(letter))
	}
}

func (pl *Pipeline) logf(format string, args ...interface{}) {
	if pl.Diagnostics == nil {
		return
	}
	fmt.Fprintf(pl.Diagnostics, format, args...)
}

// snapshot captures a cheap fingerprint of a procedure's instruction text,
// just enough to report whether a pass actually changed anything.
func snapshot(proc *ir.Procedure) string {
	var s string
	for _, b := range proc.OrderedBlocks() {
		for _, inst := range b.Instructions {
			s += fmt.Sprintf("%v|%v|%v|", inst.Deleted, inst.Operation.Opcode, inst.Operation.RValues)
			s += fmt.Sprintf("%v|", inst.Operation.LValues)
		}
		for _, phi := range b.PhiNodes {
			s += fmt.Sprintf("phi|%v|%v|", phi.Deleted, phi.LValue)
		}
	}
	return s
}

func changeWord(before, after string) string {
	if before == after {
		return "made no change"
	}
	return "changed the program"
}

// Package emit prints an *ir.Program back to ILOC text. Print renders the
// program a parser could re-read; PrintDebug additionally exposes deleted
// instructions and phi nodes for inspecting a pass's intermediate state.
package emit

import (
	"fmt"
	"strings"

	"iloctool/internal/ir"
)

// storeSourceOperandCount is the number of rvalue operands printed before
// the arrow for each store-family opcode; NewOperation folds the original
// destination operand(s) onto the end of RValues, so printing must undo
// that fold. Every store opcode stores exactly one value, so this is always
// 1 — the remaining operands are the destination address.
const storeSourceOperandCount = 1

// Printer accumulates emitted ILOC text, matching the teacher's
// indent/output-builder printer shape.
type Printer struct {
	debug  bool
	indent string
	output strings.Builder
}

// Print renders prog in normal mode: one instruction per line, deleted
// instructions and phi nodes omitted.
func Print(prog *ir.Program) string {
	p := &Printer{indent: "\t"}
	p.writeProgram(prog)
	return p.output.String()
}

// PrintDebug renders prog with deleted instructions prefixed "(deleted)"
// and each block's phi nodes shown as "(phi): lval (pred->rval, ...)".
func PrintDebug(prog *ir.Program) string {
	p := &Printer{indent: "\t", debug: true}
	p.writeProgram(prog)
	return p.output.String()
}

func (p *Printer) write(line string) {
	p.output.WriteString(line)
	p.output.WriteByte('\n')
}

func (p *Printer) writeProgram(prog *ir.Program) {
	for _, op := range prog.PseudoOps {
		p.write(op.Text)
	}
	for _, proc := range prog.Procedures {
		p.writeProcedure(proc)
	}
}

func (p *Printer) writeProcedure(proc *ir.Procedure) {
	p.write(frameHeader(proc.Frame))
	for _, b := range proc.OrderedBlocks() {
		if p.debug {
			for _, phi := range b.PhiNodes {
				if phi.Deleted {
					continue
				}
				p.write(p.indent + "(phi): " + phiText(phi))
			}
		}
		for _, inst := range b.Instructions {
			if inst.Deleted && !p.debug {
				continue
			}
			p.write(p.instructionLine(inst))
		}
	}
	p.write(".end")
}

func frameHeader(f ir.Frame) string {
	parts := []string{".frame " + f.Name, fmt.Sprintf("%d", f.FrameSize)}
	for _, arg := range f.Arguments {
		parts = append(parts, arg.FullText())
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) instructionLine(inst *ir.Instruction) string {
	var b strings.Builder
	b.WriteString(p.indent)
	if p.debug && inst.Deleted {
		b.WriteString("(deleted) ")
	}
	if inst.Label != "" {
		b.WriteString(inst.Label + ": ")
	}
	b.WriteString(operationText(inst.Operation))
	return b.String()
}

func operationText(op ir.Operation) string {
	var b strings.Builder
	b.WriteString(op.Opcode.String())

	if isStoreOpcode(op.Opcode) {
		n := storeSourceOperandCount
		if n > len(op.RValues) {
			n = len(op.RValues)
		}
		b.WriteString(" " + joinValues(op.RValues[:n]))
		b.WriteString(" " + op.Arrow + " " + joinValues(op.RValues[n:]))
		return b.String()
	}

	if len(op.RValues) > 0 {
		b.WriteString(" " + joinValues(op.RValues))
	}
	if op.Arrow != "" {
		b.WriteString(" " + op.Arrow)
		if len(op.LValues) > 0 {
			b.WriteString(" " + joinValues(op.LValues))
		}
	}
	return b.String()
}

func phiText(phi *ir.PhiNode) string {
	parts := make([]string, 0, len(phi.InputOrder))
	for _, pred := range phi.InputOrder {
		parts = append(parts, fmt.Sprintf("%s->%s", pred, phi.Inputs[pred].FullText()))
	}
	return fmt.Sprintf("%s (%s)", phi.LValue.FullText(), strings.Join(parts, ", "))
}

func joinValues(values []ir.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.FullText()
	}
	return strings.Join(parts, ", ")
}

func isStoreOpcode(op ir.Opcode) bool {
	switch op {
	case ir.OpStore, ir.OpStoreAI, ir.OpStoreAO, ir.OpFStore, ir.OpFStoreAI, ir.OpFStoreAO:
		return true
	default:
		return false
	}
}

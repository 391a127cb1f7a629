package ir

import "sort"

// NewProgram returns an empty, pre-SSA Program.
func NewProgram() *Program {
	return &Program{}
}

// AddProcedure appends proc to the program in parse order.
func (p *Program) AddProcedure(proc *Procedure) {
	p.Procedures = append(p.Procedures, proc)
}

// NewProcedure returns an empty procedure for the given frame, ready to
// receive blocks via AddBlock.
func NewProcedure(frame Frame) *Procedure {
	return &Procedure{
		Frame:  frame,
		Blocks: make(map[string]*BasicBlock),
	}
}

// AddBlock inserts b into the procedure, assigning it the next stable
// integer order and recording it in BlockOrder. The caller is responsible
// for giving each block a unique DebugName.
func (p *Procedure) AddBlock(b *BasicBlock) {
	b.Order = len(p.BlockOrder)
	p.Blocks[b.DebugName] = b
	p.BlockOrder = append(p.BlockOrder, b.DebugName)
}

// NewBasicBlock returns an empty block with the given debug name.
func NewBasicBlock(name string) *BasicBlock {
	return &BasicBlock{DebugName: name}
}

// AddInstruction appends inst to the block and stamps its containing block
// name.
func (b *BasicBlock) AddInstruction(inst *Instruction) {
	inst.ContainingBlockName = b.DebugName
	b.Instructions = append(b.Instructions, inst)
}

// AddSuccessor links from as a predecessor of to, recording each in the
// other's adjacency list exactly once. Order of AddSuccessor calls on a
// block determines After's operand order (branch target before fall-through,
// per the grammar's convention of listing the fall-through edge last).
func AddSuccessor(from, to *BasicBlock) {
	if !containsString(from.After, to.DebugName) {
		from.After = append(from.After, to.DebugName)
	}
	if !containsString(to.Before, from.DebugName) {
		to.Before = append(to.Before, from.DebugName)
	}
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// SortedStringSet returns a sorted copy of a string set's keys, the
// canonical form dataflow fixed-point comparisons rely on for deterministic
// equality.
func SortedStringSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// StringSetEqual reports whether two string sets contain exactly the same
// members, used by every fixed-point dataflow pass to detect convergence.
func StringSetEqual(a, b map[string]bool) bool {
	na, nb := 0, 0
	for _, v := range a {
		if v {
			na++
		}
	}
	for _, v := range b {
		if v {
			nb++
		}
	}
	if na != nb {
		return false
	}
	for k, v := range a {
		if v && !b[k] {
			return false
		}
	}
	return true
}

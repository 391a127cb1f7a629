package opt

import (
	"iloctool/internal/analysis"
	"iloctool/internal/ir"
)

// conditionalBranchOps are the cbr_* family: the only opcodes DCE's sweep
// ever rewrites to an unconditional jump.
var conditionalBranchOps = map[ir.Opcode]bool{
	ir.OpCbr: true, ir.OpCbrNE: true, ir.OpCbrLT: true, ir.OpCbrLE: true,
	ir.OpCbrGT: true, ir.OpCbrGE: true, ir.OpCbrEQ: true,
}

// dceState tracks which instructions and phis the mark phase has decided
// are necessary, plus the work queue driving that decision to a fixed
// point.
type dceState struct {
	proc        *ir.Procedure
	postDom     *analysis.DominatorTree
	controlDeps *analysis.DominanceFrontiers
	info        *ir.SSAInfo
	phiBlock    map[*ir.PhiNode]string
	necessaryI  map[*ir.Instruction]bool
	necessaryP  map[*ir.PhiNode]bool
	queueI      []*ir.Instruction
	queueP      []*ir.PhiNode
}

// RunDCE eliminates dead code from proc by control-dependence-driven
// mark-and-sweep, per §4.8. proc must already be in SSA form.
func RunDCE(pass string, proc *ir.Procedure) error {
	postDom, err := analysis.BuildDominatorTree(pass, proc, analysis.Backward)
	if err != nil {
		return err
	}
	controlDeps := analysis.BuildDominanceFrontiers(proc, postDom)
	info := ir.BuildSSAInfo(proc)

	s := &dceState{
		proc:        proc,
		postDom:     postDom,
		controlDeps: controlDeps,
		info:        info,
		phiBlock:    map[*ir.PhiNode]string{},
		necessaryI:  map[*ir.Instruction]bool{},
		necessaryP:  map[*ir.PhiNode]bool{},
	}

	for _, b := range proc.OrderedBlocks() {
		for _, phi := range b.PhiNodes {
			s.phiBlock[phi] = b.DebugName
		}
	}

	s.seed()
	s.propagate()
	s.sweep()

	proc.InvalidateSSA()
	return nil
}

// seed marks every possibly-side-effecting instruction necessary: stores,
// address-computing loads, calls, returns, jumps, and I/O.
func (s *dceState) seed() {
	for _, b := range s.proc.OrderedBlocks() {
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			if inst.HasPossibleSideEffects() {
				s.markInstruction(inst)
			}
		}
	}
}

func (s *dceState) markInstruction(inst *ir.Instruction) {
	if s.necessaryI[inst] {
		return
	}
	s.necessaryI[inst] = true
	s.queueI = append(s.queueI, inst)
}

func (s *dceState) markPhi(phi *ir.PhiNode) {
	if s.necessaryP[phi] {
		return
	}
	s.necessaryP[phi] = true
	s.queueP = append(s.queueP, phi)
}

// propagate runs the work-queue loop to a fixed point: every necessary
// item's control dependences and operand definitions become necessary too.
func (s *dceState) propagate() {
	for len(s.queueI) > 0 || len(s.queueP) > 0 {
		for len(s.queueI) > 0 {
			inst := s.queueI[0]
			s.queueI = s.queueI[1:]
			s.markControlDependences(inst.ContainingBlockName)
			for _, rv := range inst.Operation.RValues {
				s.markDefinitionOf(rv)
			}
		}
		for len(s.queueP) > 0 {
			phi := s.queueP[0]
			s.queueP = s.queueP[1:]
			s.markControlDependences(s.phiBlock[phi])
			for _, pred := range phi.InputOrder {
				s.markDefinitionOf(phi.Inputs[pred])
			}
		}
	}
}

// markControlDependences marks necessary the terminating conditional branch
// of every block in blockName's control-dependence set (its post-dominance
// frontier): blockName's execution is conditioned on one of those branches.
func (s *dceState) markControlDependences(blockName string) {
	for _, c := range s.controlDeps.Of(blockName) {
		cb, ok := s.proc.Block(c)
		if !ok {
			continue
		}
		term := cb.Terminator()
		if term == nil || term.Deleted {
			continue
		}
		if conditionalBranchOps[term.Operation.Opcode] {
			s.markInstruction(term)
		}
	}
}

func (s *dceState) markDefinitionOf(v ir.Value) {
	if !v.IsVirtualReg() {
		return
	}
	if inst := s.info.DefinitionOf(v); inst != nil {
		s.markInstruction(inst)
		return
	}
	if phi := s.info.PhiDefinitionOf(v); phi != nil {
		s.markPhi(phi)
	}
}

// sweep removes everything the mark phase left unnecessary: phis are
// deleted outright, unlabeled straight-line instructions are deleted, and
// unnecessary conditional branches collapse to an unconditional jump to
// their block's nearest post-dominator (their post-dominator-tree parent).
// A dead instruction carrying a block label is kept, since deleting it
// would lose the block's entry point.
func (s *dceState) sweep() {
	for _, b := range s.proc.OrderedBlocks() {
		var keptPhis []*ir.PhiNode
		for _, phi := range b.PhiNodes {
			if s.necessaryP[phi] {
				keptPhis = append(keptPhis, phi)
			} else {
				phi.MarkDeleted()
			}
		}
		b.PhiNodes = keptPhis

		for _, inst := range b.Instructions {
			if inst.Deleted || s.necessaryI[inst] {
				continue
			}
			if conditionalBranchOps[inst.Operation.Opcode] {
				target := s.postDom.FindParentOf(b.DebugName)
				op, err := ir.NewOperation(ir.OpJumpI, "->", nil, []ir.Value{ir.NewLabel(target)})
				if err != nil {
					continue
				}
				inst.Operation = op
				continue
			}
			if inst.Label != "" {
				continue
			}
			inst.MarkDeleted()
		}
	}
}

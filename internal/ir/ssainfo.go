package ir

// SSAInfo is the cached uses/definitions index for a Procedure: for every
// virtual register name it knows, it records the one instruction (or phi)
// that defines it and every instruction (or phi) that uses it. Passes that
// mutate a procedure's instructions must call Procedure.InvalidateSSA (or
// rebuild directly) before relying on a fresh SSAInfo again.
type SSAInfo struct {
	// Definitions maps a value's FullText to the instruction defining it. A
	// name absent from this map is phi-defined (see PhiDefinitions), a formal
	// argument, a special register, or undefined.
	Definitions map[string]*Instruction
	// PhiDefinitions maps a value's FullText to the phi defining it, for
	// names defined by a phi rather than an instruction.
	PhiDefinitions map[string]*PhiNode
	// Uses maps a value's FullText to every instruction that reads it as an
	// rvalue, in first-encountered order.
	Uses map[string][]*Instruction
	// PhiUses maps a value's FullText to every phi input occurrence that
	// reads it.
	PhiUses map[string][]*PhiNode
	// Predefined holds the FullText of every value considered defined at
	// procedure entry rather than by any instruction or phi: the four
	// special registers (%vr0_0..%vr3_0) and each formal argument at
	// subscript "0", per §4.5.
	Predefined map[string]bool
}

// newSSAInfo allocates an empty SSAInfo with initialized maps.
func newSSAInfo() *SSAInfo {
	return &SSAInfo{
		Definitions:    make(map[string]*Instruction),
		PhiDefinitions: make(map[string]*PhiNode),
		Uses:           make(map[string][]*Instruction),
		PhiUses:        make(map[string][]*PhiNode),
		Predefined:     make(map[string]bool),
	}
}

// seedPredefined marks the four special registers and proc's formal
// arguments, all at subscript "0", as predefined at entry: BuildSSAInfo
// should not treat their absence from Definitions as "undefined".
func seedPredefined(info *SSAInfo, proc *Procedure) {
	for i := 0; i < SpecialRegisterCount; i++ {
		v := Value{Name: SpecialRegisterName(i), Subscript: "0", Type: TypeVirtualReg}
		info.Predefined[v.FullText()] = true
	}
	for _, arg := range proc.Frame.Arguments {
		v := Value{Name: arg.Name, Subscript: "0", Type: TypeVirtualReg}
		info.Predefined[v.FullText()] = true
	}
}

// BuildSSAInfo walks every block of proc once, recording each instruction's
// and phi's definitions and uses, and caches the result on proc.SSA.
func BuildSSAInfo(proc *Procedure) *SSAInfo {
	info := newSSAInfo()
	seedPredefined(info, proc)
	for _, b := range proc.OrderedBlocks() {
		for _, phi := range b.PhiNodes {
			if phi.Deleted {
				continue
			}
			info.PhiDefinitions[phi.LValue.FullText()] = phi
			for _, pred := range phi.InputOrder {
				rv := phi.Inputs[pred]
				if rv.IsVirtualReg() {
					info.PhiUses[rv.FullText()] = append(info.PhiUses[rv.FullText()], phi)
				}
			}
		}
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			for _, lv := range inst.Operation.LValues {
				if lv.IsVirtualReg() {
					info.Definitions[lv.FullText()] = inst
				}
			}
			for _, rv := range inst.Operation.RValues {
				if rv.IsVirtualReg() {
					info.Uses[rv.FullText()] = append(info.Uses[rv.FullText()], inst)
				}
			}
		}
	}
	proc.SSA = info
	return info
}

// InvalidateSSA drops the cached SSAInfo; the next caller that needs it must
// rebuild via BuildSSAInfo.
func (p *Procedure) InvalidateSSA() { p.SSA = nil }

// EnsureSSAInfo returns proc.SSA, rebuilding it first if it is stale or
// absent.
func EnsureSSAInfo(proc *Procedure) *SSAInfo {
	if proc.SSA == nil {
		return BuildSSAInfo(proc)
	}
	return proc.SSA
}

// DefinitionOf returns the instruction defining v (by full SSA name), or nil
// if v is defined by a phi, is a formal argument, or is undefined.
func (s *SSAInfo) DefinitionOf(v Value) *Instruction {
	return s.Definitions[v.FullText()]
}

// PhiDefinitionOf returns the phi defining v, or nil if v is not phi-defined.
func (s *SSAInfo) PhiDefinitionOf(v Value) *PhiNode {
	return s.PhiDefinitions[v.FullText()]
}

// UsesOf returns every instruction that reads v as an rvalue.
func (s *SSAInfo) UsesOf(v Value) []*Instruction {
	return s.Uses[v.FullText()]
}

// IsDefined reports whether v has a definition site this index knows about:
// an instruction, a phi, or the implicit entry definition of a special
// register or formal argument.
func (s *SSAInfo) IsDefined(v Value) bool {
	full := v.FullText()
	if s.Predefined[full] {
		return true
	}
	if _, ok := s.Definitions[full]; ok {
		return true
	}
	_, ok := s.PhiDefinitions[full]
	return ok
}

// UseCount returns the number of instruction + phi occurrences that read v,
// the quantity the Chaitin-Briggs spill heuristic divides by interference
// degree.
func (s *SSAInfo) UseCount(v Value) int {
	return len(s.Uses[v.FullText()]) + len(s.PhiUses[v.FullText()])
}

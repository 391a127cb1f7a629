package opt

import (
	"strconv"

	"iloctool/internal/analysis"
	"iloctool/internal/errors"
	"iloctool/internal/ir"
)

// exprScope is one level of the "available expressions" stack used by
// dominator-tree value numbering during renaming: a block pushes one scope
// on entry and pops it on exit, so a later sibling subtree never sees an
// expression computed only in an earlier one.
type exprScope struct {
	table map[ssaExprKey]ir.Value
}

// ssaExprKey is the dominator-tree value-numbering key for an already-
// renamed instruction: (opcode, rvalue1 text, rvalue2 text), canonicalized
// for commutative opcodes so operand order doesn't defeat a match.
type ssaExprKey struct {
	op  ir.Opcode
	rv1 string
	rv2 string
}

// renameState is the bookkeeping threaded through the dominator-tree walk:
// one rename stack per original register name, plus the available-
// expressions scope stack. A stack entry is the full SSA Value current
// readers of that original name should see — usually a fresh subscript of
// the same name, but a dominator-tree-CSE alias redirects entirely to a
// different name's existing SSA value.
type renameState struct {
	proc     *ir.Procedure
	tree     *analysis.DominatorTree
	counters map[string]int        // original name -> next subscript to mint
	stacks   map[string][]ir.Value // original name -> stack of live SSA values
	scopes   []*exprScope
}

// ConstructSSA converts proc into pruned SSA form, per §4.7: Cytron-style
// iterated-dominance-frontier phi placement pruned by live-variable in-sets,
// followed by a dominator-tree renaming walk that also performs
// dominator-tree value numbering on expression-category instructions.
func ConstructSSA(pass string, proc *ir.Procedure) error {
	tree, err := analysis.BuildDominatorTree(pass, proc, analysis.Forward)
	if err != nil {
		return err
	}
	live := analysis.BuildLiveSets(proc, analysis.NameOnly)
	df := analysis.BuildDominanceFrontiers(proc, tree)

	placePhis(proc, tree, df, live)

	rs := &renameState{
		proc:     proc,
		tree:     tree,
		counters: map[string]int{},
		stacks:   map[string][]ir.Value{},
	}
	bootstrapRenameStacks(proc, rs)
	rs.pushScope()
	renameBlock(proc, tree.Root(), rs)
	rs.popScope()

	return nil
}

// placePhis inserts a phi for every variable v at every block in its
// pruned iterated dominance frontier: the IDF seeded from v's definition
// sites, restricted to blocks where v is live-in.
func placePhis(proc *ir.Procedure, tree *analysis.DominatorTree, df *analysis.DominanceFrontiers, live *analysis.LiveSets) {
	defSites := map[string][]string{}
	for _, b := range proc.OrderedBlocks() {
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			for _, lv := range inst.Operation.LValues {
				if lv.IsVirtualReg() {
					defSites[lv.Name] = append(defSites[lv.Name], b.DebugName)
				}
			}
		}
	}

	for _, name := range proc.AllVariableNames() {
		seeds := append([]string{tree.Root()}, defSites[name]...)
		for _, block := range df.IteratedDominanceFrontier(seeds) {
			if !live.In(block)[name] {
				continue
			}
			b, ok := proc.Block(block)
			if !ok || hasPhiFor(b, name) {
				continue
			}
			phi := ir.NewPhiNode(ir.NewRegister(name), b.Before)
			b.PhiNodes = append(b.PhiNodes, phi)
		}
	}
}

func hasPhiFor(b *ir.BasicBlock, name string) bool {
	for _, phi := range b.PhiNodes {
		if phi.LValue.Name == name {
			return true
		}
	}
	return false
}

// bootstrapRenameStacks pushes subscript "0" for every special register and
// formal argument before the walk begins, per §4.7's rename-stack
// bootstrap.
func bootstrapRenameStacks(proc *ir.Procedure, rs *renameState) {
	for i := 0; i < ir.SpecialRegisterCount; i++ {
		name := ir.SpecialRegisterName(i)
		rs.stacks[name] = []ir.Value{{Name: name, Subscript: "0", Type: ir.TypeVirtualReg}}
		rs.counters[name] = 1
	}
	for _, arg := range proc.Frame.Arguments {
		rs.stacks[arg.Name] = []ir.Value{{Name: arg.Name, Subscript: "0", Type: ir.TypeVirtualReg}}
		rs.counters[arg.Name] = 1
	}
}

// push mints a fresh subscript for name and returns the new SSA Value.
func (rs *renameState) push(name string, t ir.ValueType, behavior ir.Behavior) ir.Value {
	sub := rs.counters[name]
	rs.counters[name] = sub + 1
	v := ir.Value{Name: name, Subscript: strconv.Itoa(sub), Type: t, Behavior: behavior}
	rs.stacks[name] = append(rs.stacks[name], v)
	return v
}

func (rs *renameState) pop(name string) {
	stack := rs.stacks[name]
	if len(stack) == 0 {
		return
	}
	rs.stacks[name] = stack[:len(stack)-1]
}

// alias pushes an existing SSA Value onto name's stack without minting a
// fresh subscript — used when dominator-tree CSE decides an instruction's
// lvalue is redundant and future readers of name should see value instead,
// even if value names a different original register entirely.
func (rs *renameState) alias(name string, value ir.Value) {
	rs.stacks[name] = append(rs.stacks[name], value)
}

func (rs *renameState) top(name string) (ir.Value, bool) {
	stack := rs.stacks[name]
	if len(stack) == 0 {
		return ir.Value{}, false
	}
	return stack[len(stack)-1], true
}

func (rs *renameState) pushScope() {
	rs.scopes = append(rs.scopes, &exprScope{table: map[ssaExprKey]ir.Value{}})
}

func (rs *renameState) popScope() {
	rs.scopes = rs.scopes[:len(rs.scopes)-1]
}

func (rs *renameState) lookupExpr(key ssaExprKey) (ir.Value, bool) {
	for i := len(rs.scopes) - 1; i >= 0; i-- {
		if v, ok := rs.scopes[i].table[key]; ok {
			return v, true
		}
	}
	return ir.Value{}, false
}

func (rs *renameState) recordExpr(key ssaExprKey, v ir.Value) {
	rs.scopes[len(rs.scopes)-1].table[key] = v
}

// renameRValue rewrites a single rvalue occurrence to the current top of
// its rename stack, leaving non-register operands untouched.
func renameRValue(v ir.Value, rs *renameState) ir.Value {
	if !v.IsVirtualReg() {
		return v
	}
	if top, ok := rs.top(v.Name); ok {
		return top
	}
	return v
}

func renameBlock(proc *ir.Procedure, blockName string, rs *renameState) {
	b, ok := proc.Block(blockName)
	if !ok {
		return
	}

	for _, phi := range b.PhiNodes {
		phi.LValue = rs.push(phi.LValue.Name, phi.LValue.Type, phi.LValue.Behavior)
	}

	rs.pushScope()

	var poppedNames []string

	for _, inst := range b.Instructions {
		if inst.Deleted {
			continue
		}
		for i, rv := range inst.Operation.RValues {
			inst.Operation.RValues[i] = renameRValue(rv, rs)
		}

		lv, ok := inst.SingleLValue()
		if !ok {
			continue
		}

		if inst.Operation.Category == ir.CatExpression && lv.Behavior != ir.BehaviorMemory && lv.Behavior != ir.BehaviorMixed {
			key := expressionKeyFor(inst)
			if existing, found := rs.lookupExpr(key); found {
				inst.MarkDeleted()
				rs.alias(lv.Name, existing)
				poppedNames = append(poppedNames, lv.Name)
				continue
			}
			renamed := rs.push(lv.Name, lv.Type, lv.Behavior)
			inst.Operation.LValues[0] = renamed
			rs.recordExpr(key, renamed)
			poppedNames = append(poppedNames, lv.Name)
			continue
		}

		renamed := rs.push(lv.Name, lv.Type, lv.Behavior)
		inst.Operation.LValues[0] = renamed
		poppedNames = append(poppedNames, lv.Name)
	}

	for _, succ := range b.After {
		sb, ok := proc.Block(succ)
		if !ok {
			continue
		}
		for _, phi := range sb.PhiNodes {
			if top, ok := rs.top(phi.LValue.Name); ok {
				phi.SetInput(blockName, top)
			}
		}
	}

	for _, child := range rs.tree.ChildrenOf(blockName) {
		renameBlock(proc, child, rs)
	}

	rs.popScope()

	for i := len(poppedNames) - 1; i >= 0; i-- {
		rs.pop(poppedNames[i])
	}
	for i := len(b.PhiNodes) - 1; i >= 0; i-- {
		rs.pop(b.PhiNodes[i].LValue.Name)
	}
}

// expressionKeyFor builds the dominator-tree value-numbering key for an
// already-renamed instruction: its opcode plus its (already-renamed)
// rvalues' full SSA text, canonicalized for commutative opcodes.
func expressionKeyFor(inst *ir.Instruction) ssaExprKey {
	rvs := inst.Operation.RValues
	var t1, t2 string
	if len(rvs) > 0 {
		t1 = rvs[0].FullText()
	}
	if len(rvs) > 1 {
		t2 = rvs[1].FullText()
	}
	if len(rvs) == 2 && ir.IsCommutative(inst.Operation.Opcode) && t2 < t1 {
		t1, t2 = t2, t1
	}
	return ssaExprKey{op: inst.Operation.Opcode, rv1: t1, rv2: t2}
}

// MarkSSAConstructed is called after ConstructSSA succeeds on a procedure,
// setting the whole-program is_ssa flag.
func MarkSSAConstructed(prog *ir.Program) { prog.IsSSA = true }

// RequireSSA returns a PreconditionFailed error if prog is not yet in SSA
// form, the guard every SSA-requiring pass (DCE, register allocation) must
// apply before it runs.
func RequireSSA(pass string, prog *ir.Program) error {
	if !prog.IsSSA {
		return errors.NewPreconditionFailed(pass, "", "program is not in SSA form")
	}
	return nil
}

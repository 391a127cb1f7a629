package analysis

import "iloctool/internal/ir"

// InferRegisterBehavior tags every defined virtual register with how it was
// produced: memory, expression, or mixed. It walks the dominator tree in
// preorder, so a register's defining instruction is always visited before
// any of its uses, since the definition dominates every use.
//
// Memory-category lvalues are tagged memory. Load-immediate lvalues are
// tagged expression. Expression-category lvalues are tagged expression
// unless one of their rvalues is already known memory, in which case mixed.
// LVN's memory-category dispatch reads Operation.Category directly and does
// not need this; SSA's dominator-CSE gating reads the tag this pass writes.
//
// Run once before LVN (on the pre-SSA name space) and again after SSA
// renaming (on the subscripted name space), per §11.
func InferRegisterBehavior(proc *ir.Procedure, tree *DominatorTree) {
	known := map[string]ir.Behavior{}

	for _, name := range tree.Preorder() {
		b, ok := proc.Block(name)
		if !ok {
			continue
		}
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			switch inst.Operation.Category {
			case ir.CatMemory:
				for i, lv := range inst.Operation.LValues {
					if !lv.IsVirtualReg() {
						continue
					}
					lv.Behavior = ir.BehaviorMemory
					inst.Operation.LValues[i] = lv
					known[lv.FullText()] = ir.BehaviorMemory
				}
			case ir.CatLoadImmediate:
				if len(inst.Operation.LValues) == 0 {
					continue
				}
				lv := inst.Operation.LValues[0]
				if !lv.IsVirtualReg() {
					continue
				}
				lv.Behavior = ir.BehaviorExpression
				inst.Operation.LValues[0] = lv
				known[lv.FullText()] = ir.BehaviorExpression
			case ir.CatExpression:
				newBehavior := ir.BehaviorExpression
				for _, rv := range inst.Operation.RValues {
					if rv.IsVirtualReg() && known[rv.FullText()] == ir.BehaviorMemory {
						newBehavior = ir.BehaviorMixed
					}
				}
				for i, lv := range inst.Operation.LValues {
					if !lv.IsVirtualReg() {
						continue
					}
					lv.Behavior = newBehavior
					inst.Operation.LValues[i] = lv
					known[lv.FullText()] = newBehavior
				}
			}
		}
	}
}

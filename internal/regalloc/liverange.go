// Package regalloc implements Chaitin-Briggs register allocation over SSA
// ILOC: live ranges merged across phis and call sites, the interference
// graph built from them, and the colour/spill/rewrite loop that assigns
// physical registers, per §4.9–§4.10.
package regalloc

import (
	"sort"

	"iloctool/internal/ir"
)

// LiveRanges groups SSA values into Chaitin live ranges: a union-find over
// each value's FullText, merged wherever a phi or a call-by-reference
// argument forces two SSA names to share one physical register.
type LiveRanges struct {
	parent  map[string]string
	members map[string][]string // finalized root -> sorted member FullTexts
}

// BuildLiveRanges computes the live ranges of proc, per §4.9. proc must
// already be in SSA form.
func BuildLiveRanges(proc *ir.Procedure) *LiveRanges {
	lr := &LiveRanges{parent: map[string]string{}}

	for _, b := range proc.OrderedBlocks() {
		for _, phi := range b.PhiNodes {
			if phi.Deleted {
				continue
			}
			lr.register(phi.LValue.FullText())
			for _, pred := range phi.InputOrder {
				if rv := phi.Inputs[pred]; rv.IsVirtualReg() {
					lr.register(rv.FullText())
				}
			}
		}
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			for _, lv := range inst.Operation.LValues {
				if lv.IsVirtualReg() {
					lr.register(lv.FullText())
				}
			}
			for _, rv := range inst.Operation.RValues {
				if rv.IsVirtualReg() {
					lr.register(rv.FullText())
				}
			}
		}
	}

	for _, b := range proc.OrderedBlocks() {
		for _, phi := range b.PhiNodes {
			if phi.Deleted {
				continue
			}
			for _, pred := range phi.InputOrder {
				if rv := phi.Inputs[pred]; rv.IsVirtualReg() {
					lr.union(phi.LValue.FullText(), rv.FullText())
				}
			}
		}
		for _, inst := range b.Instructions {
			if !inst.Deleted {
				mergeCallArguments(lr, inst.Operation)
			}
		}
	}

	lr.finalize()
	return lr
}

// mergeCallArguments unions each actual-argument range with the
// corresponding formal-argument value in the call's lvalue list, per
// §4.9's call-site merge rule: ILOC passes arguments by reference, so the
// callee's possibly-modified copy and the caller's register must share one
// live range.
func mergeCallArguments(lr *LiveRanges, op ir.Operation) {
	switch op.Opcode {
	case ir.OpCall, ir.OpICall, ir.OpFCall:
	default:
		return
	}
	if len(op.RValues) == 0 {
		return
	}
	actuals := op.RValues[1:] // skip the function-label rvalue

	formals := op.LValues
	if op.Opcode == ir.OpICall || op.Opcode == ir.OpFCall {
		if len(formals) == 0 {
			return
		}
		formals = formals[1:] // skip the return value
	}

	n := len(actuals)
	if len(formals) < n {
		n = len(formals)
	}
	for i := 0; i < n; i++ {
		if actuals[i].IsVirtualReg() && formals[i].IsVirtualReg() {
			lr.union(actuals[i].FullText(), formals[i].FullText())
		}
	}
}

func (lr *LiveRanges) register(full string) {
	if _, ok := lr.parent[full]; !ok {
		lr.parent[full] = full
	}
}

func (lr *LiveRanges) find(x string) string {
	p, ok := lr.parent[x]
	if !ok {
		lr.parent[x] = x
		return x
	}
	if p != x {
		p = lr.find(p)
		lr.parent[x] = p
	}
	return p
}

// union merges the ranges containing a and b. The lexicographically
// smaller FullText becomes the surviving root, a deterministic tie-break
// standing in for the original's insertion-order-dependent choice.
func (lr *LiveRanges) union(a, b string) {
	ra, rb := lr.find(a), lr.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	lr.parent[rb] = ra
}

func (lr *LiveRanges) finalize() {
	lr.members = map[string][]string{}
	for key := range lr.parent {
		root := lr.find(key)
		lr.members[root] = append(lr.members[root], key)
	}
	for root := range lr.members {
		sort.Strings(lr.members[root])
	}
}

// RangeOf returns the canonical range name containing v. A value never
// registered during BuildLiveRanges (a literal, or an unused formal
// argument) is treated as its own singleton range.
func (lr *LiveRanges) RangeOf(v ir.Value) string {
	return lr.RangeOfText(v.FullText())
}

// RangeOfText is RangeOf for a value already reduced to its FullText, the
// form live-variable sets are keyed by.
func (lr *LiveRanges) RangeOfText(full string) string {
	return lr.find(full)
}

// Ranges returns every distinct range name, sorted for deterministic
// iteration.
func (lr *LiveRanges) Ranges() []string {
	names := make([]string, 0, len(lr.members))
	for name := range lr.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MembersOf returns every SSA value FullText merged into range name,
// sorted.
func (lr *LiveRanges) MembersOf(name string) []string {
	return lr.members[name]
}

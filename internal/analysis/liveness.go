package analysis

import "iloctool/internal/ir"

// ValueKey maps a Value to the string key its equivalence class is tracked
// under: subscript-aware equality uses FullText, name-only equality (used
// before SSA subscripts exist) uses the bare register name.
type ValueKey func(ir.Value) string

// SubscriptAware keys a Value by its full SSA text (name + subscript).
func SubscriptAware(v ir.Value) string { return v.FullText() }

// NameOnly keys a Value by register name alone, ignoring any SSA subscript
// — the equivalence pruned-SSA phi placement needs before subscripts exist.
func NameOnly(v ir.Value) string { return v.Name }

// LiveSets holds the backward, may, union-meet live-variable dataflow
// result for one procedure: per-block gen/kill and the converged in/out
// sets, all keyed by the ValueKey the caller supplied.
type LiveSets struct {
	key ValueKey
	gen map[string]map[string]bool
	out map[string]map[string]bool
	in  map[string]map[string]bool
}

// BuildLiveSets runs live-variable analysis over proc using key to decide
// value identity, per §4.4.
func BuildLiveSets(proc *ir.Procedure, key ValueKey) *LiveSets {
	blocks := proc.OrderedBlocks()

	gen := make(map[string]map[string]bool, len(blocks))
	kill := make(map[string]map[string]bool, len(blocks))
	in := make(map[string]map[string]bool, len(blocks))
	out := make(map[string]map[string]bool, len(blocks))

	for _, b := range blocks {
		g, k := map[string]bool{}, map[string]bool{}
		for _, inst := range b.Instructions {
			if inst.Deleted {
				continue
			}
			for _, rv := range inst.Operation.RValues {
				if rv.IsVirtualReg() {
					name := key(rv)
					if !k[name] {
						g[name] = true
					}
				}
			}
			for _, lv := range inst.Operation.LValues {
				if lv.IsVirtualReg() {
					k[key(lv)] = true
				}
			}
		}
		gen[b.DebugName] = g
		kill[b.DebugName] = k
		in[b.DebugName] = map[string]bool{}
		out[b.DebugName] = map[string]bool{}
	}

	order := postorderFrom(proc, proc.EntryBlockName())

	for changed := true; changed; {
		changed = false
		for _, name := range order {
			b, _ := proc.Block(name)
			newOut := map[string]bool{}
			for _, succ := range b.After {
				for v := range in[succ] {
					newOut[v] = true
				}
			}
			newIn := map[string]bool{}
			for v := range gen[name] {
				newIn[v] = true
			}
			for v := range newOut {
				if !kill[name][v] {
					newIn[v] = true
				}
			}
			if !ir.StringSetEqual(newOut, out[name]) || !ir.StringSetEqual(newIn, in[name]) {
				changed = true
			}
			out[name] = newOut
			in[name] = newIn
		}
	}

	return &LiveSets{key: key, gen: gen, out: out, in: in}
}

// postorderFrom returns the reverse of a depth-first postorder traversal of
// proc's CFG starting at root: every reachable block appears exactly once,
// and apart from back edges a block appears before its successors.
// Unreachable blocks are not included.
func postorderFrom(proc *ir.Procedure, root string) []string {
	visited := map[string]bool{}
	var order []string
	var walk func(string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		b, ok := proc.Block(name)
		if !ok {
			return
		}
		for _, succ := range b.After {
			walk(succ)
		}
		order = append(order, name)
	}
	walk(root)
	// Reverse the postorder so root comes first. The fixed-point loop in
	// BuildLiveSets repeats full sweeps until nothing changes, so this order
	// affects only how many sweeps convergence takes.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// In returns the live-in set of block name.
func (l *LiveSets) In(name string) map[string]bool { return l.in[name] }

// Out returns the live-out set of block name.
func (l *LiveSets) Out(name string) map[string]bool { return l.out[name] }

// InContains reports whether v (per l's key function) is live-in at block
// name.
func (l *LiveSets) InContains(name string, v ir.Value) bool {
	return l.in[name][l.key(v)]
}

package analysis

import "iloctool/internal/ir"

// DominanceFrontiers maps each block to its dominance-frontier set,
// computed from a DominatorTree in a single post-order walk per §4.3. When
// built from a Backward tree this is the reverse dominance frontier — the
// control-dependence relation DCE consumes.
type DominanceFrontiers struct {
	tree *DominatorTree
	df   map[string]map[string]bool
}

// BuildDominanceFrontiers computes dominance frontiers for every block of
// proc using the given dominator tree.
func BuildDominanceFrontiers(proc *ir.Procedure, tree *DominatorTree) *DominanceFrontiers {
	df := make(map[string]map[string]bool)
	for _, name := range tree.Postorder() {
		set := map[string]bool{}

		b, _ := proc.Block(name)
		for _, m := range edges(b, tree.dir) {
			if !tree.StrictlyDominates(name, m) {
				set[m] = true
			}
		}

		for _, c := range tree.ChildrenOf(name) {
			for f := range df[c] {
				if !tree.StrictlyDominates(name, f) {
					set[f] = true
				}
			}
		}

		df[name] = set
	}
	return &DominanceFrontiers{tree: tree, df: df}
}

// Of returns the dominance-frontier set of block name, as a sorted slice
// for deterministic iteration.
func (d *DominanceFrontiers) Of(name string) []string {
	return ir.SortedStringSet(d.df[name])
}

// Contains reports whether member is in block name's dominance frontier.
func (d *DominanceFrontiers) Contains(name, member string) bool {
	return d.df[name][member]
}

// IteratedDominanceFrontier computes the Cytron-style IDF of a seed block
// set: repeatedly union each worklist block's dominance frontier into the
// result, re-enqueueing any newly added block, until no new blocks appear.
func (d *DominanceFrontiers) IteratedDominanceFrontier(seeds []string) []string {
	result := map[string]bool{}
	queued := map[string]bool{}
	var worklist []string
	for _, s := range seeds {
		if !queued[s] {
			queued[s] = true
			worklist = append(worklist, s)
		}
	}
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		for f := range d.df[b] {
			if !result[f] {
				result[f] = true
				if !queued[f] {
					queued[f] = true
					worklist = append(worklist, f)
				}
			}
		}
	}
	return ir.SortedStringSet(result)
}

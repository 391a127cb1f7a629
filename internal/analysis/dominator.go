// Package analysis holds the structural analyses the optimizer passes share:
// dominator/post-dominator trees, dominance frontiers, live-variable
// dataflow, and register-behavior inference. The uses/definitions index
// (SSAInfo) lives in package ir.
package analysis

import (
	"sort"

	"iloctool/internal/errors"
	"iloctool/internal/ir"
)

// Direction selects whether a DominatorTree is built over the forward CFG
// (ordinary dominance, rooted at the entry block) or the reverse CFG
// (post-dominance, rooted at the exit block).
type Direction int

const (
	Forward Direction = iota
	Backward
)

// DominatorTree is the result of the classic iterative dominator-set
// computation, reduced to an immediate-dominator tree.
type DominatorTree struct {
	dir      Direction
	root     string
	idom     map[string]string   // block -> immediate dominator (root maps to itself)
	domSet   map[string]map[string]bool
	children map[string][]string // in block Order
	order    map[string]int
}

func edges(b *ir.BasicBlock, dir Direction) []string {
	if dir == Forward {
		return b.After
	}
	return b.Before
}

func reverseEdges(b *ir.BasicBlock, dir Direction) []string {
	if dir == Forward {
		return b.Before
	}
	return b.After
}

// BuildDominatorTree computes the dominator tree of proc in the given
// direction. dir == Forward roots at proc's entry block (its first block in
// construction order); dir == Backward roots at proc.ExitBlockName, per
// §4.2.
func BuildDominatorTree(pass string, proc *ir.Procedure, dir Direction) (*DominatorTree, error) {
	blocks := proc.OrderedBlocks()
	order := make(map[string]int, len(blocks))
	for _, b := range blocks {
		order[b.DebugName] = b.Order
	}

	root := entryName(dir, proc)
	if _, ok := proc.Block(root); !ok {
		return nil, errors.NewLookupFailed(pass, proc.Frame.Name, "block", root)
	}

	all := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		all[b.DebugName] = true
	}

	dom := make(map[string]map[string]bool, len(blocks))
	dom[root] = map[string]bool{root: true}
	for name := range all {
		if name != root {
			dom[name] = cloneSet(all)
		}
	}

	if len(blocks) > 1 {
		for changed := true; changed; {
			changed = false
			for _, b := range blocks {
				if b.DebugName == root {
					continue
				}
				preds := reverseEdges(b, dir)
				var next map[string]bool
				for i, predName := range preds {
					predSet := dom[predName]
					if i == 0 {
						next = cloneSet(predSet)
						continue
					}
					next = intersect(next, predSet)
				}
				if next == nil {
					next = map[string]bool{}
				}
				next[b.DebugName] = true
				if !ir.StringSetEqual(next, dom[b.DebugName]) {
					dom[b.DebugName] = next
					changed = true
				}
			}
		}
	}

	idom := map[string]string{root: root}
	for name, set := range dom {
		if name == root {
			continue
		}
		var best string
		bestSize := -1
		for candidate := range set {
			if candidate == name {
				continue
			}
			size := len(dom[candidate])
			if size > bestSize {
				bestSize = size
				best = candidate
			}
		}
		idom[name] = best
	}

	children := make(map[string][]string, len(blocks))
	for name, parent := range idom {
		if name == root {
			continue
		}
		children[parent] = append(children[parent], name)
	}
	for parent := range children {
		sort.Slice(children[parent], func(i, j int) bool {
			return order[children[parent][i]] < order[children[parent][j]]
		})
	}

	return &DominatorTree{dir: dir, root: root, idom: idom, domSet: dom, children: children, order: order}, nil
}

func entryName(dir Direction, proc *ir.Procedure) string {
	if dir == Forward {
		return proc.EntryBlockName()
	}
	return proc.ExitBlockName
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

// Root returns the tree's root block name.
func (t *DominatorTree) Root() string { return t.root }

// ChildrenOf returns b's immediate-dominator-tree children, in block order.
func (t *DominatorTree) ChildrenOf(b string) []string { return t.children[b] }

// FindParentOf returns b's immediate dominator, or "" if b is the root.
func (t *DominatorTree) FindParentOf(b string) string {
	if b == t.root {
		return ""
	}
	return t.idom[b]
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *DominatorTree) Dominates(a, b string) bool {
	return t.domSet[b][a]
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *DominatorTree) StrictlyDominates(a, b string) bool {
	return a != b && t.Dominates(a, b)
}

// Preorder returns every block name in the tree in preorder (root first,
// each subtree before its right siblings).
func (t *DominatorTree) Preorder() []string {
	var out []string
	var walk func(string)
	walk = func(b string) {
		out = append(out, b)
		for _, c := range t.ChildrenOf(b) {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Postorder returns every block name in the tree in postorder (children
// before parent), the order dominance-frontier computation requires.
func (t *DominatorTree) Postorder() []string {
	var out []string
	var walk func(string)
	walk = func(b string) {
		for _, c := range t.ChildrenOf(b) {
			walk(c)
		}
		out = append(out, b)
	}
	walk(t.root)
	return out
}

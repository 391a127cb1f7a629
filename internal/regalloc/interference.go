package regalloc

import (
	"math"
	"sort"

	"iloctool/internal/analysis"
	"iloctool/internal/ir"
)

// Node is one interference-graph node: a live range plus the neighbours it
// currently interferes with, its use count, and its allocation state.
type Node struct {
	Name         string
	Uses         int
	InfiniteCost bool
	Colour       int // -1 = uncoloured
	Neighbors    map[string]bool
}

func newNode(name string) *Node {
	return &Node{Name: name, Colour: -1, Neighbors: map[string]bool{}}
}

// Degree is the node's current interference degree.
func (n *Node) Degree() int { return len(n.Neighbors) }

// SpillCost is uses/degree, or +Inf when the node has no interferences yet
// or was spilled by a previous iteration, per §4.10.
func (n *Node) SpillCost() float64 {
	if n.InfiniteCost || n.Degree() == 0 {
		return math.Inf(1)
	}
	return float64(n.Uses) / float64(n.Degree())
}

// Graph is the Chaitin interference graph: one node per live range, with an
// edge between every pair of ranges simultaneously live at some program
// point.
type Graph struct {
	nodes map[string]*Node
}

func newGraph() *Graph { return &Graph{nodes: map[string]*Node{}} }

func (g *Graph) ensureNode(name string) *Node {
	n, ok := g.nodes[name]
	if !ok {
		n = newNode(name)
		g.nodes[name] = n
	}
	return n
}

func (g *Graph) addEdge(a, b string) {
	if a == b {
		return
	}
	g.ensureNode(a).Neighbors[b] = true
	g.ensureNode(b).Neighbors[a] = true
}

// Node looks up a node by range name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Names returns every node name, sorted for deterministic iteration.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) remove(name string) {
	n, ok := g.nodes[name]
	if !ok {
		return
	}
	for neighbor := range n.Neighbors {
		if other, ok := g.nodes[neighbor]; ok {
			delete(other.Neighbors, name)
		}
	}
	delete(g.nodes, name)
}

func (g *Graph) clone() *Graph {
	out := newGraph()
	for name, n := range g.nodes {
		nn := newNode(name)
		nn.Uses = n.Uses
		nn.InfiniteCost = n.InfiniteCost
		for neighbor := range n.Neighbors {
			nn.Neighbors[neighbor] = true
		}
		out.nodes[name] = nn
	}
	return out
}

// BuildInterferenceGraph constructs the interference graph for proc, per
// §4.10: a backward per-block walk over live-variable out-sets, with every
// not-yet-spilled formal-argument range seeded live throughout the whole
// body (call-by-reference arguments are implicitly live until return), and
// every pair of formal-argument ranges forced to interfere since each must
// occupy a distinct colour.
func BuildInterferenceGraph(proc *ir.Procedure, ranges *LiveRanges, live *analysis.LiveSets, info *ir.SSAInfo, spilled map[string]bool) *Graph {
	g := newGraph()

	for _, name := range ranges.Ranges() {
		node := g.ensureNode(name)
		for _, member := range ranges.MembersOf(name) {
			node.Uses += len(info.Uses[member]) + len(info.PhiUses[member])
		}
		node.InfiniteCost = spilled[name]
	}

	var formalRanges []string
	for _, arg := range proc.Frame.Arguments {
		v := ir.Value{Name: arg.Name, Subscript: "0", Type: ir.TypeVirtualReg}
		name := ranges.RangeOf(v)
		g.ensureNode(name)
		formalRanges = append(formalRanges, name)
	}

	for _, b := range proc.OrderedBlocks() {
		live := liveRangeSet(ranges, live.Out(b.DebugName))
		for _, formalRange := range formalRanges {
			if !spilled[formalRange] {
				live[formalRange] = true
			}
		}

		for i := len(b.Instructions) - 1; i >= 0; i-- {
			inst := b.Instructions[i]
			if inst.Deleted {
				continue
			}
			for _, lv := range inst.Operation.LValues {
				if !lv.IsVirtualReg() {
					continue
				}
				rng := ranges.RangeOf(lv)
				for other := range live {
					if other != rng {
						g.addEdge(rng, other)
					}
				}
				delete(live, rng)
			}
			for _, rv := range inst.Operation.RValues {
				if rv.IsVirtualReg() {
					live[ranges.RangeOf(rv)] = true
				}
			}
		}
	}

	for i := 0; i < len(formalRanges); i++ {
		for j := i + 1; j < len(formalRanges); j++ {
			g.addEdge(formalRanges[i], formalRanges[j])
		}
	}

	return g
}

func liveRangeSet(ranges *LiveRanges, out map[string]bool) map[string]bool {
	set := make(map[string]bool, len(out))
	for full := range out {
		set[ranges.RangeOfText(full)] = true
	}
	return set
}

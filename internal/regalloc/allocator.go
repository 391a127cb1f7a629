package regalloc

import (
	"fmt"

	"iloctool/internal/analysis"
	"iloctool/internal/errors"
	"iloctool/internal/ir"
)

// DefaultColours is the total colour count k Allocate targets: colours
// 0..3 are reserved for %vr0_0..%vr3_0, leaving k-4 general-purpose
// registers for everything else.
const DefaultColours = 8

// Allocator runs the Chaitin-Briggs colour/spill/rewrite loop over one
// procedure. Its offset and spilled maps persist across iterations so a
// range spilled once keeps the same stack slot and is never re-selected
// for spilling, per §4.10.
type Allocator struct {
	K       int
	offsets map[string]int
	spilled map[string]bool
}

// NewAllocator returns an allocator targeting k total colours.
func NewAllocator(k int) *Allocator {
	return &Allocator{K: k, offsets: map[string]int{}, spilled: map[string]bool{}}
}

// Allocate runs register allocation over proc with the default colour
// count.
func Allocate(pass string, proc *ir.Procedure) error {
	return NewAllocator(DefaultColours).Run(pass, proc)
}

// Run iterates live-range computation, interference-graph construction,
// colouring, and spill rewriting to a fixed point, then remaps every
// virtual-register operand from its SSA name to its coloured form, per
// §4.10. The outer loop is bounded by the number of distinct live ranges:
// each iteration either colours the graph or spills at least one range
// never spilled before.
func (a *Allocator) Run(pass string, proc *ir.Procedure) error {
	for {
		ranges := BuildLiveRanges(proc)
		live := analysis.BuildLiveSets(proc, analysis.SubscriptAware)
		info := ir.BuildSSAInfo(proc)

		graph := BuildInterferenceGraph(proc, ranges, live, info, a.spilled)
		colour(graph, a.K)

		var uncoloured []string
		for _, name := range graph.Names() {
			if n, _ := graph.Node(name); n.Colour < 0 {
				uncoloured = append(uncoloured, name)
			}
		}
		if len(uncoloured) == 0 {
			return a.remap(proc, ranges, graph)
		}

		spilledThisRound := false
		for _, name := range uncoloured {
			if a.spilled[name] {
				continue
			}
			if err := a.spill(pass, proc, ranges, name); err != nil {
				return err
			}
			a.spilled[name] = true
			spilledThisRound = true
		}
		if !spilledThisRound {
			return errors.NewUnsupportedOperation(pass, proc.Frame.Name, "",
				"interference graph cannot be coloured within the available registers")
		}
	}
}

// colour performs the classic simplify-then-select colouring: repeatedly
// remove a low-degree (or, failing that, lowest-spill-cost) node from a
// working copy of the graph onto a stack, then pop the stack and assign
// colours against the original (never-shrunk) adjacency, per §4.10.
func colour(g *Graph, k int) {
	working := g.clone()
	var stack []string

	for len(working.nodes) > 0 {
		name := pickSimplifyCandidate(working, k)
		working.remove(name)
		stack = append(stack, name)
	}

	for i := len(stack) - 1; i >= 0; i-- {
		assignColour(g, stack[i], k)
	}
}

// pickSimplifyCandidate returns a node of degree < k-4 if one exists (the
// lowest-named such node, for determinism); otherwise the lowest-spill-cost
// node.
func pickSimplifyCandidate(working *Graph, k int) string {
	names := working.Names()
	for _, name := range names {
		if n, _ := working.Node(name); n.Degree() < k-4 {
			return name
		}
	}
	best := names[0]
	bestCost := working.nodes[best].SpillCost()
	for _, name := range names[1:] {
		if cost := working.nodes[name].SpillCost(); cost < bestCost {
			best, bestCost = name, cost
		}
	}
	return best
}

func assignColour(g *Graph, name string, k int) {
	n, ok := g.Node(name)
	if !ok {
		return
	}
	if forced, ok := forcedColour(name); ok {
		n.Colour = forced
		return
	}
	used := map[int]bool{}
	for neighbor := range n.Neighbors {
		if nb, ok := g.Node(neighbor); ok && nb.Colour >= 0 {
			used[nb.Colour] = true
		}
	}
	for c := 4; c < k; c++ {
		if !used[c] {
			n.Colour = c
			return
		}
	}
	n.Colour = -1
}

// forcedColour reports the colour a range named "%vrN_0" for N in
// {0,1,2,3} must take, per §4.10's reserved special-register colours.
func forcedColour(name string) (int, bool) {
	for i := 0; i < ir.SpecialRegisterCount; i++ {
		if name == ir.SpecialRegisterName(i)+"_0" {
			return i, true
		}
	}
	return -1, false
}

// allocateOffset returns rangeName's stack-slot offset, allocating a fresh
// one (extending the frame's spill area by 4 bytes) the first time
// rangeName is spilled.
func (a *Allocator) allocateOffset(proc *ir.Procedure, rangeName string) int {
	if off, ok := a.offsets[rangeName]; ok {
		return off
	}
	proc.Frame.FrameSize += 4
	off := proc.Frame.FrameSize
	a.offsets[rangeName] = off
	return off
}

// spill allocates rangeName's stack slot and rewrites proc so every
// occurrence of the range reads and writes that slot through %vr0, per
// §4.10's spill-rewriting rule.
func (a *Allocator) spill(pass string, proc *ir.Procedure, ranges *LiveRanges, rangeName string) error {
	offset := a.allocateOffset(proc, rangeName)
	members := memberSet(ranges.MembersOf(rangeName))

	if argValue, ok := formalArgumentMember(proc, members); ok {
		if err := a.spillFormalArgument(pass, proc, argValue, offset); err != nil {
			return err
		}
	}

	for _, b := range proc.OrderedBlocks() {
		rewritten := make([]*ir.Instruction, 0, len(b.Instructions))
		for _, inst := range b.Instructions {
			rewritten = append(rewritten, inst)
			if inst.Deleted || inst.Operation.Opcode == ir.OpLoadI {
				continue
			}
			lv, ok := inst.SingleLValue()
			if !ok || !lv.IsVirtualReg() || !members[lv.FullText()] {
				continue
			}
			rewritten = append(rewritten, storeAIInstruction(lv, offset))
		}
		b.Instructions = rewritten
	}

	for _, b := range proc.OrderedBlocks() {
		rewritten := make([]*ir.Instruction, 0, len(b.Instructions))
		for _, inst := range b.Instructions {
			if !inst.Deleted && !isStoreOpcode(inst.Operation.Opcode) {
				seen := map[string]bool{}
				for _, rv := range inst.Operation.RValues {
					if rv.IsVirtualReg() && members[rv.FullText()] && !seen[rv.FullText()] {
						seen[rv.FullText()] = true
						rewritten = append(rewritten, loadAIInstruction(rv, offset))
					}
				}
			}
			rewritten = append(rewritten, inst)
		}
		b.Instructions = rewritten
	}

	proc.InvalidateSSA()
	return nil
}

// spillFormalArgument handles the call-by-reference case §4.10 calls out
// specially: a formal argument has no instruction definition to store
// after, so it is pre-spilled at the very front of entry; and it has no
// explicit final use, so it must be reloaded in every predecessor of the
// exit block to restore the value the caller expects to see on return.
func (a *Allocator) spillFormalArgument(pass string, proc *ir.Procedure, argValue ir.Value, offset int) error {
	entryName := proc.EntryBlockName()
	entry, ok := proc.Block(entryName)
	if !ok {
		return errors.NewLookupFailed(pass, proc.Frame.Name, "block", entryName)
	}
	prependInstruction(entry, storeAIInstruction(argValue, offset))

	exit, ok := proc.Block(proc.ExitBlockName)
	if !ok {
		return errors.NewLookupFailed(pass, proc.Frame.Name, "block", proc.ExitBlockName)
	}
	if len(exit.Before) == 0 {
		return errors.NewPreconditionFailed(pass, proc.Frame.Name,
			"exit block must have at least one predecessor to reload a spilled argument before return")
	}
	for _, predName := range exit.Before {
		if pred, ok := proc.Block(predName); ok {
			appendInstruction(pred, loadAIInstruction(argValue, offset))
		}
	}
	return nil
}

func memberSet(members []string) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return set
}

// formalArgumentMember reports whether the range contains a procedure's
// formal argument at subscript "0", returning that value.
func formalArgumentMember(proc *ir.Procedure, members map[string]bool) (ir.Value, bool) {
	for _, arg := range proc.Frame.Arguments {
		v := ir.Value{Name: arg.Name, Subscript: "0", Type: ir.TypeVirtualReg}
		if members[v.FullText()] {
			return v, true
		}
	}
	return ir.Value{}, false
}

// prependInstruction inserts inst at the true front of b, moving b's
// existing entry label onto inst so the block's label invariant (exactly
// one labeled first instruction) is preserved.
func prependInstruction(b *ir.BasicBlock, inst *ir.Instruction) {
	if len(b.Instructions) > 0 && b.Instructions[0].Label != "" {
		inst.Label = b.Instructions[0].Label
		b.Instructions[0].Label = ""
	}
	inst.ContainingBlockName = b.DebugName
	b.Instructions = append([]*ir.Instruction{inst}, b.Instructions...)
}

func appendInstruction(b *ir.BasicBlock, inst *ir.Instruction) {
	inst.ContainingBlockName = b.DebugName
	b.Instructions = append(b.Instructions, inst)
}

func spillRegisterValue() ir.Value {
	return ir.Value{Name: ir.SpecialRegisterName(0), Subscript: "0", Type: ir.TypeVirtualReg}
}

func offsetValue(offset int) ir.Value {
	return ir.NewNumber(fmt.Sprintf("-%d", offset))
}

func storeAIInstruction(v ir.Value, offset int) *ir.Instruction {
	op, _ := ir.NewOperation(ir.OpStoreAI, "=>", []ir.Value{v, spillRegisterValue(), offsetValue(offset)}, nil)
	return &ir.Instruction{Operation: op}
}

func loadAIInstruction(v ir.Value, offset int) *ir.Instruction {
	op, _ := ir.NewOperation(ir.OpLoadAI, "=>", []ir.Value{spillRegisterValue(), offsetValue(offset)}, []ir.Value{v})
	return &ir.Instruction{Operation: op}
}

func isStoreOpcode(op ir.Opcode) bool {
	switch op {
	case ir.OpStore, ir.OpStoreAI, ir.OpStoreAO, ir.OpFStore, ir.OpFStoreAI, ir.OpFStoreAO:
		return true
	default:
		return false
	}
}

// remap rewrites every virtual-register operand (and the procedure's
// formal-argument declarations) from its SSA name to its coloured form
// %vrC_<orig_full_text>, per §4.10's final step.
func (a *Allocator) remap(proc *ir.Procedure, ranges *LiveRanges, graph *Graph) error {
	remapValue := func(v ir.Value) ir.Value {
		if !v.IsVirtualReg() {
			return v
		}
		node, ok := graph.Node(ranges.RangeOf(v))
		if !ok || node.Colour < 0 {
			return v
		}
		return ir.Value{
			Name:     fmt.Sprintf("%%vr%d_%s", node.Colour, v.FullText()),
			Type:     ir.TypeVirtualReg,
			Behavior: v.Behavior,
		}
	}

	for _, b := range proc.OrderedBlocks() {
		for _, inst := range b.Instructions {
			for i, rv := range inst.Operation.RValues {
				inst.Operation.RValues[i] = remapValue(rv)
			}
			for i, lv := range inst.Operation.LValues {
				inst.Operation.LValues[i] = remapValue(lv)
			}
		}
		for _, phi := range b.PhiNodes {
			phi.LValue = remapValue(phi.LValue)
			for _, pred := range phi.InputOrder {
				phi.Inputs[pred] = remapValue(phi.Inputs[pred])
			}
		}
	}

	for i, arg := range proc.Frame.Arguments {
		ssaArg := ir.Value{Name: arg.Name, Subscript: "0", Type: ir.TypeVirtualReg}
		remapped := remapValue(ssaArg)
		proc.Frame.Arguments[i] = ir.Value{Name: remapped.Name, Type: ir.TypeVirtualReg}
	}

	proc.InvalidateSSA()
	return nil
}

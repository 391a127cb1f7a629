package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/analysis"
	"iloctool/internal/ir"
)

func mustOp(t *testing.T, op ir.Opcode, arrow string, rv, lv []ir.Value) ir.Operation {
	t.Helper()
	o, err := ir.NewOperation(op, arrow, rv, lv)
	require.NoError(t, err)
	return o
}

// buildArgProc builds a one-argument, one-block procedure that adds 1 to
// its formal argument and returns, already in the post-SSA shape register
// allocation expects (argument bootstrapped at subscript "0").
func buildArgProc(t *testing.T) *ir.Procedure {
	t.Helper()
	proc := ir.NewProcedure(ir.Frame{Name: "f", Arguments: []ir.Value{ir.NewRegister("%vr10")}})
	entry := ir.NewBasicBlock("entry")

	arg := ir.Value{Name: "%vr10", Subscript: "0", Type: ir.TypeVirtualReg}
	out := ir.Value{Name: "%vr11", Subscript: "0", Type: ir.TypeVirtualReg}
	addi := mustOp(t, ir.OpAddI, "=>", []ir.Value{arg, ir.NewNumber("1")}, []ir.Value{out})
	entry.AddInstruction(&ir.Instruction{Label: "entry", Operation: addi})

	ret := mustOp(t, ir.OpRet, "", nil, nil)
	entry.AddInstruction(&ir.Instruction{Operation: ret})

	proc.AddBlock(entry)
	proc.ExitBlockName = "entry"
	return proc
}

func TestBuildLiveRangesMergesPhiLValueAndInputs(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	entry := ir.NewBasicBlock("entry")
	left := ir.NewBasicBlock("left")
	right := ir.NewBasicBlock("right")
	join := ir.NewBasicBlock("join")

	leftVal := ir.Value{Name: "%vr1", Subscript: "1", Type: ir.TypeVirtualReg}
	rightVal := ir.Value{Name: "%vr1", Subscript: "2", Type: ir.TypeVirtualReg}
	phiVal := ir.Value{Name: "%vr1", Subscript: "3", Type: ir.TypeVirtualReg}

	loadLeft := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("1")}, []ir.Value{leftVal})
	left.AddInstruction(&ir.Instruction{Operation: loadLeft})
	loadRight := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("2")}, []ir.Value{rightVal})
	right.AddInstruction(&ir.Instruction{Operation: loadRight})

	phi := ir.NewPhiNode(phiVal, []string{"left", "right"})
	phi.SetInput("left", leftVal)
	phi.SetInput("right", rightVal)
	join.PhiNodes = append(join.PhiNodes, phi)

	proc.AddBlock(entry)
	proc.AddBlock(left)
	proc.AddBlock(right)
	proc.AddBlock(join)
	proc.ExitBlockName = "join"

	ranges := BuildLiveRanges(proc)
	assert.Equal(t, ranges.RangeOf(leftVal), ranges.RangeOf(phiVal))
	assert.Equal(t, ranges.RangeOf(rightVal), ranges.RangeOf(phiVal))
}

func TestBuildLiveRangesMergesCallActualAndFormalArguments(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")

	actual := ir.Value{Name: "%vr5", Subscript: "0", Type: ir.TypeVirtualReg}
	formal := ir.Value{Name: "%vr6", Subscript: "0", Type: ir.TypeVirtualReg}
	ret := ir.Value{Name: "%vr7", Subscript: "0", Type: ir.TypeVirtualReg}

	call := mustOp(t, ir.OpICall, "=>", []ir.Value{ir.NewLabel("g"), actual}, []ir.Value{ret, formal})
	b.AddInstruction(&ir.Instruction{Operation: call})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	ranges := BuildLiveRanges(proc)
	assert.Equal(t, ranges.RangeOf(actual), ranges.RangeOf(formal))
}

func TestBuildInterferenceGraphConnectsSimultaneouslyLiveRanges(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")

	a := ir.Value{Name: "%vr4", Subscript: "0", Type: ir.TypeVirtualReg}
	c := ir.Value{Name: "%vr5", Subscript: "0", Type: ir.TypeVirtualReg}
	sum := ir.Value{Name: "%vr6", Subscript: "0", Type: ir.TypeVirtualReg}

	loadA := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("1")}, []ir.Value{a})
	loadC := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("2")}, []ir.Value{c})
	add := mustOp(t, ir.OpAdd, "=>", []ir.Value{a, c}, []ir.Value{sum})
	ret := mustOp(t, ir.OpRet, "", nil, nil)

	b.AddInstruction(&ir.Instruction{Operation: loadA})
	b.AddInstruction(&ir.Instruction{Operation: loadC})
	b.AddInstruction(&ir.Instruction{Operation: add})
	b.AddInstruction(&ir.Instruction{Operation: ret})

	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	ranges := BuildLiveRanges(proc)
	live := analysis.BuildLiveSets(proc, analysis.SubscriptAware)
	info := ir.BuildSSAInfo(proc)

	graph := BuildInterferenceGraph(proc, ranges, live, info, map[string]bool{})

	aNode, ok := graph.Node(ranges.RangeOf(a))
	require.True(t, ok)
	assert.True(t, aNode.Neighbors[ranges.RangeOf(c)], "%vr4_0 and %vr5_0 are simultaneously live before the add")
}

func TestAllocatorRemapsArgumentOperandToColouredName(t *testing.T) {
	proc := buildArgProc(t)

	require.NoError(t, Allocate("regalloc", proc))

	entry, _ := proc.Block("entry")
	addi := entry.Instructions[0]
	assert.Contains(t, addi.Operation.RValues[0].Name, "%vr10_0")
}

package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/ir"
)

// buildDiamondForSSA builds entry -> (left,right) -> join, where left and
// right both write %vr2 and join reads it — the minimal case that needs a
// phi for %vr2 at join.
func buildDiamondForSSA(t *testing.T) *ir.Procedure {
	t.Helper()
	proc := ir.NewProcedure(ir.Frame{Name: "main"})

	entry := ir.NewBasicBlock("entry")
	left := ir.NewBasicBlock("left")
	right := ir.NewBasicBlock("right")
	join := ir.NewBasicBlock("join")

	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")
	vr3 := ir.NewRegister("%vr3")

	loadi := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("1")}, []ir.Value{vr1})
	entry.AddInstruction(&ir.Instruction{Operation: loadi})
	cbr := mustOp(t, ir.OpCbrLT, "->", []ir.Value{vr1, vr1}, []ir.Value{ir.NewLabel("left"), ir.NewLabel("right")})
	entry.AddInstruction(&ir.Instruction{Operation: cbr})

	leftDef := mustOp(t, ir.OpAddI, "=>", []ir.Value{vr1, ir.NewNumber("1")}, []ir.Value{vr2})
	left.AddInstruction(&ir.Instruction{Operation: leftDef})

	rightDef := mustOp(t, ir.OpAddI, "=>", []ir.Value{vr1, ir.NewNumber("2")}, []ir.Value{vr2})
	right.AddInstruction(&ir.Instruction{Operation: rightDef})

	joinUse := mustOp(t, ir.OpAddI, "=>", []ir.Value{vr2, ir.NewNumber("0")}, []ir.Value{vr3})
	join.AddInstruction(&ir.Instruction{Operation: joinUse})

	proc.AddBlock(entry)
	proc.AddBlock(left)
	proc.AddBlock(right)
	proc.AddBlock(join)
	proc.ExitBlockName = "join"

	ir.AddSuccessor(entry, left)
	ir.AddSuccessor(entry, right)
	ir.AddSuccessor(left, join)
	ir.AddSuccessor(right, join)

	return proc
}

func TestConstructSSAPlacesPhiAtJoinPoint(t *testing.T) {
	proc := buildDiamondForSSA(t)
	require.NoError(t, ConstructSSA("ssa", proc))

	join, ok := proc.Block("join")
	require.True(t, ok)
	require.Len(t, join.PhiNodes, 1)
	assert.Equal(t, "%vr2", join.PhiNodes[0].LValue.Name)
	assert.Len(t, join.PhiNodes[0].Inputs, 2)
}

func TestConstructSSARenamesDefinitionsWithIncreasingSubscripts(t *testing.T) {
	proc := buildDiamondForSSA(t)
	require.NoError(t, ConstructSSA("ssa", proc))

	left, _ := proc.Block("left")
	right, _ := proc.Block("right")
	leftDef, _ := left.Instructions[0].SingleLValue()
	rightDef, _ := right.Instructions[0].SingleLValue()
	assert.NotEqual(t, leftDef.Subscript, rightDef.Subscript)
}

func TestConstructSSAJoinUsesPhiResult(t *testing.T) {
	proc := buildDiamondForSSA(t)
	require.NoError(t, ConstructSSA("ssa", proc))

	join, _ := proc.Block("join")
	phiName := join.PhiNodes[0].LValue.FullText()
	used := join.Instructions[0].Operation.RValues[0]
	assert.Equal(t, phiName, used.FullText())
}

func TestConstructSSABootstrapsArgumentsAtSubscriptZero(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "f", Arguments: []ir.Value{ir.NewRegister("%vr10")}})
	entry := ir.NewBasicBlock("entry")
	arg := ir.NewRegister("%vr10")
	out := ir.NewRegister("%vr11")
	op := mustOp(t, ir.OpAddI, "=>", []ir.Value{arg, ir.NewNumber("1")}, []ir.Value{out})
	entry.AddInstruction(&ir.Instruction{Operation: op})
	proc.AddBlock(entry)
	proc.ExitBlockName = "entry"

	require.NoError(t, ConstructSSA("ssa", proc))

	used := entry.Instructions[0].Operation.RValues[0]
	assert.Equal(t, "0", used.Subscript)
}

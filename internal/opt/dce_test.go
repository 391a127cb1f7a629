package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/ir"
)

func TestRunDCERemovesDeadComputationKeepsSideEffects(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")

	vr1 := ir.Value{Name: "%vr1", Subscript: "0", Type: ir.TypeVirtualReg}
	dead := ir.Value{Name: "%vr2", Subscript: "0", Type: ir.TypeVirtualReg}

	liveDef := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("1")}, []ir.Value{vr1})
	deadDef := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("2")}, []ir.Value{dead})
	store := mustOp(t, ir.OpStoreAI, "=>", []ir.Value{vr1, {Name: "%vr0", Subscript: "0", Type: ir.TypeVirtualReg}, ir.NewNumber("0")}, nil)

	b.AddInstruction(&ir.Instruction{Operation: liveDef})
	b.AddInstruction(&ir.Instruction{Operation: deadDef})
	b.AddInstruction(&ir.Instruction{Operation: store})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	require.NoError(t, RunDCE("dce", proc))

	assert.False(t, b.Instructions[0].Deleted, "definition used by a store must survive")
	assert.True(t, b.Instructions[1].Deleted, "unused definition must be removed")
	assert.False(t, b.Instructions[2].Deleted, "store is always necessary")
}

func TestRunDCERewritesUnnecessaryConditionalBranchToJump(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	entry := ir.NewBasicBlock("entry")
	left := ir.NewBasicBlock("left")  // falls through to join, no instructions
	right := ir.NewBasicBlock("right") // falls through to join, no instructions
	join := ir.NewBasicBlock("join")

	vr1 := ir.Value{Name: "%vr1", Subscript: "0", Type: ir.TypeVirtualReg}
	cbr := mustOp(t, ir.OpCbrLT, "->", []ir.Value{vr1, vr1}, []ir.Value{ir.NewLabel("left"), ir.NewLabel("right")})
	entry.AddInstruction(&ir.Instruction{Operation: cbr})

	ret := mustOp(t, ir.OpRet, "", nil, nil)
	join.AddInstruction(&ir.Instruction{Operation: ret})

	proc.AddBlock(entry)
	proc.AddBlock(left)
	proc.AddBlock(right)
	proc.AddBlock(join)
	proc.ExitBlockName = "join"

	ir.AddSuccessor(entry, left)
	ir.AddSuccessor(entry, right)
	ir.AddSuccessor(left, join)
	ir.AddSuccessor(right, join)

	require.NoError(t, RunDCE("dce", proc))

	rewritten := entry.Instructions[0]
	assert.Equal(t, ir.OpJumpI, rewritten.Operation.Opcode)
	assert.Equal(t, "join", rewritten.Operation.LValues[0].Name)
}

func TestRunDCEKeepsLabeledDeadInstruction(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	dead := ir.Value{Name: "%vr2", Subscript: "0", Type: ir.TypeVirtualReg}
	deadDef := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("2")}, []ir.Value{dead})
	ret := mustOp(t, ir.OpRet, "", nil, nil)

	b.AddInstruction(&ir.Instruction{Label: "entry", Operation: deadDef})
	b.AddInstruction(&ir.Instruction{Operation: ret})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	require.NoError(t, RunDCE("dce", proc))

	assert.False(t, b.Instructions[0].Deleted, "labeled instruction must not be deleted")
}

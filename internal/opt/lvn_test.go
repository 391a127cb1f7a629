package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/ir"
)

func mustOp(t *testing.T, op ir.Opcode, arrow string, rv, lv []ir.Value) ir.Operation {
	t.Helper()
	o, err := ir.NewOperation(op, arrow, rv, lv)
	require.NoError(t, err)
	return o
}

func TestRunLVNFoldsConstantArithmetic(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")
	vr3 := ir.NewRegister("%vr3")

	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("2")}, []ir.Value{vr1})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("3")}, []ir.Value{vr2})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpAdd, "=>", []ir.Value{vr1, vr2}, []ir.Value{vr3})})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	RunLVN(proc)

	addInst := b.Instructions[2]
	assert.Equal(t, ir.OpLoadI, addInst.Operation.Opcode)
	assert.Equal(t, "5", addInst.Operation.RValues[0].Name)
}

func TestRunLVNEliminatesRedundantLoadImmediate(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")

	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("7")}, []ir.Value{vr1})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("7")}, []ir.Value{vr2})})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	RunLVN(proc)

	assert.False(t, b.Instructions[0].Deleted)
	assert.True(t, b.Instructions[1].Deleted)
}

func TestRunLVNCommonSubexpressionEliminationRewritesToMove(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	vra := ir.NewRegister("%vra")
	vrb := ir.NewRegister("%vrb")
	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")

	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpAdd, "=>", []ir.Value{vra, vrb}, []ir.Value{vr1})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpAdd, "=>", []ir.Value{vra, vrb}, []ir.Value{vr2})})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	RunLVN(proc)

	second := b.Instructions[1]
	assert.Equal(t, ir.OpI2I, second.Operation.Opcode)
	assert.Equal(t, "%vr1", second.Operation.RValues[0].Name)
}

func TestRunLVNRewritesConstantRightOperandToImmediateForm(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	vra := ir.NewRegister("%vra")
	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")

	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("4")}, []ir.Value{vr1})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpAdd, "=>", []ir.Value{vra, vr1}, []ir.Value{vr2})})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	RunLVN(proc)

	addInst := b.Instructions[1]
	assert.Equal(t, ir.OpAddI, addInst.Operation.Opcode)
	assert.Equal(t, "4", addInst.Operation.RValues[1].Name)
}

func TestRunLVNDoesNotFoldDivisionByZero(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	b := ir.NewBasicBlock("entry")
	vr1 := ir.NewRegister("%vr1")
	vr2 := ir.NewRegister("%vr2")
	vr3 := ir.NewRegister("%vr3")

	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("8")}, []ir.Value{vr1})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("0")}, []ir.Value{vr2})})
	b.AddInstruction(&ir.Instruction{Operation: mustOp(t, ir.OpDiv, "=>", []ir.Value{vr1, vr2}, []ir.Value{vr3})})
	proc.AddBlock(b)
	proc.ExitBlockName = "entry"

	RunLVN(proc)

	assert.Equal(t, ir.OpDiv, b.Instructions[2].Operation.Opcode)
}

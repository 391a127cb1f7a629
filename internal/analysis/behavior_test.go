package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/ir"
)

func TestInferRegisterBehaviorTagsMemoryExpressionAndMixed(t *testing.T) {
	proc := ir.NewProcedure(ir.Frame{Name: "main"})
	entry := ir.NewBasicBlock("entry")

	loaded := ir.Value{Name: "%vr1", Type: ir.TypeVirtualReg}
	immediate := ir.Value{Name: "%vr2", Type: ir.TypeVirtualReg}
	mixedSum := ir.Value{Name: "%vr3", Type: ir.TypeVirtualReg}
	pureSum := ir.Value{Name: "%vr4", Type: ir.TypeVirtualReg}

	load, err := ir.NewOperation(ir.OpLoad, "=>", []ir.Value{loaded}, []ir.Value{loaded})
	require.NoError(t, err)
	entry.AddInstruction(&ir.Instruction{Label: "entry", Operation: load})

	loadi, err := ir.NewOperation(ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("1")}, []ir.Value{immediate})
	require.NoError(t, err)
	entry.AddInstruction(&ir.Instruction{Operation: loadi})

	addMixed, err := ir.NewOperation(ir.OpAdd, "=>", []ir.Value{loaded, immediate}, []ir.Value{mixedSum})
	require.NoError(t, err)
	entry.AddInstruction(&ir.Instruction{Operation: addMixed})

	addPure, err := ir.NewOperation(ir.OpAdd, "=>", []ir.Value{immediate, immediate}, []ir.Value{pureSum})
	require.NoError(t, err)
	entry.AddInstruction(&ir.Instruction{Operation: addPure})

	proc.AddBlock(entry)
	proc.ExitBlockName = "entry"

	tree, err := BuildDominatorTree("behavior", proc, Forward)
	require.NoError(t, err)

	InferRegisterBehavior(proc, tree)

	assert.Equal(t, ir.BehaviorMemory, entry.Instructions[0].Operation.LValues[0].Behavior)
	assert.Equal(t, ir.BehaviorExpression, entry.Instructions[1].Operation.LValues[0].Behavior)
	assert.Equal(t, ir.BehaviorMixed, entry.Instructions[2].Operation.LValues[0].Behavior)
	assert.Equal(t, ir.BehaviorExpression, entry.Instructions[3].Operation.LValues[0].Behavior)
}

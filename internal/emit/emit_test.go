package emit

import (
	"strings"
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

func buildSimpleProgram(t *testing.T) *ir.Program {
	t.Helper()
	proc := ir.NewProcedure(ir.Frame{Name: "main", FrameSize: 0})
	entry := ir.NewBasicBlock("entry")

	vr1 := ir.NewRegister("%vr1")
	vr0 := ir.Value{Name: "%vr0", Type: ir.TypeVirtualReg}

	loadi := mustOp(t, ir.OpLoadI, "=>", []ir.Value{ir.NewNumber("4")}, []ir.Value{vr1})
	entry.AddInstruction(&ir.Instruction{Label: "entry", Operation: loadi})

	store := mustOp(t, ir.OpStoreAI, "=>", []ir.Value{vr1, vr0, ir.NewNumber("0")}, nil)
	entry.AddInstruction(&ir.Instruction{Operation: store})

	ret := mustOp(t, ir.OpRet, "", nil, nil)
	entry.AddInstruction(&ir.Instruction{Operation: ret})

	proc.AddBlock(entry)
	proc.ExitBlockName = "entry"

	return &ir.Program{Procedures: []*ir.Procedure{proc}}
}

func TestPrintRendersStoreWithOriginalArrow(t *testing.T) {
	out := Print(buildSimpleProgram(t))
	assert.Contains(t, out, "storeai %vr1 => %vr0, 0")
	assert.Contains(t, out, ".frame main, 0")
	assert.Contains(t, out, ".end")
}

func TestPrintOmitsDeletedInstructionsPrintDebugKeepsThem(t *testing.T) {
	prog := buildSimpleProgram(t)
	block := prog.Procedures[0].OrderedBlocks()[0]
	block.Instructions[2].Deleted = true // the ret, just to exercise the flag

	plain := Print(prog)
	assert.NotContains(t, strings.Split(plain, "\n"), "\t(deleted) ret")

	debug := PrintDebug(prog)
	assert.Contains(t, debug, "(deleted) ret")
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/ir"
)

func TestScannerTokenizesInstructionLine(t *testing.T) {
	s := NewScanner("loadi 4 => %vr1\n")
	toks, errs := s.ScanTokens()
	require.Empty(t, errs)

	var kinds []string
	for _, tok := range toks {
		kinds = append(kinds, tok.Lexeme)
	}
	assert.Contains(t, kinds, "loadi")
	assert.Contains(t, kinds, "%vr1")
	assert.Contains(t, kinds, "=>")
}

func TestParseSourceBuildsSingleBlockProcedure(t *testing.T) {
	src := ".frame main, 0\n" +
		"loadi 4 => %vr1\n" +
		"loadi 2 => %vr2\n" +
		"add %vr1, %vr2 => %vr3\n" +
		"ret\n" +
		".end\n"

	result := ParseSource(src)
	require.True(t, result.OK(), "scan errors: %v, parse errors: %v", result.ScanErrors, result.ParseErrors)
	require.Len(t, result.Program.Procedures, 1)

	proc := result.Program.Procedures[0]
	assert.Equal(t, "main", proc.Frame.Name)
	blocks := proc.OrderedBlocks()
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Instructions, 4)
}

func TestParseSourceSplitsBlocksAtLabelsAndBranches(t *testing.T) {
	src := ".frame main, 0\n" +
		"loadi 0 => %vr1\n" +
		"cbr_lt %vr1, %vr1 -> L1, L2\n" +
		"L1: loadi 1 => %vr2\n" +
		"jumpi -> L3\n" +
		"L2: loadi 2 => %vr2\n" +
		"L3: ret\n" +
		".end\n"

	result := ParseSource(src)
	require.True(t, result.OK(), "scan errors: %v, parse errors: %v", result.ScanErrors, result.ParseErrors)
	proc := result.Program.Procedures[0]

	l1, ok := proc.Block("L1")
	require.True(t, ok)
	assert.Len(t, l1.Instructions, 2)
	assert.Equal(t, []string{"L3"}, l1.After, "jumpi -> L3 must link to its label target")

	entry, ok := proc.Block(proc.EntryBlockName())
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"L1", "L2"}, entry.After,
		"cbr_lt's two label targets, not a fall-through, must be the entry block's successors")

	l3, ok := proc.Block("L3")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"L1", "L2"}, l3.Before)
}

func TestParseSourceCollectsUnrecognizedOpcodeAsParseError(t *testing.T) {
	src := ".frame main, 0\n" +
		"bogus %vr1 => %vr2\n" +
		"ret\n" +
		".end\n"

	result := ParseSource(src)
	require.NotEmpty(t, result.ParseErrors)
}

func TestParsePseudoOpPassedThroughUnchanged(t *testing.T) {
	src := ".data\n.frame main, 0\nret\n.end\n"
	result := ParseSource(src)
	require.True(t, result.OK())
	require.Len(t, result.Program.PseudoOps, 1)
	assert.Equal(t, ".data", result.Program.PseudoOps[0].Text)
}

func TestStoreOpcodeFoldsLValueIntoRValues(t *testing.T) {
	src := ".frame main, 0\n" +
		"loadi 0 => %vr1\n" +
		"loadi 4 => %vr2\n" +
		"store %vr1 => %vr2\n" +
		"ret\n" +
		".end\n"
	result := ParseSource(src)
	require.True(t, result.OK())
	blocks := result.Program.Procedures[0].OrderedBlocks()
	store := blocks[0].Instructions[2]
	assert.Equal(t, ir.OpStore, store.Operation.Opcode)
	assert.Empty(t, store.Operation.LValues)
	assert.Len(t, store.Operation.RValues, 2)
}

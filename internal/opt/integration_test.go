package opt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iloctool/internal/emit"
	"iloctool/internal/parser"
)

// TestFullPipelineParsesAndOptimizesRealSource runs real ILOC source text
// through the actual scanner/parser, the default lsdr pipeline, and the
// emitter, the end-to-end path the CLI drives. Every other test in this
// package hand-builds *ir.Procedure values directly and so never exercises
// parser.linkBlocks's label-to-successor wiring; this is the one test that
// does.
func TestFullPipelineParsesAndOptimizesRealSource(t *testing.T) {
	src := ".frame main, 0\n" +
		"loadi 0 => %vr1\n" +
		"loadi 1 => %vr2\n" +
		"cbr_lt %vr1, %vr2 -> L1, L2\n" +
		"L1: addi %vr1, 1 => %vr3\n" +
		"jumpi -> L3\n" +
		"L2: addi %vr1, 2 => %vr3\n" +
		"L3: storeai %vr3 => %vr0, 0\n" +
		"ret\n" +
		".end\n"

	result := parser.ParseSource(src)
	require.True(t, result.OK(), "scan errors: %v, parse errors: %v", result.ScanErrors, result.ParseErrors)
	prog := result.Program

	var diagnostics bytes.Buffer
	pipeline := NewPipeline(DefaultPasses, &diagnostics)
	require.NoError(t, pipeline.Run(prog))

	out := emit.Print(prog)
	assert.Contains(t, out, ".frame main")
	assert.Contains(t, out, "ret")
	assert.NotContains(t, out, "jumpi L", "a jumpi's target must print after the arrow, not before it")
}
